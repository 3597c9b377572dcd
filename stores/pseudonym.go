package stores

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// MinSecretLength is the minimum byte length of the pseudonymization
// secret. Anything shorter lacks the entropy to make the hash useful.
const MinSecretLength = 32

// ErrShortSecret is returned when the configured hashing secret does
// not meet the minimum length. This is fatal: records cannot be
// pseudonymized without a usable key.
var ErrShortSecret = errors.New("pseudonymization secret is too short")

// Pseudonymizer maps raw student identifiers to stable pseudonymous
// hashes for analytics storage.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer validates the secret and builds the hasher.
func NewPseudonymizer(secret string) (*Pseudonymizer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrShortSecret, MinSecretLength, len(secret))
	}
	return &Pseudonymizer{key: []byte(secret)}, nil
}

// Pseudonymize returns the hex-encoded HMAC-SHA256 of the student id.
// The mapping is deterministic so one student's records share a
// partition, but not reversible without the secret.
func (p *Pseudonymizer) Pseudonymize(studentID string) string {
	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(studentID))
	return hex.EncodeToString(mac.Sum(nil))
}
