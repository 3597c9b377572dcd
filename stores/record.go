// Package stores persists completed turns for analytics and provides
// the pseudonymization and retention machinery around them.
package stores

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// InteractionRecord is one completed turn as persisted for analytics.
// ID plus StudentID form the addressing key (StudentID is the partition
// field). Records are created once per turn and immutable afterwards;
// the upsert is defensive only.
type InteractionRecord struct {
	ID                     string    `gorm:"primaryKey" json:"id"`
	StudentID              string    `gorm:"index;not null" json:"student_id"` // pseudonymous hash
	CourseID               string    `gorm:"index" json:"course_id"`
	AssignmentID           string    `json:"assignment_id"`
	Timestamp              time.Time `gorm:"index" json:"timestamp"`
	StudentRequest         string    `gorm:"type:text" json:"student_request"`
	ResponseWithTextbook   string    `gorm:"type:text" json:"response_with_textbook"`
	ModelUsed              string    `json:"model_used"`
	ContextWithoutTextbook string    `gorm:"type:text" json:"context_without_textbook"`
}

// Validate performs the shallow schema check required before a record
// may be persisted: every required field present, timestamps set.
// Nested payloads (the context JSON) are not inspected.
func (r *InteractionRecord) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.StudentID, validation.Required),
		validation.Field(&r.CourseID, validation.Required),
		validation.Field(&r.AssignmentID, validation.Required),
		validation.Field(&r.Timestamp, validation.Required),
		validation.Field(&r.StudentRequest, validation.Required),
		validation.Field(&r.ModelUsed, validation.Required),
	)
}
