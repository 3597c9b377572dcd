package attachments

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/cellmate-ai/cellmate/models"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestClassifyImages(t *testing.T) {
	tests := []struct {
		name     string
		upload   Upload
		wantMime string
	}{
		{"jpg extension", Upload{Name: "photo.jpg", Data: []byte("not-really-jpeg")}, "image/jpeg"},
		{"jpeg extension", Upload{Name: "photo.JPEG", Data: []byte("x")}, "image/jpeg"},
		{"png extension", Upload{Name: "diagram.png", Data: []byte("x")}, "image/png"},
		{"webp extension", Upload{Name: "sticker.webp", Data: []byte("x")}, "image/webp"},
		{"png magic without extension", Upload{Name: "photo", Data: pngMagic}, "image/png"},
		{"jpeg magic without extension", Upload{Name: "scan", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}}, "image/jpeg"},
		{"gif magic", Upload{Name: "anim", Data: []byte("GIF89a....")}, "image/gif"},
		{"bmp magic", Upload{Name: "bitmap", Data: []byte("BM1234")}, "image/bmp"},
		{"webp magic", Upload{Name: "pic", Data: []byte("RIFF0000WEBPVP8 ")}, "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := Classify(tt.upload)
			if block == nil {
				t.Fatal("expected a block, got nil")
			}
			if block.Type != models.BlockInputImage {
				t.Fatalf("expected input_image, got %q", block.Type)
			}
			if block.MimeType != tt.wantMime {
				t.Errorf("expected mime %q, got %q", tt.wantMime, block.MimeType)
			}
			if !block.NoShow {
				t.Error("image block must be marked noShow")
			}
			want := base64.StdEncoding.EncodeToString(tt.upload.Data)
			if block.Data != want {
				t.Error("image data is not the base64 of the upload bytes")
			}
		})
	}
}

func TestClassifyTextFiles(t *testing.T) {
	tests := []struct {
		name       string
		upload     Upload
		wantHeader string
	}{
		{"python file", Upload{Name: "solution.py", Data: []byte("print(1)")}, "Python Code File (solution.py):"},
		{"csv file", Upload{Name: "grades.csv", Data: []byte("a,b\n1,2")}, "CSV Data File (grades.csv):"},
		{"markdown file", Upload{Name: "notes.md", Data: []byte("# hi")}, "MD File (notes.md):"},
		{"json file", Upload{Name: "data.json", Data: []byte("{}")}, "JSON File (data.json):"},
		{"typescript file", Upload{Name: "app.ts", Data: []byte("let x=1")}, "TS File (app.ts):"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := Classify(tt.upload)
			if block == nil {
				t.Fatal("expected a block, got nil")
			}
			if block.Type != models.BlockInputText {
				t.Fatalf("expected input_text, got %q", block.Type)
			}
			if !block.NoShow {
				t.Error("text file block must be marked noShow")
			}
			want := tt.wantHeader + "\n" + string(tt.upload.Data)
			if block.Text != want {
				t.Errorf("expected %q, got %q", want, block.Text)
			}
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	block := Classify(Upload{Name: "setup.exe", Data: []byte{0x4D, 0x5A, 0x00}})
	if block == nil {
		t.Fatal("unsupported files must still produce a placeholder block")
	}
	if block.Type != models.BlockInputText {
		t.Fatalf("expected input_text placeholder, got %q", block.Type)
	}
	if !strings.Contains(block.Text, "setup.exe") {
		t.Errorf("placeholder should name the file, got %q", block.Text)
	}
	if strings.Contains(block.Text, "\x4D\x5A") {
		t.Error("placeholder must not carry the file payload")
	}
	if !block.NoShow {
		t.Error("placeholder block must be marked noShow")
	}
}

func TestClassifyEmptyUpload(t *testing.T) {
	if block := Classify(Upload{}); block != nil {
		t.Fatalf("empty upload should be skipped, got %+v", block)
	}
}

func TestMagicBytesBeatMissingExtension(t *testing.T) {
	// A text-looking name with image bytes is still an image.
	block := Classify(Upload{Name: "photo", Data: pngMagic})
	if block == nil || block.Type != models.BlockInputImage {
		t.Fatalf("expected image classification via magic bytes, got %+v", block)
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
		want   bool
	}{
		{"by extension", Upload{Name: "a.png", Data: []byte("x")}, true},
		{"by magic", Upload{Name: "a", Data: pngMagic}, true},
		{"plain text", Upload{Name: "a.txt", Data: []byte("hello")}, false},
		{"unknown binary", Upload{Name: "a.bin", Data: []byte{0x00, 0x01}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsImage(tt.upload); got != tt.want {
				t.Errorf("IsImage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSniffImageMimeShortData(t *testing.T) {
	for _, data := range [][]byte{nil, {0x89}, []byte("RIFF0000")} {
		if mime := SniffImageMime(data); mime != "" {
			t.Errorf("expected no match for %v, got %q", data, mime)
		}
	}
}
