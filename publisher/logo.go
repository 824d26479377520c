package publisher

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Logo is an image placed at the top of exports.
type Logo struct {
	Data []byte
	MIME string
}

// NewLogo sniffs data and accepts PNG, JPEG and GIF images.
func NewLogo(data []byte) (*Logo, error) {
	mime := mimetype.Detect(data).String()
	switch mime {
	case "image/png", "image/jpeg", "image/gif":
		return &Logo{Data: data, MIME: mime}, nil
	default:
		return nil, fmt.Errorf("logo must be a png, jpeg or gif image, got %s", mime)
	}
}

// LoadLogo reads and validates a logo file.
func LoadLogo(path string) (*Logo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading logo: %w", err)
	}
	return NewLogo(data)
}

// DataURI returns the logo inline as a data: URI.
func (l *Logo) DataURI() string {
	return "data:" + l.MIME + ";base64," + base64.StdEncoding.EncodeToString(l.Data)
}

// imageType is the short type name PDF and DOCX writers expect.
func (l *Logo) imageType() string {
	switch l.MIME {
	case "image/jpeg":
		return "jpg"
	default:
		return strings.TrimPrefix(l.MIME, "image/")
	}
}
