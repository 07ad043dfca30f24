package codec

import (
	"fmt"
	"io"
	"strings"
	"time"

	"fibermap/internal/domain"
)

// Importer interface for reading topology documents from various formats
type Importer interface {
	Parse(r io.Reader) (*Document, error)
	Format() string
}

// Exporter interface for writing topology documents to various formats
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Format() string
}

// Codec reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec for a format name or file extension
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "", "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidValue, format)
}

// Filename returns the download name for an export taken at now
func Filename(now time.Time, format string) string {
	ext := "json"
	if c, err := ForFormat(format); err == nil {
		ext = c.Format()
	}
	return fmt.Sprintf("network-map-%s.%s", now.Format("2006-01-02"), ext)
}

// ContentType returns the MIME type for a format name or file extension
func ContentType(format string) string {
	if c, err := ForFormat(format); err == nil && c.Format() == "yaml" {
		return "application/yaml"
	}
	return "application/json"
}
