package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"fibermap/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads a document from JSON. Unknown fields are rejected.
func (c *JSONCodec) Parse(r io.Reader) (*Document, error) {
	var doc Document
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", domain.ErrMalformedDocument, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON document", domain.ErrMalformedDocument)
	}

	return &doc, nil
}

// Export writes a document as indented JSON
func (c *JSONCodec) Export(doc *Document, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
