package codec

import (
	"errors"
	"fmt"
	"io"

	"fibermap/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads a document from YAML. Unknown keys are rejected.
func (c *YAMLCodec) Parse(r io.Reader) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty YAML document", domain.ErrMalformedDocument)
		}
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", domain.ErrMalformedDocument, err)
	}

	return &doc, nil
}

// Export writes a document as YAML
func (c *YAMLCodec) Export(doc *Document, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
