// Package loader reads topology seed files from disk. The codec is chosen by
// file extension: .yaml and .yml use YAML, everything else JSON.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"fibermap/internal/codec"
	"fibermap/internal/topology"
)

// Load reads and parses the document at path
func Load(path string) (*codec.Document, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadRegistry reads the document at path and imports it into a new registry
func LoadRegistry(path string, opts ...topology.Option) (*topology.Registry, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	reg, err := codec.Import(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Save writes doc to path in the format implied by its extension
func Save(path string, doc *codec.Document) error {
	c, err := codecFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.Export(doc, f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func codecFor(path string) (codec.Codec, error) {
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		return codec.NewYAMLCodec(), nil
	default:
		return codec.NewJSONCodec(), nil
	}
}
