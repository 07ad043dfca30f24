package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermap/internal/codec"
	"fibermap/internal/domain"
	"fibermap/internal/topology"
)

func TestSaveAndLoad(t *testing.T) {
	reg := topology.New()
	_, err := reg.Create(domain.Draft{Name: "OLT Central", Kind: "olt", Location: &domain.Coordinate{Lat: -6.2, Lng: 106.8}, CapacityPorts: 8})
	require.NoError(t, err)
	_, err = reg.Create(domain.Draft{Name: "S1", Kind: "splitter", Location: &domain.Coordinate{Lat: -6.2, Lng: 106.8}, ParentID: "OLT001", SplitRatio: "1:16"})
	require.NoError(t, err)

	doc, err := codec.Export(reg, time.Now())
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"seed.json", "seed.yaml", "seed.yml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, doc))

		loaded, err := LoadRegistry(path)
		require.NoError(t, err, name)
		assert.Equal(t, 2, loaded.Len(), name)

		el, err := loaded.Get("OLT001")
		require.NoError(t, err)
		assert.Equal(t, 1, el.(*domain.HeadEnd).UsedPorts)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("headEnds: {"), 0o644))
	_, err = LoadRegistry(path)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}
