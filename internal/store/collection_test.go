package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/boundary-cli/internal/boundary"
)

func TestWriteCollection(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "census-tracts")
	poly, err := boundary.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}.Polygon()
	require.NoError(t, err)

	fc := boundary.FeatureCollection{
		Features:   []boundary.Feature{{Geometry: poly, Properties: map[string]any{"geoid": "13121001100"}}},
		Properties: map[string]any{"count": 1, "state": "13", "county": "121"},
	}
	path, err := WriteCollection(dir, "13-121", fc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "13-121.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"type\": \"FeatureCollection\"")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "121", props["county"])
	assert.Len(t, doc["features"], 1)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCollection_InvalidName(t *testing.T) {
	_, err := WriteCollection(t.TempDir(), "../escape", boundary.FeatureCollection{})
	assert.Error(t, err)
}
