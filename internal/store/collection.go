package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
)

// WriteCollection writes fc to {dir}/{name}.json and returns the path.
// name follows the slug rules, e.g. "atlanta" or "13-121".
func WriteCollection(dir, name string, fc boundary.FeatureCollection) (string, error) {
	if !ValidSlug(name) {
		return "", eris.Errorf("collection: invalid name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "collection: create dir")
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return "", eris.Wrap(err, "collection: marshal")
	}
	path := filepath.Join(dir, name+".json")
	n, err := writeJSONFile(path, data)
	if err != nil {
		return "", err
	}

	zap.L().Info("collection written",
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
		zap.Int("bytes", n),
	)
	return path, nil
}
