package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileStore keeps one pretty-printed GeoJSON file per boundary at
// {dir}/{slug}.json, the layout map clients fetch directly.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(slug string) (string, error) {
	if !ValidSlug(slug) {
		return "", eris.Errorf("file store: invalid slug %q", slug)
	}
	return filepath.Join(s.dir, slug+".json"), nil
}

// Migrate creates the directory.
func (s *FileStore) Migrate(_ context.Context) error {
	return eris.Wrap(os.MkdirAll(s.dir, 0o755), "file store: create dir")
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) SaveBoundary(ctx context.Context, rec *Record) error {
	path, err := s.path(rec.Slug)
	if err != nil {
		return err
	}
	if err := s.Migrate(ctx); err != nil {
		return err
	}

	n, err := writeJSONFile(path, rec.Feature)
	if err != nil {
		return err
	}
	zap.L().Info("boundary written", zap.String("path", path), zap.Int("bytes", n))
	return nil
}

// writeJSONFile pretty-prints data to path through a temp file and rename,
// so readers never see a partial document.
func writeJSONFile(path string, data []byte) (int, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return 0, eris.Wrap(err, "file store: format json")
	}
	buf.WriteByte('\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return 0, eris.Wrap(err, "file store: write")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, eris.Wrap(err, "file store: rename")
	}
	return buf.Len(), nil
}

func (s *FileStore) GetBoundary(_ context.Context, slug string) (*Record, error) {
	path, err := s.path(slug)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "file store: read")
	}
	return recordFromFeature(slug, data)
}

func (s *FileStore) ListBoundaries(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "file store: list")
	}

	var out []Summary
	for _, e := range entries {
		slug, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || !ValidSlug(slug) {
			continue
		}
		rec, err := s.GetBoundary(ctx, slug)
		if err != nil {
			zap.L().Warn("file store: skipping unreadable boundary", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if rec != nil {
			out = append(out, rec.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
