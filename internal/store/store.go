// Package store persists assembled boundaries as GeoJSON files, in SQLite
// or in PostGIS.
package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/config"
)

// Store defines the persistence interface for assembled boundaries.
type Store interface {
	// SaveBoundary inserts or replaces the boundary with rec.Slug.
	SaveBoundary(ctx context.Context, rec *Record) error
	// GetBoundary returns nil, nil when slug is unknown.
	GetBoundary(ctx context.Context, slug string) (*Record, error)
	ListBoundaries(ctx context.Context) ([]Summary, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Record is one stored boundary. Feature is the GeoJSON Feature as written
// for map clients; the other fields are copied from its properties.
type Record struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	AdminLevel  int
	Provenance  string
	GeneratedAt time.Time
	BBox        boundary.BBox
	Center      boundary.Coord
	Feature     json.RawMessage
}

// Summary is the listing view of a Record.
type Summary struct {
	ID          uuid.UUID     `json:"id"`
	Slug        string        `json:"slug"`
	Name        string        `json:"name"`
	AdminLevel  int           `json:"adminLevel,omitempty"`
	Provenance  string        `json:"provenance"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Bounds      [2][2]float64 `json:"bounds"`
	Center      [2]float64    `json:"center"`
}

// Summary returns the listing view of r.
func (r *Record) Summary() Summary {
	return Summary{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		AdminLevel:  r.AdminLevel,
		Provenance:  r.Provenance,
		GeneratedAt: r.GeneratedAt,
		Bounds:      r.BBox.Corners(),
		Center:      [2]float64{r.Center[0], r.Center[1]},
	}
}

// RecordID derives a stable id from a slug so a boundary keeps its id
// across stores and rebuilds.
func RecordID(slug string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("boundary:"+slug))
}

// FromResult builds a record for an assembled boundary.
func FromResult(slug string, res *boundary.Result) (*Record, error) {
	data, err := json.Marshal(res.Feature)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal feature")
	}
	return recordFromFeature(slug, data)
}

// adminLevel decodes the adminLevel property, written as a decimal string
// but accepted as a number for older files.
type adminLevel int

func (l *adminLevel) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*l = 0
	case float64:
		*l = adminLevel(v)
	case string:
		if v == "" {
			*l = 0
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return eris.Wrapf(err, "store: adminLevel %q", v)
		}
		*l = adminLevel(n)
	default:
		return eris.Errorf("store: adminLevel has type %T", v)
	}
	return nil
}

// featureMeta mirrors the properties the assembler writes.
type featureMeta struct {
	Type       string `json:"type"`
	Properties struct {
		Name        string        `json:"name"`
		AdminLevel  adminLevel    `json:"adminLevel"`
		Provenance  string        `json:"provenance"`
		GeneratedAt time.Time     `json:"generatedAt"`
		Bounds      [2][2]float64 `json:"bounds"`
		Center      [2]float64    `json:"center"`
	} `json:"properties"`
}

func recordFromFeature(slug string, data []byte) (*Record, error) {
	var m featureMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "store: decode feature %s", slug)
	}
	if m.Type != "Feature" {
		return nil, eris.Errorf("store: %s is not a GeoJSON Feature", slug)
	}
	p := m.Properties
	return &Record{
		ID:          RecordID(slug),
		Slug:        slug,
		Name:        p.Name,
		AdminLevel:  int(p.AdminLevel),
		Provenance:  p.Provenance,
		GeneratedAt: p.GeneratedAt,
		BBox: boundary.BBox{
			SW: boundary.Coord(p.Bounds[0]),
			NE: boundary.Coord(p.Bounds[1]),
		},
		Center:  boundary.Coord(p.Center),
		Feature: json.RawMessage(data),
	}, nil
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	zap.L().Debug("store: opening", zap.String("driver", cfg.Driver))
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Dir), nil
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
