package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/db"
)

// PostgresStore implements Store on a PostGIS table, geo.boundaries.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var boundaryUpsert = db.UpsertConfig{
	Table: "geo.boundaries",
	Columns: []string{"id", "slug", "name", "admin_level", "provenance", "generated_at",
		"sw_lon", "sw_lat", "ne_lon", "ne_lat", "center_lon", "center_lat", "feature", "geom"},
	ConflictKeys: []string{"slug"},
	UpdateCols: []string{"name", "admin_level", "provenance", "generated_at",
		"sw_lon", "sw_lat", "ne_lon", "ne_lat", "center_lon", "center_lat", "feature", "geom"},
	Exprs: map[string]string{"geom": "ST_GeomFromEWKB(%s)"},
}

func (s *PostgresStore) SaveBoundary(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = RecordID(rec.Slug)
	}
	wkb, err := EncodeEWKB(rec.Feature)
	if err != nil {
		return err
	}
	_, err = db.Upsert(ctx, s.pool, boundaryUpsert, []any{
		rec.ID.String(), rec.Slug, rec.Name, rec.AdminLevel, rec.Provenance, rec.GeneratedAt,
		rec.BBox.SW.Lon(), rec.BBox.SW.Lat(), rec.BBox.NE.Lon(), rec.BBox.NE.Lat(),
		rec.Center.Lon(), rec.Center.Lat(), []byte(rec.Feature), wkb,
	})
	return eris.Wrapf(err, "postgres: save boundary %s", rec.Slug)
}

const pgColumns = `id::text, slug, name, admin_level, provenance, generated_at,
	sw_lon, sw_lat, ne_lon, ne_lat, center_lon, center_lat`

func (s *PostgresStore) GetBoundary(ctx context.Context, slug string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgColumns+`, feature FROM geo.boundaries WHERE slug = $1`, slug)

	var feature []byte
	rec, err := scanPGRecord(row, &feature)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get boundary %s", slug)
	}
	rec.Feature = feature
	return rec, nil
}

func (s *PostgresStore) ListBoundaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+` FROM geo.boundaries ORDER BY slug`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list boundaries")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan boundary")
		}
		out = append(out, rec.Summary())
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate boundaries")
}

func scanPGRecord(row scannable, extra ...any) (*Record, error) {
	var (
		r      Record
		id     string
		sw, ne boundary.Coord
	)
	dest := []any{&id, &r.Slug, &r.Name, &r.AdminLevel, &r.Provenance, &r.GeneratedAt,
		&sw[0], &sw[1], &ne[0], &ne[1], &r.Center[0], &r.Center[1]}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(err, "parse id %q", id)
	}
	r.BBox = boundary.BBox{SW: sw, NE: ne}
	return &r, nil
}

// EncodeEWKB converts a GeoJSON Feature's geometry to EWKB with SRID 4326.
func EncodeEWKB(feature []byte) ([]byte, error) {
	var f boundary.Feature
	if err := f.UnmarshalJSON(feature); err != nil {
		return nil, eris.Wrap(err, "postgres: decode feature geometry")
	}

	var g geom.T
	switch t := f.Geometry.(type) {
	case *geom.Polygon:
		g = t.SetSRID(4326)
	case *geom.MultiPolygon:
		g = t.SetSRID(4326)
	case *geom.MultiLineString:
		g = t.SetSRID(4326)
	case *geom.LineString:
		g = t.SetSRID(4326)
	default:
		return nil, eris.Errorf("postgres: unsupported geometry %T", f.Geometry)
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode EWKB")
	}
	return data, nil
}
