package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/boundary-cli/internal/boundary"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS boundaries (
	id           TEXT PRIMARY KEY,
	slug         TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	admin_level  INTEGER NOT NULL DEFAULT 0,
	provenance   TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	sw_lon       REAL NOT NULL,
	sw_lat       REAL NOT NULL,
	ne_lon       REAL NOT NULL,
	ne_lat       REAL NOT NULL,
	center_lon   REAL NOT NULL,
	center_lat   REAL NOT NULL,
	feature      TEXT NOT NULL,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_boundaries_name ON boundaries(name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveBoundary(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = RecordID(rec.Slug)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boundaries (id, slug, name, admin_level, provenance, generated_at,
			sw_lon, sw_lat, ne_lon, ne_lat, center_lon, center_lat, feature, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			admin_level = excluded.admin_level,
			provenance = excluded.provenance,
			generated_at = excluded.generated_at,
			sw_lon = excluded.sw_lon,
			sw_lat = excluded.sw_lat,
			ne_lon = excluded.ne_lon,
			ne_lat = excluded.ne_lat,
			center_lon = excluded.center_lon,
			center_lat = excluded.center_lat,
			feature = excluded.feature,
			updated_at = excluded.updated_at`,
		rec.ID.String(), rec.Slug, rec.Name, rec.AdminLevel, rec.Provenance,
		rec.GeneratedAt.UTC().Format(time.RFC3339Nano),
		rec.BBox.SW.Lon(), rec.BBox.SW.Lat(), rec.BBox.NE.Lon(), rec.BBox.NE.Lat(),
		rec.Center.Lon(), rec.Center.Lat(), string(rec.Feature),
	)
	return eris.Wrapf(err, "sqlite: save boundary %s", rec.Slug)
}

const sqliteColumns = `id, slug, name, admin_level, provenance, generated_at,
	sw_lon, sw_lat, ne_lon, ne_lat, center_lon, center_lat`

func (s *SQLiteStore) GetBoundary(ctx context.Context, slug string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+`, feature FROM boundaries WHERE slug = ?`, slug)

	var feature string
	rec, err := scanRecord(row, &feature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get boundary %s", slug)
	}
	rec.Feature = []byte(feature)
	return rec, nil
}

func (s *SQLiteStore) ListBoundaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM boundaries ORDER BY slug`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list boundaries")
	}
	defer rows.Close() //nolint:errcheck

	var out []Summary
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan boundary")
		}
		out = append(out, rec.Summary())
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate boundaries")
}

type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans the sqliteColumns followed by any extra destinations.
func scanRecord(row scannable, extra ...any) (*Record, error) {
	var (
		r         Record
		id, genAt string
		sw, ne    boundary.Coord
	)
	dest := []any{&id, &r.Slug, &r.Name, &r.AdminLevel, &r.Provenance, &genAt,
		&sw[0], &sw[1], &ne[0], &ne[1], &r.Center[0], &r.Center[1]}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(err, "parse id %q", id)
	}
	if r.GeneratedAt, err = time.Parse(time.RFC3339Nano, genAt); err != nil {
		return nil, eris.Wrapf(err, "parse generated_at %q", genAt)
	}
	r.BBox = boundary.BBox{SW: sw, NE: ne}
	return &r, nil
}
