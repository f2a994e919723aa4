package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var boundaryColumns = []string{"id", "slug", "name", "admin_level", "provenance", "generated_at",
	"sw_lon", "sw_lat", "ne_lon", "ne_lat", "center_lon", "center_lat"}

func TestPostgresStore_SaveBoundary(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := testRecord(t, "atlanta", "Atlanta")

	args := make([]any, 14)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	args[1] = "atlanta"
	args[2] = "Atlanta"
	mock.ExpectExec(`INSERT INTO "geo"."boundaries" .* ST_GeomFromEWKB\(\$14\)\) ON CONFLICT \("slug"\) DO UPDATE SET`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveBoundary(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBoundary_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`INSERT INTO "geo"."boundaries"`).WillReturnError(errors.New("connection refused"))

	err := s.SaveBoundary(context.Background(), testRecord(t, "atlanta", "Atlanta"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save boundary atlanta")
}

func TestPostgresStore_GetBoundary(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := testRecord(t, "atlanta", "Atlanta")

	mock.ExpectQuery(`(?s)SELECT id::text, slug, .* FROM geo.boundaries WHERE slug = \$1`).
		WithArgs("atlanta").
		WillReturnRows(pgxmock.NewRows(append(boundaryColumns, "feature")).
			AddRow(rec.ID.String(), "atlanta", "Atlanta", 8, rec.Provenance, generatedAt,
				-84.0, 33.0, -83.0, 34.0, -83.5, 33.5, []byte(rec.Feature)))

	got, err := s.GetBoundary(context.Background(), "atlanta")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.BBox, got.BBox)
	assert.Equal(t, rec.Center, got.Center)
	assert.Equal(t, 8, got.AdminLevel)
	assert.JSONEq(t, string(rec.Feature), string(got.Feature))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBoundary_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM geo.boundaries WHERE slug = \$1`).
		WithArgs("nowhere").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetBoundary(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBoundaries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM geo.boundaries ORDER BY slug`).
		WillReturnRows(pgxmock.NewRows(boundaryColumns).
			AddRow(RecordID("atlanta").String(), "atlanta", "Atlanta", 8, "p", generatedAt, -84.0, 33.0, -83.0, 34.0, -83.5, 33.5).
			AddRow(RecordID("decatur").String(), "decatur", "Decatur", 8, "p", generatedAt, -84.3, 33.7, -84.2, 33.8, -84.25, 33.75))

	list, err := s.ListBoundaries(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "decatur", list[1].Slug)
	assert.Equal(t, [2]float64{-84.25, 33.75}, list[1].Center)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_FreshDB(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	mock.ExpectExec("SELECT pg_advisory_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS geo").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM geo.schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	for _, name := range names {
		mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("EXEC", 0))
		mock.ExpectExec("INSERT INTO geo.schema_migrations").
			WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("SELECT pg_advisory_unlock").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_AllApplied(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	names, err := migrationNames()
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"filename"})
	for _, name := range names {
		rows.AddRow(name)
	}

	mock.ExpectExec("SELECT pg_advisory_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS geo").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM geo.schema_migrations").WillReturnRows(rows)
	mock.ExpectExec("SELECT pg_advisory_unlock").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_LockFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec("SELECT pg_advisory_lock").WillReturnError(errors.New("timeout"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory lock")
}

func TestEncodeEWKB(t *testing.T) {
	rec := testRecord(t, "atlanta", "Atlanta")
	wkb, err := EncodeEWKB(rec.Feature)
	require.NoError(t, err)
	require.NotEmpty(t, wkb)
	// little-endian marker, then polygon type with the SRID flag set
	assert.Equal(t, byte(1), wkb[0])
	assert.Equal(t, []byte{3, 0, 0, 0x20}, wkb[1:5])
	assert.Equal(t, []byte{0xe6, 0x10, 0, 0}, wkb[5:9])

	_, err = EncodeEWKB([]byte(`{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}`))
	assert.Error(t, err)
}
