package db

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundaryUpsert() UpsertConfig {
	return UpsertConfig{
		Table:        "geo.boundaries",
		Columns:      []string{"slug", "name", "geom"},
		ConflictKeys: []string{"slug"},
		Exprs:        map[string]string{"geom": "ST_GeomFromEWKB(%s)"},
	}
}

func TestUpsertSQL(t *testing.T) {
	sql, err := UpsertSQL(boundaryUpsert())
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "geo"."boundaries" ("slug", "name", "geom") VALUES ($1, $2, ST_GeomFromEWKB($3)) ON CONFLICT ("slug") DO UPDATE SET "name" = EXCLUDED."name", "geom" = EXCLUDED."geom"`,
		sql)
}

func TestUpsertSQL_ExplicitUpdateCols(t *testing.T) {
	cfg := boundaryUpsert()
	cfg.UpdateCols = []string{"geom"}
	sql, err := UpsertSQL(cfg)
	require.NoError(t, err)
	assert.Contains(t, sql, `DO UPDATE SET "geom" = EXCLUDED."geom"`)
	assert.NotContains(t, sql, `"name" = EXCLUDED`)
}

func TestUpsertSQL_DoNothing(t *testing.T) {
	sql, err := UpsertSQL(UpsertConfig{Table: "seen", Columns: []string{"slug"}, ConflictKeys: []string{"slug"}})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "seen" ("slug") VALUES ($1) ON CONFLICT ("slug") DO NOTHING`, sql)
}

func TestUpsertSQL_NoColumns(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "geo.test", ConflictKeys: []string{"id"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsertSQL_NoConflictKeys(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "geo.test", Columns: []string{"id", "name"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "geo"."boundaries"`).
		WithArgs("atlanta", "Atlanta", []byte{1}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := Upsert(context.Background(), mock, boundaryUpsert(), []any{"atlanta", "Atlanta", []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO`).WillReturnError(errors.New("relation does not exist"))

	_, err = Upsert(context.Background(), mock, boundaryUpsert(), []any{"atlanta", "Atlanta", []byte{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestUpsert_ValueCountMismatch(t *testing.T) {
	_, err := Upsert(context.Background(), nil, boundaryUpsert(), []any{"atlanta"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 values for 3 columns")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"geo.boundaries", `"geo"."boundaries"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
