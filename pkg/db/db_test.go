package db_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandermap/pkg/db"
)

func openTemp(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "nested", "db_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestInit_Migrates(t *testing.T) {
	d := openTemp(t)

	for _, table := range []string{"cache", "geometry_loads"} {
		var n int
		err := d.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestPruneCache(t *testing.T) {
	d := openTemp(t)

	_, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES ('old', x'00', '2000-01-01 00:00:00')")
	require.NoError(t, err)
	_, err = d.Exec("INSERT INTO cache (key, value) VALUES ('fresh', x'00')")
	require.NoError(t, err)

	n, err := d.PruneCache(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left string
	require.NoError(t, d.QueryRow("SELECT key FROM cache").Scan(&left))
	assert.Equal(t, "fresh", left)
}

func TestLoadHistory(t *testing.T) {
	d := openTemp(t)
	ctx := context.Background()

	require.NoError(t, d.RecordLoad(ctx, "topojson-url", 176, nil))
	require.NoError(t, d.RecordLoad(ctx, "topojson-url", 0, errors.New("status 503")))

	hist, err := d.LoadHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "status 503", hist[0].Error)
	assert.Equal(t, 176, hist[1].Countries)
	assert.Empty(t, hist[1].Error)
}
