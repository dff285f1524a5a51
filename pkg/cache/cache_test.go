package cache

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandermap/pkg/db"
)

func newTestCache(t *testing.T) (*SQLiteCache, *db.DB) {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "cache_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewSQLiteCache(d), d
}

func TestSQLiteCache_RoundTrip(t *testing.T) {
	c, d := newTestCache(t)
	ctx := context.Background()

	_, hit := c.GetCache(ctx, "topology")
	assert.False(t, hit)

	payload := bytes.Repeat([]byte(`{"type":"Topology","arcs":[]}`), 100)
	require.NoError(t, c.SetCache(ctx, "topology", payload))

	got, hit := c.GetCache(ctx, "topology")
	require.True(t, hit)
	assert.Equal(t, payload, got)

	// Stored compressed
	var raw []byte
	require.NoError(t, d.QueryRow("SELECT value FROM cache WHERE key = 'topology'").Scan(&raw))
	assert.True(t, isGzip(raw))
	assert.Less(t, len(raw), len(payload))

	require.NoError(t, c.DeleteCache(ctx, "topology"))
	_, hit = c.GetCache(ctx, "topology")
	assert.False(t, hit)
	require.NoError(t, c.DeleteCache(ctx, "topology"), "missing key")
}

func TestSQLiteCache_RawValue(t *testing.T) {
	c, d := newTestCache(t)

	_, err := d.Exec("INSERT INTO cache (key, value) VALUES ('plain', ?)", []byte("hello"))
	require.NoError(t, err)

	got, hit := c.GetCache(context.Background(), "plain")
	require.True(t, hit)
	assert.Equal(t, "hello", string(got))
}

func TestSQLiteCache_CorruptGzipIsMiss(t *testing.T) {
	c, d := newTestCache(t)

	_, err := d.Exec("INSERT INTO cache (key, value) VALUES ('bad', ?)", []byte{0x1f, 0x8b, 0x00, 0x01})
	require.NoError(t, err)

	_, hit := c.GetCache(context.Background(), "bad")
	assert.False(t, hit)
}
