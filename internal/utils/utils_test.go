package utils

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	for _, k := range []string{"PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DB", "PG_SSLMODE"} {
		t.Setenv(k, "")
	}
	assert.Equal(t, "postgres://postgres@localhost:5432/globe?sslmode=disable", BuildPostgresDSNFromEnv())

	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "globe")
	t.Setenv("PG_PASSWORD", "p@ss:word")
	t.Setenv("PG_SSLMODE", "require")
	assert.Equal(t, "postgres://globe:p%40ss%3Aword@db:5432/globe?sslmode=require", BuildPostgresDSNFromEnv())
}

func TestOpenRedisFromEnv(t *testing.T) {
	t.Setenv("REDIS_ENABLE", "false")
	assert.Nil(t, OpenRedisFromEnv())

	t.Setenv("REDIS_ENABLE", "")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "-3")
	rc := OpenRedisFromEnv()
	require.NotNil(t, rc)
	defer rc.Close()
	assert.Equal(t, "cache:6379", rc.Options().Addr)
	assert.Equal(t, 0, rc.Options().DB)

	assert.Nil(t, OpenRedis("", ""))
}

func TestRedisCellsUnreachable(t *testing.T) {
	assert.Nil(t, NewRedisCells(nil, time.Minute))

	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rc.Close()
	c := NewRedisCells(rc, time.Minute)
	require.NotNil(t, c)
	c.Set("revgeo:cell:s4xj7d9", []int{0, 3})
	ids, ok := c.Get("revgeo:cell:s4xj7d9")
	assert.False(t, ok, "errors read as a miss")
	assert.Nil(t, ids)
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "keys", "server.key")
	require.NoError(t, EnsureSelfSignedCert(cert, key, "globe.local"))

	_, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	st, err := os.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	before, err := os.ReadFile(cert)
	require.NoError(t, err)
	require.NoError(t, EnsureSelfSignedCert(cert, key, "other"))
	after, err := os.ReadFile(cert)
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing pair is kept")
}
