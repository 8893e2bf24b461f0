package clickhouse

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("ch.local")(cfg)
	WithCredentials("reader", "p@ss")(cfg)
	WithMaxExecutionTime(90 * time.Second)(cfg)
	WithAsyncInsert(true, true)(cfg)

	u, err := url.Parse(buildDSN(*cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/finfactor", u.Path)
	assert.Equal(t, "reader", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "90", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "1", q.Get("wait_for_async_insert"))
	assert.Equal(t, "5s", q.Get("dial_timeout"))
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)
}

func TestSchema_QualifiesTables(t *testing.T) {
	stmts := Schema("research")
	require.Len(t, stmts, 6)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS research", stmts[0])
	for _, s := range stmts[1:] {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS research."), s)
	}
}
