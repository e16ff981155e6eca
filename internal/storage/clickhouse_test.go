package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
)

func TestEventQuery_SQL(t *testing.T) {
	since := time.Unix(1_700_000_000, 0)
	query, args := EventQuery{
		Kind:   "exception",
		Node:   "n1",
		Since:  since,
		Limit:  50,
		Offset: 100,
	}.SQL()

	assert.True(t, strings.HasPrefix(query, "SELECT timestamp, kind, node"))
	assert.Contains(t, query, "FROM "+constants.ClickHouseEventsTable)
	assert.Contains(t, query, "WHERE kind = ? AND node = ? AND timestamp >= ?")
	assert.True(t, strings.HasSuffix(query, "ORDER BY timestamp DESC LIMIT ? OFFSET ?"))
	assert.Equal(t, []any{"exception", "n1", since, 50, 100}, args)
}

func TestEventQuery_SQLNoFilters(t *testing.T) {
	query, args := EventQuery{Limit: 10}.SQL()
	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, []any{10, 0}, args)
}

func TestSchema(t *testing.T) {
	assert.Len(t, Schema, 2)
	assert.Contains(t, Schema[1], "CREATE TABLE IF NOT EXISTS "+constants.ClickHouseEventsTable)
	assert.Contains(t, Schema[1], "INTERVAL 7 DAY")
}

func TestNonNil(t *testing.T) {
	assert.NotNil(t, nonNil[string](nil))
	m := map[string]float64{"a": 1}
	assert.Equal(t, m, nonNil(m))
}

func TestDefaultClickHouseConfig(t *testing.T) {
	cfg := DefaultClickHouseConfig()
	assert.Equal(t, constants.ClickHouseDefaultDSN, cfg.DSN)
	assert.Equal(t, constants.ClickHouseMaxConns, cfg.MaxConns)
}
