// Package storage provides the ClickHouse client used by the JVMPulse sink
// and query API: batch inserts of exported VM events and the read queries
// behind the API.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
)

// ClickHouseConfig holds connection settings.
type ClickHouseConfig struct {
	DSN      string `yaml:"dsn" validate:"required"`
	MaxConns int    `yaml:"max_conns" validate:"gte=1"`
}

// DefaultClickHouseConfig returns lean defaults.
func DefaultClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		DSN:      constants.ClickHouseDefaultDSN,
		MaxConns: constants.ClickHouseMaxConns,
	}
}

// ClickHouse is the batch-insert and query client.
type ClickHouse struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouse creates and pings a ClickHouse connection.
func NewClickHouse(ctx context.Context, cfg ClickHouseConfig, logger *zap.Logger) (*ClickHouse, error) {
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	opts.MaxOpenConns = cfg.MaxConns
	opts.MaxIdleConns = cfg.MaxConns
	opts.ConnMaxLifetime = 10 * time.Minute

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	logger.Info("ClickHouse connected", zap.Strings("addr", opts.Addr))
	return &ClickHouse{conn: conn, logger: logger}, nil
}

// EventRow is one exported VM event.
type EventRow struct {
	Timestamp time.Time
	Kind      string
	Node      string
	Instance  string
	Thread    string
	Daemon    bool
	Labels    map[string]string
	Numerics  map[string]float64
}

// Schema is the DDL for the events table, partitioned by day with a TTL.
var Schema = []string{
	"CREATE DATABASE IF NOT EXISTS " + constants.ClickHouseDatabase,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	timestamp DateTime64(6),
	kind      LowCardinality(String),
	node      LowCardinality(String),
	instance  String,
	thread    String,
	daemon    Bool,
	labels    Map(String, String),
	numerics  Map(String, Float64)
) ENGINE = MergeTree
PARTITION BY toDate(timestamp)
ORDER BY (kind, node, timestamp)
TTL toDateTime(timestamp) + INTERVAL %d DAY`, constants.ClickHouseEventsTable, constants.ClickHouseTTLDays),
}

// EnsureSchema creates the database and events table if missing.
func (ch *ClickHouse) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if err := ch.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// InsertBatch inserts a batch of events using the native batch protocol.
func (ch *ClickHouse) InsertBatch(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := ch.conn.PrepareBatch(ctx,
		"INSERT INTO "+constants.ClickHouseEventsTable+" (timestamp, kind, node, instance, thread, daemon, labels, numerics)")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(
			r.Timestamp,
			r.Kind,
			r.Node,
			r.Instance,
			r.Thread,
			r.Daemon,
			nonNil(r.Labels),
			nonNil(r.Numerics),
		); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	ch.logger.Debug("Batch inserted", zap.Int("rows", len(rows)))
	return nil
}

// EventQuery filters Events. Zero fields do not filter.
type EventQuery struct {
	Kind   string
	Node   string
	Thread string
	Since  time.Time
	Limit  int
	Offset int
}

// SQL renders the query and its arguments.
func (q EventQuery) SQL() (string, []any) {
	var (
		where []string
		args  []any
	)
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	if q.Node != "" {
		where = append(where, "node = ?")
		args = append(args, q.Node)
	}
	if q.Thread != "" {
		where = append(where, "thread = ?")
		args = append(args, q.Thread)
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since)
	}

	var b strings.Builder
	b.WriteString("SELECT timestamp, kind, node, instance, thread, daemon, labels, numerics FROM ")
	b.WriteString(constants.ClickHouseEventsTable)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC LIMIT ? OFFSET ?")
	args = append(args, q.Limit, q.Offset)
	return b.String(), args
}

// Events returns events matching q, newest first.
func (ch *ClickHouse) Events(ctx context.Context, q EventQuery) ([]EventRow, error) {
	query, args := q.SQL()
	rows, err := ch.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.Timestamp, &r.Kind, &r.Node, &r.Instance, &r.Thread, &r.Daemon, &r.Labels, &r.Numerics); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// KindCount is the number of stored events of one kind.
type KindCount struct {
	Kind  string `json:"kind"`
	Count uint64 `json:"count"`
}

// KindCounts returns per-kind event counts since the given time.
func (ch *ClickHouse) KindCounts(ctx context.Context, since time.Time) ([]KindCount, error) {
	rows, err := ch.conn.Query(ctx,
		"SELECT kind, count() AS cnt FROM "+constants.ClickHouseEventsTable+
			" WHERE timestamp >= ? GROUP BY kind ORDER BY cnt DESC", since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

// Overview summarizes one node (or all nodes when node is "") since a time.
type Overview struct {
	Events         uint64  `json:"events"`
	GCCount        uint64  `json:"gc_count"`
	GCPauseAvgSec  float64 `json:"gc_pause_avg_sec"`
	GCPauseP99Sec  float64 `json:"gc_pause_p99_sec"`
	Exceptions     uint64  `json:"exceptions"`
	Uncaught       uint64  `json:"uncaught_exceptions"`
	ThreadsStarted uint64  `json:"threads_started"`
	Contentions    uint64  `json:"monitor_contentions"`
	AllocatedBytes float64 `json:"allocated_bytes"`
}

// Overview returns dashboard summary numbers.
func (ch *ClickHouse) Overview(ctx context.Context, node string, since time.Time) (Overview, error) {
	query := fmt.Sprintf(`
		SELECT
			count(),
			countIf(kind = 'garbage_collection_finish'),
			avgIf(numerics['%[1]s'], kind = 'garbage_collection_finish' AND mapContains(numerics, '%[1]s')),
			quantileIf(0.99)(numerics['%[1]s'], kind = 'garbage_collection_finish' AND mapContains(numerics, '%[1]s')),
			countIf(kind = 'exception'),
			countIf(kind = 'exception' AND labels['%[2]s'] = 'false'),
			countIf(kind = 'thread_start'),
			countIf(kind = 'monitor_contended_enter'),
			sumIf(numerics['%[3]s'], kind = 'vm_object_alloc')
		FROM %[4]s
		WHERE timestamp >= ? AND (? = '' OR node = ?)`,
		constants.KeyPauseSec, constants.KeyCaught, constants.KeyBytes, constants.ClickHouseEventsTable)

	var o Overview
	row := ch.conn.QueryRow(ctx, query, since, node, node)
	if err := row.Scan(&o.Events, &o.GCCount, &o.GCPauseAvgSec, &o.GCPauseP99Sec,
		&o.Exceptions, &o.Uncaught, &o.ThreadsStarted, &o.Contentions, &o.AllocatedBytes); err != nil {
		return Overview{}, err
	}
	return o, nil
}

// Close closes the ClickHouse connection.
func (ch *ClickHouse) Close() error {
	return ch.conn.Close()
}

func nonNil[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}
