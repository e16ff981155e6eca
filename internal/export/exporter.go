// Package export provides the exporter interface and implementations.
// Exporters subscribe to the event bus and ship VM events to Prometheus,
// NATS JetStream or Redis pub/sub.
package export

import "context"

// Exporter is an event export backend.
type Exporter interface {
	// Name returns a unique identifier; it is also the bus subscriber name.
	Name() string

	// Start connects and consumes events. Blocks until ctx is cancelled or
	// the bus is closed.
	Start(ctx context.Context) error

	// Stop flushes and releases connections.
	Stop(ctx context.Context) error
}
