package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// Record is the JSON wire format shared by the NATS and Redis exporters and
// read back by the ClickHouse sink.
type Record struct {
	Kind      string             `json:"kind"`
	Timestamp int64              `json:"ts"`
	Node      string             `json:"node"`
	Instance  string             `json:"instance"`
	Thread    string             `json:"thread,omitempty"`
	Daemon    bool               `json:"daemon,omitempty"`
	Labels    map[string]string  `json:"l,omitempty"`
	Numerics  map[string]float64 `json:"n,omitempty"`
}

// Time returns the record timestamp.
func (r Record) Time() time.Time { return time.UnixMicro(r.Timestamp) }

// Encoder turns bus events into wire records tagged with the agent instance.
type Encoder struct {
	Instance string
}

// Encode marshals e. Timestamps are Unix microseconds.
func (enc Encoder) Encode(e *event.Event) ([]byte, error) {
	return json.Marshal(Record{
		Kind:      e.Kind.String(),
		Timestamp: e.Timestamp.UnixMicro(),
		Node:      e.Node,
		Instance:  enc.Instance,
		Thread:    e.ThreadName,
		Daemon:    e.ThreadDaemon,
		Labels:    e.Labels,
		Numerics:  e.Numeric,
	})
}

// Decode parses a wire record. Records with an unknown kind are rejected.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	if _, err := event.ParseKind(r.Kind); err != nil {
		return Record{}, fmt.Errorf("record kind: %w", err)
	}
	return r, nil
}
