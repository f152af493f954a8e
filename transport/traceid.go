package transport

import "github.com/rs/xid"

// traceID is a stable identifier for a connection's lifetime, independent
// of its 16-bit local port. Ports get recycled by spo_internal_reuse_oldest_connection
// within seconds under load, which makes them unfit for correlating log
// lines or metric samples across a connection's life; xid gives us a
// sortable, collision-free id to use instead.
type traceID string

func newTraceID() traceID {
	return traceID(xid.New().String())
}
