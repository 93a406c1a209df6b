package bus

import "sync/atomic"

// counters is shared by both bus implementations.
type counters struct {
	messagesIn  atomic.Uint64
	messagesOut atomic.Uint64
	errors      atomic.Uint64
	dropped     atomic.Uint64
}

func (c *counters) snapshot() map[string]uint64 {
	return map[string]uint64{
		"messages_in":  c.messagesIn.Load(),
		"messages_out": c.messagesOut.Load(),
		"errors":       c.errors.Load(),
		"dropped":      c.dropped.Load(),
	}
}
