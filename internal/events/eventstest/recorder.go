// Package eventstest provides an in-memory event publisher for tests.
package eventstest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/smallbiznis/payrelay/internal/events"
)

// Published is an event captured by Recorder.
type Published struct {
	Key  string
	Body []byte
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Published
	Err    error
}

func (r *Recorder) Publish(_ context.Context, key string, v any) error {
	if r.Err != nil {
		return r.Err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Published{Key: key, Body: b})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Keys returns the routing keys in publish order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Key)
	}
	return out
}

func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}

var _ events.Publisher = (*Recorder)(nil)
