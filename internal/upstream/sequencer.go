package upstream

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned for a fetch whose result was discarded because a
// newer fetch for the same resource was issued.
var ErrSuperseded = errors.New("upstream: superseded by a newer request")

// Sequencer keeps only the latest fetch per key alive. Starting a fetch
// cancels the previous one for the same key.
type Sequencer struct {
	mu      sync.Mutex
	next    uint64
	latest  map[string]uint64
	cancels map[string]context.CancelFunc
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		latest:  make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Ticket identifies one fetch issued through a Sequencer.
type Ticket struct {
	s      *Sequencer
	key    string
	id     uint64
	cancel context.CancelFunc
}

// Begin registers a new fetch for key and returns the context it must use.
func (s *Sequencer) Begin(ctx context.Context, key string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.cancels[key]; ok {
		prev()
	}
	s.next++
	s.latest[key] = s.next
	s.cancels[key] = cancel

	return ctx, &Ticket{s: s, key: key, id: s.next, cancel: cancel}
}

// Stale reports whether a newer fetch for the same key has begun. Once the
// latest ticket is done every older ticket for the key reports stale.
func (t *Ticket) Stale() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.latest[t.key] != t.id
}

// Done releases the ticket's context.
func (t *Ticket) Done() {
	t.s.mu.Lock()
	if t.s.latest[t.key] == t.id {
		delete(t.s.latest, t.key)
		delete(t.s.cancels, t.key)
	}
	t.s.mu.Unlock()
	t.cancel()
}
