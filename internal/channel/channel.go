package channel

import (
	"errors"
	"sync"

	"github.com/fitmirror/fitmirror/internal/model"
)

var ErrClosed = errors.New("channel closed")

// Handler receives every envelope delivered on a channel together with the
// raw originating origin. Channels perform no type-based routing or origin
// filtering; trust policy belongs to the subscriber.
type Handler func(env model.Envelope, origin string)

// Channel is the transport between the embedded widget and the page that
// embeds it, decoupled from any trust check. Send posts with wildcard target
// semantics: the receiving side validates origin independently.
type Channel interface {
	Send(env model.Envelope) error

	// Subscribe registers a handler for every incoming envelope and returns
	// an unsubscribe function.
	Subscribe(h Handler) (unsubscribe func())

	// Origin is the origin this channel presents to its peer.
	Origin() string

	Close() error
}

// subscriberSet is the shared fan-out bookkeeping for channel implementations.
type subscriberSet struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Handler
}

func (s *subscriberSet) add(h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]Handler)
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *subscriberSet) dispatch(env model.Envelope, origin string) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(env, origin)
	}
}

// PairChannel is an in-memory linked channel pair used in tests and
// single-process embedding: what one side sends, the other side's subscribers
// receive synchronously, tagged with the sender's origin.
type PairChannel struct {
	origin string
	peer   *PairChannel
	subs   subscriberSet

	mu     sync.Mutex
	closed bool
}

// NewPair links two channels. a's sends arrive at b's subscribers and vice
// versa.
func NewPair(originA, originB string) (a, b *PairChannel) {
	a = &PairChannel{origin: originA}
	b = &PairChannel{origin: originB}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *PairChannel) Send(env model.Envelope) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.peer.subs.dispatch(env, c.origin)
	return nil
}

func (c *PairChannel) Subscribe(h Handler) func() {
	return c.subs.add(h)
}

func (c *PairChannel) Origin() string { return c.origin }

func (c *PairChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
