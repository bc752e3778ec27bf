package cardsim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gregLibert/emv-reader/pkg/iso7816"
	"github.com/gregLibert/emv-reader/pkg/transport"
)

// Tag is a simulated candidate in the field.
type Tag struct {
	UID string
	// NotISO7816 marks storage tags that cannot take APDUs.
	NotISO7816 bool
	Card       *Card
}

func (t *Tag) ID() string    { return t.UID }
func (t *Tag) ISO7816() bool { return !t.NotISO7816 }

// Provider is a transport.Provider presenting a fixed set of tags.
type Provider struct {
	Unavailable bool
	BeginErr    error

	// Tags are reported once, Delay after Begin. No tags means the field stays empty.
	Tags  []*Tag
	Delay time.Duration

	// ConnectErr is returned by every Connect.
	ConnectErr error

	mu       sync.Mutex
	sessions []*Session
}

func (p *Provider) Available() bool { return !p.Unavailable }

func (p *Provider) Begin(ctx context.Context) (transport.Session, error) {
	if p.BeginErr != nil {
		return nil, p.BeginErr
	}

	s := &Session{
		provider: p,
		events:   make(chan transport.Event, 4),
		done:     make(chan struct{}),
	}

	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()

	if len(p.Tags) > 0 {
		tags := make([]transport.Tag, len(p.Tags))
		for i, t := range p.Tags {
			tags[i] = t
		}
		go s.present(tags, p.Delay)
	}
	return s, nil
}

// Sessions returns every session started so far, oldest first.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a simulated polling session.
type Session struct {
	provider *Provider
	events   chan transport.Event
	done     chan struct{}

	once    sync.Once
	mu      sync.Mutex
	message string
	closed  bool
}

func (s *Session) present(tags []transport.Tag, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.done:
		return
	}
	s.Emit(transport.Event{Tags: tags})
}

// Emit pushes an event to the session consumer, unless the session ended.
func (s *Session) Emit(ev transport.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Dismiss reports a cancellation by the user, as a system reader sheet would.
func (s *Session) Dismiss() {
	s.Emit(transport.Event{Err: transport.ErrUserCancelled})
}

func (s *Session) Events() <-chan transport.Event { return s.events }

func (s *Session) Connect(ctx context.Context, tag transport.Tag) (iso7816.Transmitter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Invalidated() {
		return nil, transport.ErrInvalidated
	}
	if s.provider.ConnectErr != nil {
		return nil, s.provider.ConnectErr
	}

	t, ok := tag.(*Tag)
	if !ok || t.Card == nil {
		return nil, fmt.Errorf("cardsim: tag %q has no card", tag.ID())
	}
	return &liveCard{session: s, card: t.Card}, nil
}

func (s *Session) Invalidate(message string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.message = message
		s.mu.Unlock()
		close(s.done)
	})
}

// Invalidated reports whether Invalidate was called.
func (s *Session) Invalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Message returns the message given to Invalidate.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// liveCard stops answering once its session is invalidated, like a card
// whose RF field was switched off.
type liveCard struct {
	session *Session
	card    *Card
}

func (c *liveCard) Transmit(cmd []byte) ([]byte, error) {
	if c.session.Invalidated() {
		return nil, transport.ErrInvalidated
	}
	return c.card.Transmit(cmd)
}
