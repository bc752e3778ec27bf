// Package pcsc implements the proximity transport over a PC/SC contactless
// reader.
//
// A session polls one reader with SCardGetStatusChange and reports a tag
// each time a card enters the field. The reader firmware takes care of the
// ISO 14443 activation; what reaches the host is either an ISO 7816-4 card
// or a storage tag emulated by the reader (MIFARE Classic, Ultralight...),
// told apart by the ATR the reader builds for it.
package pcsc

import (
	"bytes"
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/ebfe/scard"
	"github.com/gregLibert/emv-reader/pkg/iso7816"
	"github.com/gregLibert/emv-reader/pkg/transport"
	"github.com/pkg/errors"
)

// DefaultPollInterval bounds each SCardGetStatusChange call.
const DefaultPollInterval = 250 * time.Millisecond

// storageRID is the PC/SC Workgroup RID the reader puts in the ATR of
// storage tags (PC/SC part 3, 3.1.3.2.3).
var storageRID = []byte{0xA0, 0x00, 0x00, 0x03, 0x06}

// IsStorageATR reports whether atr was built by the reader for a storage
// tag rather than returned by an ISO 14443-4 card.
func IsStorageATR(atr []byte) bool {
	return bytes.Contains(atr, storageRID)
}

// Provider opens sessions on one PC/SC reader.
type Provider struct {
	// ReaderIndex selects the reader in the ListReaders order.
	ReaderIndex int

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
}

// Available reports whether a PC/SC service runs and the reader exists.
func (p *Provider) Available() bool {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return false
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	return err == nil && p.ReaderIndex >= 0 && p.ReaderIndex < len(readers)
}

// Begin establishes a PC/SC context and starts polling the reader.
func (p *Provider) Begin(ctx context.Context) (transport.Session, error) {
	sctx, err := scard.EstablishContext()
	if err != nil {
		return nil, errors.Wrap(err, "pcsc: establish context")
	}

	readers, err := sctx.ListReaders()
	if err != nil {
		sctx.Release()
		return nil, errors.Wrap(err, "pcsc: list readers")
	}
	if p.ReaderIndex < 0 || p.ReaderIndex >= len(readers) {
		sctx.Release()
		return nil, errors.Errorf("pcsc: reader %d not found (%d connected)", p.ReaderIndex, len(readers))
	}

	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s := &Session{
		ctx:      sctx,
		reader:   readers[p.ReaderIndex],
		interval: interval,
		events:   make(chan transport.Event, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.poll()
	return s, nil
}

// Tag is a card detected on the reader.
type Tag struct {
	Reader string
	ATR    []byte
}

func (t *Tag) ID() string    { return hex.EncodeToString(t.ATR) }
func (t *Tag) ISO7816() bool { return !IsStorageATR(t.ATR) }

// Session polls one reader until invalidated.
type Session struct {
	ctx      *scard.Context
	reader   string
	interval time.Duration
	events   chan transport.Event
	done     chan struct{}
	stopped  chan struct{}

	once sync.Once
	mu   sync.Mutex
	card *scard.Card
}

// Reader returns the name of the polled reader.
func (s *Session) Reader() string { return s.reader }

func (s *Session) poll() {
	defer close(s.stopped)

	rs := []scard.ReaderState{{Reader: s.reader, CurrentState: scard.StateUnaware}}
	present := false

	for {
		err := s.ctx.GetStatusChange(rs, s.interval)
		if s.closed() {
			return
		}
		if err != nil {
			if errors.Is(err, scard.ErrTimeout) {
				continue
			}
			s.emit(transport.Event{Err: errors.Wrap(err, "pcsc: status change")})
			return
		}

		st := rs[0].EventState
		rs[0].CurrentState = st

		switch {
		case st&scard.StatePresent != 0 && !present:
			present = true
			atr := bytes.Clone(rs[0].Atr)
			s.emit(transport.Event{Tags: []transport.Tag{&Tag{Reader: s.reader, ATR: atr}}})
		case st&scard.StateEmpty != 0:
			present = false
		}
	}
}

func (s *Session) emit(ev transport.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) Events() <-chan transport.Event { return s.events }

// Connect opens the card in shared mode with T=0 or T=1.
func (s *Session) Connect(ctx context.Context, tag transport.Tag) (iso7816.Transmitter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed() {
		return nil, transport.ErrInvalidated
	}

	t, ok := tag.(*Tag)
	if !ok || t.Reader != s.reader {
		return nil, errors.Errorf("pcsc: tag %s does not belong to reader %q", tag.ID(), s.reader)
	}

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := s.ctx.Connect(s.reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return nil, errors.Wrapf(err, "pcsc: connect %q", s.reader)
	}

	s.mu.Lock()
	if s.card != nil {
		s.card.Disconnect(scard.LeaveCard)
	}
	s.card = card
	s.mu.Unlock()

	return card, nil
}

// Invalidate stops polling, disconnects the card and releases the context.
// PC/SC has no user interface, so message is ignored.
func (s *Session) Invalidate(message string) {
	s.once.Do(func() {
		close(s.done)
		s.ctx.Cancel()
		<-s.stopped

		s.mu.Lock()
		if s.card != nil {
			s.card.Disconnect(scard.LeaveCard)
			s.card = nil
		}
		s.mu.Unlock()

		s.ctx.Release()
	})
}
