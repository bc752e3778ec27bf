//go:build libnfc

package libnfc

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/clausecker/nfc/v2"
	"github.com/gregLibert/emv-reader/pkg/iso7816"
	"github.com/gregLibert/emv-reader/pkg/transport"
	"github.com/pkg/errors"
)

const (
	// DefaultPollInterval separates two target listings.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultTimeout bounds one APDU exchange, in milliseconds.
	DefaultTimeout = 2000
)

var modulation = nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}

// Provider opens sessions on one libnfc device.
type Provider struct {
	// Device is the libnfc connection string; empty picks the first device.
	Device string

	PollInterval time.Duration

	// Timeout overrides DefaultTimeout (milliseconds) when positive.
	Timeout int
}

// Available reports whether the device can be opened.
func (p *Provider) Available() bool {
	dev, err := nfc.Open(p.Device)
	if err != nil {
		return false
	}
	dev.Close()
	return true
}

// Begin opens the device as initiator and starts listing type A targets.
func (p *Provider) Begin(ctx context.Context) (transport.Session, error) {
	dev, err := nfc.Open(p.Device)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open connection to reader")
	}

	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return nil, errors.Wrap(err, "failed to init")
	}

	s := &Session{
		dev:      dev,
		interval: p.PollInterval,
		timeout:  p.Timeout,
		events:   make(chan transport.Event, 1),
		done:     make(chan struct{}),
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}

	go s.poll()
	return s, nil
}

// Session lists targets until one shows up, then hands the device over to
// the APDU exchange.
type Session struct {
	interval time.Duration
	timeout  int
	events   chan transport.Event
	done     chan struct{}
	once     sync.Once

	// mu serializes access to dev.
	mu       sync.Mutex
	dev      nfc.Device
	selected bool
}

func (s *Session) poll() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		tags, err := s.list()
		if err != nil {
			if s.closed() {
				return
			}
			s.emit(transport.Event{Err: errors.Wrap(err, "failed to list passive targets")})
			return
		}
		if len(tags) > 0 {
			s.emit(transport.Event{Tags: tags})
			return
		}
	}
}

func (s *Session) list() ([]transport.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed() {
		return nil, transport.ErrInvalidated
	}

	targets, err := s.dev.InitiatorListPassiveTargets(modulation)
	if err != nil {
		return nil, err
	}

	var tags []transport.Tag
	for _, t := range targets {
		tt, ok := t.(*nfc.ISO14443aTarget)
		if !ok {
			continue
		}
		tags = append(tags, &Tag{
			UID:  bytes.Clone(tt.UID[:tt.UIDLen]),
			ATQA: tt.Atqa,
			SAK:  tt.Sak,
		})
	}
	return tags, nil
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

// Connect selects the target; libnfc runs the ISO 14443-4 activation.
func (s *Session) Connect(ctx context.Context, tag transport.Tag) (iso7816.Transmitter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, ok := tag.(*Tag)
	if !ok {
		return nil, errors.Errorf("tag %s was not listed by libnfc", tag.ID())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed() {
		return nil, transport.ErrInvalidated
	}
	if _, err := s.dev.InitiatorSelectPassiveTarget(modulation, t.UID); err != nil {
		return nil, errors.Wrapf(err, "failed to select target %X", t.UID)
	}
	s.selected = true

	return &card{session: s}, nil
}

// Invalidate deselects the target and closes the device. libnfc devices
// have no display, so message is ignored.
func (s *Session) Invalidate(message string) {
	s.once.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.selected {
			s.dev.InitiatorDeselectTarget()
		}
		s.dev.Close()
	})
}

// card exchanges APDUs with the selected target.
type card struct {
	session *Session
}

func (c *card) Transmit(cmd []byte) ([]byte, error) {
	s := c.session

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed() {
		return nil, transport.ErrInvalidated
	}

	var rx [262]byte // Max response: 256 data bytes + SW1 SW2, with slack
	n, err := s.dev.InitiatorTransceiveBytes(cmd, rx[:], s.timeout)
	if err != nil {
		return nil, errors.Wrap(err, "transceive failed")
	}
	return bytes.Clone(rx[:n]), nil
}
