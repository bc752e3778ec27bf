// Package session owns the lifecycle of a contactless scan: it opens a
// transport session, waits for a card, runs the EMV read flow on it and
// delivers the outcome exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gregLibert/emv-reader/pkg/emv"
	"github.com/gregLibert/emv-reader/pkg/transport"
)

// SCAN LIFECYCLE:
//
//	Idle -> Active -> Processing -> Terminated
//
// A scan is Active from StartScan until its outcome is delivered. It turns
// Processing when the first tag is accepted; later detections and session
// errors are ignored from then on.
//
// Only one scan is current. Every scan carries the epoch it was started
// with; a delivery is dropped unless its epoch is still the current one, so
// a scan replaced by a newer StartScan never reaches its callback.

// DefaultTimeout bounds a scan from start to delivery.
const DefaultTimeout = 60 * time.Second

// Invalidation messages shown by transports that have a reader UI.
const (
	messageDone        = "Card read"
	messageUnsupported = "Unsupported card type"
	messageTimeout     = "Session timed out"
)

// Logger is the logging surface used by the scanner.
type Logger interface {
	Printf(format string, v ...any)
}

// Result is the completion callback of a scan. Exactly one of the
// arguments is set.
type Result func(*emv.CardReadResult, error)

// Scanner starts scans on a transport provider.
type Scanner struct {
	Provider transport.Provider

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration

	// Logger defaults to log.Default().
	Logger Logger

	// Verbose logs a report of every exchange of the read flow.
	Verbose bool

	// Trace logs every raw APDU exchange.
	Trace bool

	mu      sync.Mutex
	epoch   uint64
	current *scan
}

// New creates a Scanner over p.
func New(p transport.Provider) *Scanner {
	return &Scanner{Provider: p}
}

type scan struct {
	id         string
	epoch      uint64
	cancel     context.CancelFunc
	onComplete Result

	// guarded by Scanner.mu
	session transport.Session
	done    bool
}

type outcome struct {
	result *emv.CardReadResult
	err    error
}

// StartScan begins a new scan and returns immediately. onComplete is called
// once, from another goroutine, with the card data or the reason the scan
// ended. A scan still running is torn down first and its callback is never
// called. Cancelling ctx ends the scan with ErrUserCancelled.
func (s *Scanner) StartScan(ctx context.Context, onComplete Result) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.epoch++
	sc := &scan{
		id:         uuid.NewString(),
		epoch:      s.epoch,
		cancel:     cancel,
		onComplete: onComplete,
	}
	prev := s.current
	s.current = sc
	s.mu.Unlock()

	if prev != nil {
		s.logf(prev, "replaced by scan %s", sc.id)
		s.teardown(prev, "")
	}

	if s.Provider == nil || !s.Provider.Available() {
		go s.finish(sc, nil, ErrNotSupported, "")
		return
	}

	s.logf(sc, "started")
	go s.run(ctx, sc)
}

// Cancel ends the current scan, if any, without calling its callback.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	sc := s.current
	s.current = nil
	s.epoch++
	s.mu.Unlock()

	if sc != nil {
		s.logf(sc, "cancelled")
		s.teardown(sc, "")
	}
}

func (s *Scanner) run(ctx context.Context, sc *scan) {
	sess, err := s.Provider.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.finish(sc, nil, ErrUserCancelled, "")
			return
		}
		s.finish(sc, nil, fmt.Errorf("%w: %w", ErrConnection, err), "")
		return
	}

	s.mu.Lock()
	stale := sc.done || sc.epoch != s.epoch
	if !stale {
		sc.session = sess
	}
	s.mu.Unlock()

	if stale {
		sess.Invalidate("")
		return
	}

	timer := time.NewTimer(s.timeout())
	defer timer.Stop()

	events := sess.Events()
	results := make(chan outcome, 1)
	processing := false

	for {
		select {
		case <-ctx.Done():
			s.finish(sc, nil, ErrUserCancelled, "")
			return

		case <-timer.C:
			s.finish(sc, nil, ErrSessionTimeout, messageTimeout)
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				if !processing {
					s.finish(sc, nil, transport.ErrInvalidated, "")
					return
				}
				continue
			}

			if ev.Err != nil {
				if processing {
					s.logf(sc, "ignoring session error while reading: %v", ev.Err)
					continue
				}
				if errors.Is(ev.Err, transport.ErrUserCancelled) {
					s.finish(sc, nil, ErrUserCancelled, "")
				} else {
					s.finish(sc, nil, ev.Err, "")
				}
				return
			}

			if processing {
				s.logf(sc, "ignoring %d tag(s) detected while reading", len(ev.Tags))
				continue
			}
			if len(ev.Tags) == 0 {
				continue
			}

			processing = true
			tag := ev.Tags[0]
			go func() {
				res, err := s.process(ctx, sc, sess, tag)
				results <- outcome{result: res, err: err}
			}()

		case out := <-results:
			message := messageDone
			if errors.Is(out.err, ErrInvalidCardType) {
				message = messageUnsupported
			} else if out.err != nil {
				message = out.err.Error()
			}
			s.finish(sc, out.result, out.err, message)
			return
		}
	}
}

// process connects to tag and reads it.
func (s *Scanner) process(ctx context.Context, sc *scan, sess transport.Session, tag transport.Tag) (*emv.CardReadResult, error) {
	s.logf(sc, "tag %s detected", tag.ID())

	if !tag.ISO7816() {
		return nil, ErrInvalidCardType
	}

	card, err := sess.Connect(ctx, tag)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrUserCancelled
		}
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	reader := emv.NewReader(card)
	reader.Verbose = s.Verbose
	reader.Logger = scanLogger{s: s, sc: sc}
	if s.Trace {
		reader.Client.Debug = reader.Logger
	}
	reader.OnState = func(st emv.State) {
		s.logf(sc, "state %s", st)
	}

	res, err := reader.Read(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, ErrUserCancelled
	}
	return res, err
}

// finish delivers the outcome of sc unless sc was replaced or already
// delivered, then releases its transport session.
func (s *Scanner) finish(sc *scan, res *emv.CardReadResult, err error, message string) {
	s.mu.Lock()
	if sc.done || sc.epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	sc.done = true
	s.current = nil
	s.mu.Unlock()

	s.teardown(sc, message)

	switch {
	case err == nil:
		s.logf(sc, "completed")
	case IsUserCancelled(err):
		s.logf(sc, "cancelled by user")
	default:
		s.logf(sc, "failed: %v", err)
	}

	if sc.onComplete != nil {
		sc.onComplete(res, err)
	}
}

// teardown invalidates the transport session of sc and stops its goroutines.
func (s *Scanner) teardown(sc *scan, message string) {
	s.mu.Lock()
	sc.done = true
	sess := sc.session
	s.mu.Unlock()

	if sess != nil {
		sess.Invalidate(message)
	}
	sc.cancel()
}

func (s *Scanner) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Scanner) logf(sc *scan, format string, v ...any) {
	format = "[scan %s] " + format
	v = append([]any{sc.id}, v...)

	if s.Logger != nil {
		s.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// scanLogger prefixes read flow messages with the scan ID.
type scanLogger struct {
	s  *Scanner
	sc *scan
}

func (l scanLogger) Printf(format string, v ...any) {
	l.s.logf(l.sc, format, v...)
}
