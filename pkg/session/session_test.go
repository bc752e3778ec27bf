package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/emv-reader/internal/cardsim"
	"github.com/gregLibert/emv-reader/pkg/emv"
	"github.com/gregLibert/emv-reader/pkg/iso7816"
	"github.com/gregLibert/emv-reader/pkg/transport"
)

const waitFor = 2 * time.Second

// testLogger forwards to t until the test ends; scan goroutines may still
// log after that.
type testLogger struct {
	mu   sync.Mutex
	t    *testing.T
	done bool
}

func newTestLogger(t *testing.T) *testLogger {
	l := &testLogger{t: t}
	t.Cleanup(func() {
		l.mu.Lock()
		l.done = true
		l.mu.Unlock()
	})
	return l
}

func (l *testLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.t.Logf(format, v...)
	}
}

type delivery struct {
	result *emv.CardReadResult
	err    error
}

// collector records every call of a scan callback.
type collector struct {
	calls atomic.Int32
	ch    chan delivery
}

func newCollector() *collector {
	return &collector{ch: make(chan delivery, 4)}
}

func (c *collector) done(res *emv.CardReadResult, err error) {
	c.calls.Add(1)
	c.ch <- delivery{result: res, err: err}
}

func (c *collector) wait(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-c.ch:
		return d
	case <-time.After(waitFor):
		t.Fatal("scan never completed")
		return delivery{}
	}
}

func newTestScanner(t *testing.T, p *cardsim.Provider) *Scanner {
	s := New(p)
	s.Logger = newTestLogger(t)
	return s
}

// waitSession returns the n-th session begun on p.
func waitSession(t *testing.T, p *cardsim.Provider, n int) *cardsim.Session {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for time.Now().Before(deadline) {
		if ss := p.Sessions(); len(ss) >= n {
			return ss[n-1]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session %d never began", n)
	return nil
}

func waitInvalidated(t *testing.T, s *cardsim.Session) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for !s.Invalidated() {
		if time.Now().After(deadline) {
			t.Fatal("session never invalidated")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScanner_StartScan(t *testing.T) {
	p := &cardsim.Provider{
		Tags: []*cardsim.Tag{{UID: "04A1B2C3", Card: cardsim.VisaCard()}},
	}
	s := newTestScanner(t, p)
	c := newCollector()

	s.StartScan(context.Background(), c.done)
	d := c.wait(t)

	if d.err != nil {
		t.Fatalf("scan failed: %v", d.err)
	}

	want := &emv.CardReadResult{
		PAN:              "4761739001010010",
		Track2:           "4761739001010010D251220100000000000F",
		ExpiryDate:       "12/25",
		CardholderName:   "DOE/JOHN",
		ApplicationLabel: "VISA CREDIT",
		AID:              cardsim.VisaAID,
		Success:          true,
	}
	if diff := cmp.Diff(want, d.result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	sess := waitSession(t, p, 1)
	if !sess.Invalidated() {
		t.Error("session still valid after delivery")
	}
	if got := sess.Message(); got != messageDone {
		t.Errorf("invalidate message = %q, want %q", got, messageDone)
	}
}

func TestScanner_Errors(t *testing.T) {
	beginErr := errors.New("no reader connected")
	connectErr := errors.New("card removed")

	tests := []struct {
		name     string
		provider *cardsim.Provider
		wantErr  []error
	}{
		{
			name:     "Not supported",
			provider: &cardsim.Provider{Unavailable: true},
			wantErr:  []error{ErrNotSupported},
		},
		{
			name:     "Begin fails",
			provider: &cardsim.Provider{BeginErr: beginErr},
			wantErr:  []error{ErrConnection, beginErr},
		},
		{
			name: "Connect fails",
			provider: &cardsim.Provider{
				Tags:       []*cardsim.Tag{{UID: "01", Card: cardsim.VisaCard()}},
				ConnectErr: connectErr,
			},
			wantErr: []error{ErrConnection, connectErr},
		},
		{
			name: "Storage tag",
			provider: &cardsim.Provider{
				Tags: []*cardsim.Tag{{UID: "04", NotISO7816: true}},
			},
			wantErr: []error{ErrInvalidCardType},
		},
		{
			name: "Application rejected",
			provider: &cardsim.Provider{
				Tags: []*cardsim.Tag{{UID: "05", Card: &cardsim.Card{PPSE: cardsim.PPSEResponse(cardsim.VisaAID)}}},
			},
			wantErr: []error{emv.ErrRead},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScanner(t, tt.provider)
			c := newCollector()

			s.StartScan(context.Background(), c.done)
			d := c.wait(t)

			if d.result != nil {
				t.Errorf("unexpected result: %+v", d.result)
			}
			for _, want := range tt.wantErr {
				if !errors.Is(d.err, want) {
					t.Errorf("error %v does not match %v", d.err, want)
				}
			}
			if IsUserCancelled(d.err) {
				t.Errorf("IsUserCancelled(%v) = true", d.err)
			}
		})
	}
}

func TestScanner_UnsupportedTagMessage(t *testing.T) {
	p := &cardsim.Provider{Tags: []*cardsim.Tag{{UID: "04", NotISO7816: true}}}
	s := newTestScanner(t, p)
	c := newCollector()

	s.StartScan(context.Background(), c.done)
	c.wait(t)

	if got := waitSession(t, p, 1).Message(); got != messageUnsupported {
		t.Errorf("invalidate message = %q, want %q", got, messageUnsupported)
	}
}

func TestScanner_Timeout(t *testing.T) {
	tests := []struct {
		name string
		tags func() []*cardsim.Tag
		// selects is the number of SELECT commands the card must have seen.
		selects int
	}{
		{
			name: "No card presented",
			tags: func() []*cardsim.Tag { return nil },
		},
		{
			// 20ms per exchange: PPSE, AID and GPO are done by 60ms, the
			// timeout fires while the records are being read.
			name: "During READ RECORD",
			tags: func() []*cardsim.Tag {
				card := cardsim.VisaCard()
				card.Latency = 20 * time.Millisecond
				return []*cardsim.Tag{{UID: "04A1", Card: card}}
			},
			selects: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := tt.tags()
			p := &cardsim.Provider{Tags: tags}
			s := newTestScanner(t, p)
			s.Timeout = 90 * time.Millisecond
			c := newCollector()

			s.StartScan(context.Background(), c.done)
			d := c.wait(t)

			if !errors.Is(d.err, ErrSessionTimeout) {
				t.Fatalf("err = %v, want ErrSessionTimeout", d.err)
			}
			if d.result != nil {
				t.Errorf("unexpected result: %+v", d.result)
			}

			sess := waitSession(t, p, 1)
			if !sess.Invalidated() {
				t.Error("session not invalidated on timeout")
			}
			if got := sess.Message(); got != messageTimeout {
				t.Errorf("invalidate message = %q, want %q", got, messageTimeout)
			}

			// Let an interrupted read run out; it must not deliver again.
			time.Sleep(200 * time.Millisecond)
			if n := c.calls.Load(); n != 1 {
				t.Errorf("callback called %d times, want 1", n)
			}
			if len(tags) > 0 {
				if n := tags[0].Card.Count(iso7816.INS_SELECT); n != tt.selects {
					t.Errorf("card received %d SELECT commands, want %d", n, tt.selects)
				}
			}
		})
	}
}

func TestScanner_Cancellation(t *testing.T) {
	otherErr := errors.New("reader unplugged")

	tests := []struct {
		name      string
		act       func(cancel context.CancelFunc, sess *cardsim.Session)
		wantErr   error
		cancelled bool
	}{
		{
			name:      "Context cancelled",
			act:       func(cancel context.CancelFunc, _ *cardsim.Session) { cancel() },
			wantErr:   ErrUserCancelled,
			cancelled: true,
		},
		{
			name:      "Dismissed by user",
			act:       func(_ context.CancelFunc, sess *cardsim.Session) { sess.Dismiss() },
			wantErr:   ErrUserCancelled,
			cancelled: true,
		},
		{
			name: "Session error",
			act: func(_ context.CancelFunc, sess *cardsim.Session) {
				sess.Emit(transport.Event{Err: otherErr})
			},
			wantErr: otherErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &cardsim.Provider{}
			s := newTestScanner(t, p)
			c := newCollector()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s.StartScan(ctx, c.done)
			sess := waitSession(t, p, 1)
			tt.act(cancel, sess)

			d := c.wait(t)
			if !errors.Is(d.err, tt.wantErr) {
				t.Errorf("err = %v, want %v", d.err, tt.wantErr)
			}
			if got := IsUserCancelled(d.err); got != tt.cancelled {
				t.Errorf("IsUserCancelled() = %v, want %v", got, tt.cancelled)
			}
			waitInvalidated(t, sess)
		})
	}
}

func TestScanner_IgnoresEventsWhileProcessing(t *testing.T) {
	card := cardsim.VisaCard()
	card.Latency = 5 * time.Millisecond
	tag := &cardsim.Tag{UID: "04A1", Card: card}

	p := &cardsim.Provider{}
	s := newTestScanner(t, p)
	c := newCollector()

	s.StartScan(context.Background(), c.done)
	sess := waitSession(t, p, 1)

	sess.Emit(transport.Event{Tags: []transport.Tag{tag}})
	sess.Emit(transport.Event{Tags: []transport.Tag{tag}})
	sess.Dismiss()

	d := c.wait(t)
	if d.err != nil {
		t.Fatalf("scan failed: %v", d.err)
	}
	if d.result.PAN != "4761739001010010" {
		t.Errorf("PAN = %q", d.result.PAN)
	}

	time.Sleep(50 * time.Millisecond)
	if n := c.calls.Load(); n != 1 {
		t.Errorf("callback called %d times, want 1", n)
	}
	// A second tag would have restarted the flow from PPSE.
	if n := card.Count(iso7816.INS_SELECT); n != 2 {
		t.Errorf("card received %d SELECT commands, want 2", n)
	}
}

func TestScanner_ReplacesActiveScan(t *testing.T) {
	p := &cardsim.Provider{
		Tags:  []*cardsim.Tag{{UID: "04A1", Card: cardsim.VisaCard()}},
		Delay: 20 * time.Millisecond,
	}
	s := newTestScanner(t, p)
	first := newCollector()
	second := newCollector()

	s.StartScan(context.Background(), first.done)
	s.StartScan(context.Background(), second.done)

	d := second.wait(t)
	if d.err != nil {
		t.Fatalf("second scan failed: %v", d.err)
	}

	time.Sleep(50 * time.Millisecond)
	if n := first.calls.Load(); n != 0 {
		t.Errorf("replaced scan callback called %d times", n)
	}
	for i, sess := range p.Sessions() {
		if !sess.Invalidated() {
			t.Errorf("session %d left open", i)
		}
	}
}

func TestScanner_Cancel(t *testing.T) {
	p := &cardsim.Provider{}
	s := newTestScanner(t, p)
	c := newCollector()

	s.StartScan(context.Background(), c.done)
	sess := waitSession(t, p, 1)

	s.Cancel()
	waitInvalidated(t, sess)

	time.Sleep(20 * time.Millisecond)
	if n := c.calls.Load(); n != 0 {
		t.Errorf("callback called %d times after Cancel", n)
	}
}
