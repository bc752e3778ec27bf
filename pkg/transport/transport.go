// Package transport defines the boundary between the card reading engine and
// the proximity hardware. A Provider opens polling sessions; a Session
// reports the tags it detects and connects to one of them, handing back an
// iso7816.Transmitter for the APDU exchange.
//
// Implementations live in the sub-packages (pcsc, libnfc) and in the card
// simulator used by tests.
package transport

import (
	"context"
	"errors"

	"github.com/gregLibert/emv-reader/pkg/iso7816"
)

// ErrUserCancelled is reported through Event.Err when the environment
// dismisses the session on behalf of the user.
var ErrUserCancelled = errors.New("session cancelled by user")

// ErrInvalidated is returned by Connect once the session was invalidated.
var ErrInvalidated = errors.New("session invalidated")

// Tag is a candidate detected in the field.
type Tag interface {
	// ID identifies the candidate, typically its UID in hex.
	ID() string
	// ISO7816 reports whether the candidate accepts ISO 7816-4 APDUs.
	ISO7816() bool
}

// Event is a detection report. Err is set when the session ended on the
// transport side; no events follow it.
type Event struct {
	Tags []Tag
	Err  error
}

// Session is one polling session.
type Session interface {
	// Events delivers detections until the session ends.
	Events() <-chan Event

	// Connect opens the APDU channel to tag.
	Connect(ctx context.Context, tag Tag) (iso7816.Transmitter, error)

	// Invalidate ends the session and releases the hardware. It is safe to
	// call more than once; message is shown to the user where supported.
	Invalidate(message string)
}

// Provider gives access to the proximity hardware.
type Provider interface {
	// Available reports whether reading is possible on this host.
	Available() bool

	// Begin starts polling for tags.
	Begin(ctx context.Context) (Session, error)
}
