package emv

import (
	"errors"
	"fmt"

	"github.com/gregLibert/emv-reader/pkg/iso7816"
)

// ErrRead matches every *ReadError with errors.Is.
var ErrRead = errors.New("emv read error")

// Failure reasons reported by the read flow.
const (
	ReasonNoApplication  = "no payment application found"
	ReasonSelectRejected = "application selection rejected"
	ReasonNoCardData     = "could not read card data"
)

// ReadError is the terminal failure of a read flow.
type ReadError struct {
	// State is the flow state that failed.
	State State
	// Reason is one of the Reason* messages.
	Reason string
	// Status is the last status word received in State, if any.
	Status iso7816.StatusWord
	// Err is the transport error behind the failure, if any.
	Err error
}

func (e *ReadError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.State, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (SW %04X)", uint16(e.Status))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrRead }
