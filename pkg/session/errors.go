package session

import "errors"

var (
	// ErrNotSupported is delivered when the host has no usable proximity reader.
	ErrNotSupported = errors.New("contactless reading not supported")

	// ErrConnection wraps the transport error of a failed Connect.
	ErrConnection = errors.New("connection to card failed")

	// ErrInvalidCardType is delivered when the detected tag does not accept APDUs.
	ErrInvalidCardType = errors.New("unsupported card type")

	// ErrUserCancelled is delivered when the scan was dismissed by the user
	// or the caller's context ended. It is not meant to be shown as a failure.
	ErrUserCancelled = errors.New("scan cancelled by user")

	// ErrSessionTimeout is delivered when no result arrived within Timeout.
	ErrSessionTimeout = errors.New("scan session timed out")
)

// IsUserCancelled reports whether err ends a scan the user chose to abort.
func IsUserCancelled(err error) bool {
	return errors.Is(err, ErrUserCancelled)
}
