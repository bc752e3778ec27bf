package iso7816

import (
	"errors"
	"fmt"

	"github.com/gregLibert/emv-reader/pkg/bits"
)

// CLA byte layout (ISO 7816-4 5.4.1):
//
//	0 0 0 C S S L L   first interindustry, channels 0-3, two SM bits
//	0 1 S C L L L L   further interindustry, channels 4-19, one SM bit
//	1 x x x x x x x   proprietary
//
// C is command chaining. EMV sends SELECT and READ RECORD with '00' and
// GET PROCESSING OPTIONS with the proprietary '80'.

// SecureMessaging is the SM indication of an interindustry class.
type SecureMessaging int

const (
	SMNone SecureMessaging = iota
	SMProprietary
	SMHeaderNoProc
	SMHeaderAuth
)

func (sm SecureMessaging) String() string {
	switch sm {
	case SMNone:
		return "None"
	case SMProprietary:
		return "Proprietary"
	case SMHeaderNoProc:
		return "ISO (Header not processed)"
	case SMHeaderAuth:
		return "ISO (Header authenticated)"
	}
	return "Unknown"
}

// Class is a decoded CLA byte.
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

var errReservedClass = errors.New("invalid CLA value: 0xFF is reserved")

// NewClass decodes cla.
func NewClass(cla byte) (Class, error) {
	switch {
	case cla == 0xFF:
		return Class{}, errReservedClass
	case bits.IsSet(cla, 8):
		return Class{Raw: cla, IsProprietary: true}, nil
	}

	c := Class{Raw: cla, IsChained: bits.IsSet(cla, 5)}
	if bits.IsSet(cla, 7) {
		c.Channel = 4 + bits.GetRange(cla, 4, 1)
		if bits.IsSet(cla, 6) {
			c.SecureMessaging = SMHeaderNoProc
		}
	} else {
		c.Channel = bits.GetRange(cla, 2, 1)
		c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
	}
	return c, nil
}

// MustClass is NewClass for constant CLA bytes.
func MustClass(cla byte) Class {
	c, err := NewClass(cla)
	if err != nil {
		panic(err)
	}
	return c
}

// Encode rebuilds the CLA byte. Proprietary classes are returned as is.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}

	var cla byte
	if c.IsChained {
		cla = bits.Set(cla, 5)
	}

	switch {
	case c.Channel <= 3:
		return cla | bits.PutRange(byte(c.SecureMessaging), 4, 3) | c.Channel, nil
	case c.Channel > 19:
		return 0, fmt.Errorf("channel %d out of range (max 19)", c.Channel)
	case c.SecureMessaging == SMProprietary || c.SecureMessaging == SMHeaderAuth:
		return 0, fmt.Errorf("secure messaging %q cannot be sent on channel %d", c.SecureMessaging, c.Channel)
	}

	cla = bits.Set(cla, 7)
	if c.SecureMessaging != SMNone {
		cla = bits.Set(cla, 6)
	}
	return cla | (c.Channel - 4), nil
}

// Verbose describes the class for traces.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}
	chaining := "Last or only command"
	if c.IsChained {
		chaining = "More commands follow (Chaining)"
	}
	return fmt.Sprintf("Class: Interindustry | Chaining: %s | Secure Messaging: %s | Logical Channel: %d",
		chaining, c.SecureMessaging, c.Channel)
}
