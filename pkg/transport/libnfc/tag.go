// Package libnfc implements the proximity transport over a libnfc device
// (PN53x readers and the like).
//
// The device code needs the libnfc C library and is only built with the
// "libnfc" build tag. The target model below is plain Go.
package libnfc

import (
	"encoding/hex"
	"fmt"
)

// sakISO14443_4 is the SAK bit announcing ISO 14443-4 compliance (bit 6).
const sakISO14443_4 = 0x20

// SupportsISO14443_4 reports whether a type A target with the given SAK
// speaks the ISO 14443-4 block protocol that carries APDUs.
func SupportsISO14443_4(sak byte) bool {
	return sak&sakISO14443_4 != 0
}

// Tag is a type A target listed by the device.
type Tag struct {
	UID  []byte
	ATQA [2]byte
	SAK  byte
}

func (t *Tag) ID() string    { return hex.EncodeToString(t.UID) }
func (t *Tag) ISO7816() bool { return SupportsISO14443_4(t.SAK) }

func (t *Tag) String() string {
	return fmt.Sprintf("UID %X ATQA %X SAK %02X", t.UID, t.ATQA[:], t.SAK)
}
