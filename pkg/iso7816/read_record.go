package iso7816

import (
	"fmt"

	"github.com/gregLibert/emv-reader/pkg/bits"
)

// READ RECORD (INS 'B2'): P1 is a record number or identifier, P2 packs the
// file and the addressing mode:
//
//	bits 8-4  SFI, 0 for the current EF
//	bits 3-1  mode
//
// EMV always reads by number, one record at a time: P2 = SFI<<3 | 4.

// MaxSFI is the largest SFI P2 can carry.
const MaxSFI = 30

// ReadRecordMode is the low three bits of P2.
type ReadRecordMode byte

const (
	RefByID_FirstOccurrence ReadRecordMode = 0b000
	RefByID_NextOccurrence  ReadRecordMode = 0b010
	RefByNum_ReadP1         ReadRecordMode = 0b100
	RefByNum_ReadAllFromP1  ReadRecordMode = 0b101
)

var readRecordModes = map[ReadRecordMode]string{
	RefByID_FirstOccurrence: "Ref ID: First Occurrence",
	RefByID_NextOccurrence:  "Ref ID: Next Occurrence",
	RefByNum_ReadP1:         "Ref Num: Read Record P1",
	RefByNum_ReadAllFromP1:  "Ref Num: Read All from P1",
}

func (m ReadRecordMode) String() string {
	if s, ok := readRecordModes[m]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Mode (0x%X)", byte(m))
}

// NewReadRecordCommand builds a case 2 READ RECORD asking for up to 256 bytes.
func NewReadRecordCommand(cla Class, sfi, p1 byte, mode ReadRecordMode) *CommandAPDU {
	p2 := bits.PutRange(sfi, 8, 4) | bits.PutRange(byte(mode), 3, 1)
	return NewCommandAPDU(cla, mustInstruction(INS_READ_RECORD), p1, p2, nil, MaxShortLe)
}

// ReadRecord reads record number n of file sfi.
func ReadRecord(cla Class, sfi, n byte) *CommandAPDU {
	return NewReadRecordCommand(cla, sfi, n, RefByNum_ReadP1)
}

// ParseReadRecordP2 is the inverse of the P2 packing above.
func ParseReadRecordP2(p2 byte) (sfi byte, mode ReadRecordMode) {
	return bits.GetRange(p2, 8, 4), ReadRecordMode(bits.GetRange(p2, 3, 1))
}
