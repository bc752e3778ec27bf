package iso7816

import (
	"fmt"

	"github.com/gregLibert/emv-reader/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// 1. Data Encoding (Bit 1):
//    When using the interindustry class, bit 1 often indicates the format
//    of the data field (0: standard, 1: BER-TLV).
//
// 2. Reserved Ranges:
//    INS values '6X' and '9X' are reserved for Status Words (SW1) and
//    transport layer procedures (ISO/IEC 7816-3).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by a contactless payment read.
const (
	INS_EXTERNAL_AUTHENTICATE InsCode = 0x82
	INS_GET_CHALLENGE         InsCode = 0x84
	INS_INTERNAL_AUTHENTICATE InsCode = 0x88
	INS_SELECT                InsCode = 0xA4
	INS_READ_BINARY           InsCode = 0xB0
	INS_READ_BINARY_BER       InsCode = 0xB1
	INS_READ_RECORD           InsCode = 0xB2
	INS_GET_RESPONSE          InsCode = 0xC0
	INS_GET_DATA              InsCode = 0xCA

	// EMV proprietary instructions (CLA '80').
	INS_GET_PROCESSING_OPTIONS InsCode = 0xA8
	INS_GENERATE_AC            InsCode = 0xAE
)

var insNames = map[InsCode]string{
	INS_EXTERNAL_AUTHENTICATE:  "INS_EXTERNAL_AUTHENTICATE",
	INS_GET_CHALLENGE:          "INS_GET_CHALLENGE",
	INS_INTERNAL_AUTHENTICATE:  "INS_INTERNAL_AUTHENTICATE",
	INS_SELECT:                 "INS_SELECT",
	INS_READ_BINARY:            "INS_READ_BINARY",
	INS_READ_BINARY_BER:        "INS_READ_BINARY_BER",
	INS_READ_RECORD:            "INS_READ_RECORD",
	INS_GET_RESPONSE:           "INS_GET_RESPONSE",
	INS_GET_DATA:               "INS_GET_DATA",
	INS_GET_PROCESSING_OPTIONS: "INS_GET_PROCESSING_OPTIONS",
	INS_GENERATE_AC:            "INS_GENERATE_AC",
}

func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("InsCode(0x%02X)", byte(i))
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction object with validation.
// It rejects '6X' and '9X' values as they are invalid according to ISO 7816-3.
func NewInstruction(ins InsCode) (Instruction, error) {
	highNibble := bits.GetRange(byte(ins), 8, 5)
	if highNibble == 0x6 || highNibble == 0x9 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// mustInstruction is used by the builders with the constants above, which are all valid.
func mustInstruction(ins InsCode) Instruction {
	i, err := NewInstruction(ins)
	if err != nil {
		panic(err)
	}
	return i
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw.String(), format)
}
