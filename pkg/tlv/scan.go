package tlv

import (
	"bytes"
	"fmt"
)

// FLAT SCANNING:
// Card responses nest their data objects inside templates ('6F', '70', '77'...)
// whose layout varies between issuers. Rather than walking the tree, the scanner
// moves over the raw buffer one byte at a time and stops at the first offset
// where the requested tag is followed by a length that fits in what remains.
//
// This finds a data object whatever template wraps it, and it never fails:
// malformed or truncated input only means "not found".
//
// LENGTH FIELD (BER):
// - '00'..'7F': short form, the byte is the length.
// - '81' XX:    long form, one length byte (128..255).
// - '82' XXXX:  long form, two length bytes.
// Other long forms are not used by EMV cards and are rejected.

// Tag identifies a BER-TLV data object by its complete tag bytes.
// One-byte tags are stored as is (0x5A), two-byte tags big endian (0x5F20).
type Tag uint16

// Bytes returns the encoded tag.
func (t Tag) Bytes() []byte {
	if t > 0xFF {
		return []byte{byte(t >> 8), byte(t)}
	}
	return []byte{byte(t)}
}

// String returns the tag in the usual uppercase hex notation.
func (t Tag) String() string {
	if t > 0xFF {
		return fmt.Sprintf("%04X", uint16(t))
	}
	return fmt.Sprintf("%02X", uint16(t))
}

// Element is a single data object found in a buffer.
type Element struct {
	Tag    Tag
	Length int
	Value  []byte
}

// FindElement scans data left to right and returns the first element whose
// full tag matches. The returned Value aliases data.
func FindElement(tag Tag, data []byte) (Element, bool) {
	tagBytes := tag.Bytes()

	for i := 0; i+len(tagBytes) < len(data); i++ {
		if !bytes.Equal(data[i:i+len(tagBytes)], tagBytes) {
			continue
		}

		lengthStart := i + len(tagBytes)
		length, lengthSize, ok := readLength(data[lengthStart:])
		if !ok {
			continue
		}

		valueStart := lengthStart + lengthSize
		if length > len(data)-valueStart {
			continue
		}

		return Element{
			Tag:    tag,
			Length: length,
			Value:  data[valueStart : valueStart+length],
		}, true
	}

	return Element{}, false
}

// FindFirst returns the value bytes of the first element carrying tag.
func FindFirst(tag Tag, data []byte) ([]byte, bool) {
	el, ok := FindElement(tag, data)
	if !ok {
		return nil, false
	}
	return el.Value, true
}

// readLength decodes a BER length field at the start of b.
// It returns the length, the number of bytes the field occupies, and false
// when the field is truncated or uses an unsupported form.
func readLength(b []byte) (int, int, bool) {
	if len(b) == 0 {
		return 0, 0, false
	}

	switch first := b[0]; {
	case first < 0x80:
		return int(first), 1, true
	case first == 0x81:
		if len(b) < 2 {
			return 0, 0, false
		}
		return int(b[1]), 2, true
	case first == 0x82:
		if len(b) < 3 {
			return 0, 0, false
		}
		return int(b[1])<<8 | int(b[2]), 3, true
	default:
		return 0, 0, false
	}
}
