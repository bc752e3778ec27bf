// Package bits holds the bit-numbering helpers used when decoding ISO 7816 and
// EMV header bytes. Bits are numbered 1 (least significant) to 8, the way the
// ISO and EMV tables print them.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set returns b with the n-th bit raised.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// GetRange extracts the value held by bits high..low.
// Example: GetRange(0b00001100, 4, 3) returns 3 (0b11).
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}
	return (b >> (low - 1)) & mask(high, low)
}

// PutRange is the inverse of GetRange: it places v into bits high..low of an
// otherwise empty byte. Bits of v that do not fit are dropped.
// Example: PutRange(1, 8, 4) returns 0b00001000 (SFI 1 in a READ RECORD P2).
func PutRange(v byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}
	return (v & mask(high, low)) << (low - 1)
}

func mask(high, low uint) byte {
	width := high - low + 1
	return byte((1 << width) - 1)
}
