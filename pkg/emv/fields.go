package emv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gregLibert/emv-reader/pkg/tlv"
	"golang.org/x/text/encoding/charmap"
)

// FIELD EXTRACTORS:
// Each extractor pulls one data object out of a raw response buffer with the
// flat TLV scanner and renders it the way CardReadResult stores it.
// An empty string means "absent".

// ExtractPAN returns the Primary Account Number (tag '5A') as uppercase hex.
// Trailing 'F' padding nibbles are kept.
func ExtractPAN(data []byte) string {
	v, ok := tlv.FindFirst(TagPAN, data)
	if !ok {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(v))
}

// ExtractTrack2 returns the Track 2 Equivalent Data (tag '57') as uppercase hex.
func ExtractTrack2(data []byte) string {
	v, ok := tlv.FindFirst(TagTrack2, data)
	if !ok {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(v))
}

// PANFromTrack2 returns the digits before the 'D' field separator of a
// hex-rendered track 2, or "" when there is no separator.
func PANFromTrack2(track2 string) string {
	pan, _, found := strings.Cut(track2, "D")
	if !found {
		return ""
	}
	return pan
}

// ExtractExpiry formats tag '5F24' as MM/YY.
//
// The month is taken from the second value byte and the year from the first:
// '25 12 31' gives "12/25". The day byte, when present, is ignored.
func ExtractExpiry(data []byte) string {
	v, ok := tlv.FindFirst(TagExpiryDate, data)
	if !ok || len(v) < 2 {
		return ""
	}
	return fmt.Sprintf("%02X/%02X", v[1], v[0])
}

// ExtractCardholderName returns tag '5F20' as trimmed 7-bit text.
func ExtractCardholderName(data []byte) string {
	v, ok := tlv.FindFirst(TagCardholderName, data)
	if !ok {
		return ""
	}
	s, _ := decodeASCII(v)
	return s
}

// ExtractApplicationLabel returns tag '50' as trimmed 7-bit text.
func ExtractApplicationLabel(data []byte) string {
	v, ok := tlv.FindFirst(TagApplicationLabel, data)
	if !ok {
		return ""
	}
	s, _ := decodeASCII(v)
	return s
}

// ExtractPreferredName returns the Application Preferred Name (tag '9F12')
// decoded with the ISO 8859 part named by the Issuer Code Table Index ('9F11').
// Without a known code table the name is only accepted as 7-bit text.
func ExtractPreferredName(data []byte) string {
	v, ok := tlv.FindFirst(TagApplicationPreferredName, data)
	if !ok {
		return ""
	}

	var cmap *charmap.Charmap
	if idx, ok := tlv.FindFirst(TagIssuerCodeTableIndex, data); ok && len(idx) == 1 {
		cmap = codeTable(idx[0])
	}

	if cmap == nil {
		s, _ := decodeASCII(v)
		return s
	}

	s, err := cmap.NewDecoder().String(string(v))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// codeTable maps an Issuer Code Table Index (1..10) to ISO/IEC 8859-n.
func codeTable(index byte) *charmap.Charmap {
	switch index {
	case 1:
		return charmap.ISO8859_1
	case 2:
		return charmap.ISO8859_2
	case 3:
		return charmap.ISO8859_3
	case 4:
		return charmap.ISO8859_4
	case 5:
		return charmap.ISO8859_5
	case 6:
		return charmap.ISO8859_6
	case 7:
		return charmap.ISO8859_7
	case 8:
		return charmap.ISO8859_8
	case 9:
		return charmap.ISO8859_9
	case 10:
		return charmap.ISO8859_10
	default:
		return nil
	}
}

// decodeASCII rejects any byte above 0x7F and trims surrounding whitespace.
func decodeASCII(b []byte) (string, bool) {
	for _, c := range b {
		if c > 0x7F {
			return "", false
		}
	}
	return strings.TrimSpace(string(b)), true
}
