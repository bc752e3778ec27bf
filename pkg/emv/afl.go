package emv

import (
	"fmt"

	"github.com/gregLibert/emv-reader/pkg/bits"
)

// APPLICATION FILE LOCATOR (AFL):
// The AFL returned by GET PROCESSING OPTIONS lists the records holding the
// application data, in groups of 4 bytes:
//
//	Byte 1: bits 8-4 = SFI, bits 3-1 = RFU
//	Byte 2: first record number
//	Byte 3: last record number
//	Byte 4: number of records involved in offline data authentication

// AFLEntry is one 4-byte group of the AFL.
type AFLEntry struct {
	SFI                byte
	FirstRecord        byte
	LastRecord         byte
	OfflineAuthRecords byte
}

// Valid reports whether the entry names a file and a usable record range.
// SFI 0 would address the current EF, which is not part of the AFL.
func (e AFLEntry) Valid() bool {
	return e.SFI != 0 && e.FirstRecord != 0 && e.LastRecord >= e.FirstRecord
}

// Records returns the record numbers of the entry, first to last.
func (e AFLEntry) Records() []byte {
	if !e.Valid() {
		return nil
	}
	recs := make([]byte, 0, int(e.LastRecord)-int(e.FirstRecord)+1)
	for r := int(e.FirstRecord); r <= int(e.LastRecord); r++ {
		recs = append(recs, byte(r))
	}
	return recs
}

func (e AFLEntry) String() string {
	return fmt.Sprintf("SFI %d records %d-%d (ODA %d)", e.SFI, e.FirstRecord, e.LastRecord, e.OfflineAuthRecords)
}

// ParseAFL splits raw AFL bytes into entries. The length must be a non-zero
// multiple of 4. Entries are returned as encoded, including invalid ones;
// callers skip those with Valid.
func ParseAFL(raw []byte) ([]AFLEntry, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("malformed AFL: length %d is not a non-zero multiple of 4", len(raw))
	}

	entries := make([]AFLEntry, 0, len(raw)/4)
	for i := 0; i < len(raw); i += 4 {
		entries = append(entries, AFLEntry{
			SFI:                bits.GetRange(raw[i], 8, 4),
			FirstRecord:        raw[i+1],
			LastRecord:         raw[i+2],
			OfflineAuthRecords: raw[i+3],
		})
	}
	return entries, nil
}
