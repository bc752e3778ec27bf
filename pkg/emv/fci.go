package emv

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gregLibert/emv-reader/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// Both SELECT answers of a contactless read are FCI templates ('6F'):
//
//	PPSE  6F { 84 "2PAY.SYS.DDF01", A5 { BF0C { 61 {4F 50 87} 61 ... } } }
//	AID   6F { 84 <AID>, A5 { 50 87 9F38 5F2D 9F12 ... } }
//
// The read itself only needs the first '4F'; FCI exists for the verbose
// report.

// FCI is a decoded '6F' template.
type FCI struct {
	DFName      []byte         `tlv:"84" fmt:"ascii"`
	Proprietary FCIProprietary `tlv:"A5"`
}

// FCIProprietary is the 'A5' template.
type FCIProprietary struct {
	ApplicationLabel             []byte `tlv:"50" fmt:"ascii"`
	ApplicationPriorityIndicator []byte `tlv:"87" fmt:"int"`
	PDOL                         []byte `tlv:"9F38"`
	LanguagePreference           []byte `tlv:"5F2D" fmt:"ascii"`
	IssuerCodeTableIndex         []byte `tlv:"9F11" fmt:"int"`
	ApplicationPreferredName     []byte `tlv:"9F12" fmt:"ascii"`

	Discretionary *FCIDiscretionary `tlv:"BF0C"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FCIDiscretionary is the 'BF0C' template, the PPSE directory.
type FCIDiscretionary struct {
	Entries []DirectoryEntry `tlv:"61"`

	LogEntry  []byte `tlv:"9F4D"`
	IssuerURL []byte `tlv:"5F50" fmt:"ascii"`
	IssuerIIN []byte `tlv:"42"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// DirectoryEntry is one '61' application template of the PPSE.
type DirectoryEntry struct {
	AID              []byte `tlv:"4F"`
	ApplicationLabel []byte `tlv:"50" fmt:"ascii"`
	Priority         []byte `tlv:"87" fmt:"int"`
	KernelIdentifier []byte `tlv:"9F2A"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// Rank is the priority number (1 is highest) or 0 when the card gave none.
// Bit 8 only asks for cardholder confirmation.
func (e DirectoryEntry) Rank() int {
	if len(e.Priority) == 0 {
		return 0
	}
	return int(e.Priority[0] & 0x0F)
}

var errEmptyFCI = errors.New("empty FCI")

// ParseFCI decodes a SELECT answer. The '6F' wrapper is optional.
func ParseFCI(data []byte) (*FCI, error) {
	if len(data) == 0 {
		return nil, errEmptyFCI
	}
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}
	if len(packets) == 1 && strings.EqualFold(packets[0].Tag, TagFCITemplate.String()) {
		packets = packets[0].TLVs
	}

	var fci FCI
	if err := tlv.UnmarshalFromPackets(packets, &fci); err != nil {
		return nil, fmt.Errorf("FCI: %w", err)
	}
	return &fci, nil
}

// Directory returns the PPSE entries ranked by priority. Unranked entries
// follow in card order.
func (f *FCI) Directory() []DirectoryEntry {
	if f.Proprietary.Discretionary == nil {
		return nil
	}
	entries := slices.Clone(f.Proprietary.Discretionary.Entries)
	slices.SortStableFunc(entries, func(a, b DirectoryEntry) int {
		ra, rb := a.Rank(), b.Rank()
		switch {
		case ra == rb:
			return 0
		case ra == 0:
			return 1
		case rb == 0:
			return -1
		}
		return ra - rb
	})
	return entries
}

func (f *FCI) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EMV FCI TEMPLATE ===")
	tlv.WriteStructFields(&sb, "FCI", f)
	tlv.WriteStructFields(&sb, "Proprietary", f.Proprietary)
	if dd := f.Proprietary.Discretionary; dd != nil {
		tlv.WriteStructFields(&sb, "Directory", dd)
		for i, e := range dd.Entries {
			tlv.WriteStructFields(&sb, fmt.Sprintf("Entry[%d]", i+1), e)
		}
	}
	return sb.String()
}
