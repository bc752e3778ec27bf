package tlv

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moov-io/bertlv"
)

type rawHex struct {
	Val string
}

func (r *rawHex) UnmarshalTLV(data []byte) error {
	r.Val = "custom:" + hex.EncodeToString(data)
	return nil
}

type entry struct {
	AID   []byte `tlv:"4F"`
	Label string `tlv:"50" fmt:"ascii"`
}

type proprietary struct {
	Priority []byte  `tlv:"87"`
	Entries  []entry `tlv:"61"`
}

type fciLike struct {
	DFName      []byte       `tlv:"84"`
	PDOL        string       `tlv:"9F38"`
	Name        string       `tlv:"5F20" fmt:"ascii"`
	Proprietary *proprietary `tlv:"a5"`
	Amount      rawHex       `tlv:"9F02"`
	Unknown     []bertlv.TLV
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want fciLike
	}{
		{
			name: "Primitive fields",
			data: Hex(
				"84 02 1122",
				"9F38 03 9F6604",
				"5F20 04 444F4520",
				"9F02 01 AA",
			),
			want: fciLike{
				DFName: Hex("1122"),
				PDOL:   "9F6604",
				Name:   "DOE",
				Amount: rawHex{Val: "custom:aa"},
			},
		},
		{
			name: "Nested template with repeated entries",
			data: Hex(
				"A5 16",
				"87 01 01",
				"61 08 4F 02 A001 50 02 4142",
				"61 07 4F 02 A002 50 01 43",
			),
			want: fciLike{
				Proprietary: &proprietary{
					Priority: Hex("01"),
					Entries: []entry{
						{AID: Hex("A001"), Label: "AB"},
						{AID: Hex("A002"), Label: "C"},
					},
				},
			},
		},
		{
			name: "First occurrence wins",
			data: Hex("84 01 01", "84 01 02"),
			want: fciLike{DFName: Hex("01")},
		},
		{
			name: "Unclaimed objects",
			data: Hex("84 01 01", "DF01 01 BB"),
			want: fciLike{
				DFName:  Hex("01"),
				Unknown: []bertlv.TLV{{Tag: "DF01", Value: Hex("BB")}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got fciLike
			if err := Unmarshal(tt.data, &got); err != nil {
				t.Fatalf("Unmarshal() failed: %v", err)
			}
			for i := range got.Unknown {
				got.Unknown[i].Tag = strings.ToUpper(got.Unknown[i].Tag)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Unmarshal() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	var s fciLike
	var n int

	tests := []struct {
		name   string
		data   []byte
		target any
	}{
		{"Non-pointer target", Hex("84 00"), fciLike{}},
		{"Nil pointer", Hex("84 00"), (*fciLike)(nil)},
		{"Pointer to non-struct", Hex("84 00"), &n},
		{"Truncated data", Hex("84 05 11"), &s},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Unmarshal(tt.data, tt.target); err == nil {
				t.Error("Unmarshal() succeeded, want error")
			}
		})
	}
}

func TestGetValue(t *testing.T) {
	data := Hex("84 02 1122", "5F24 03 251231", "A5 03 8701 01")

	tests := []struct {
		name    string
		data    []byte
		tag     Tag
		want    []byte
		wantErr bool
	}{
		{name: "One-byte tag", data: data, tag: 0x84, want: Hex("1122")},
		{name: "Two-byte tag", data: data, tag: 0x5F24, want: Hex("251231")},
		{name: "Constructed", data: data, tag: 0xA5, want: Hex("8701 01")},
		{name: "Missing", data: data, tag: 0x99, wantErr: true},
		{name: "Malformed", data: Hex("84 05 11"), tag: 0x84, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetValue(tt.data, tt.tag)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GetValue() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
