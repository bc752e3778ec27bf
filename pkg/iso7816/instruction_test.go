package iso7816

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewInstruction(t *testing.T) {
	tests := []struct {
		ins     InsCode
		want    Instruction
		verbose string
		wantErr bool
	}{
		{
			ins:     INS_SELECT,
			want:    Instruction{Raw: INS_SELECT},
			verbose: "INS: 0xA4 | Command: INS_SELECT | Format: Standard",
		},
		{
			ins:     INS_GET_PROCESSING_OPTIONS,
			want:    Instruction{Raw: INS_GET_PROCESSING_OPTIONS},
			verbose: "INS: 0xA8 | Command: INS_GET_PROCESSING_OPTIONS | Format: Standard",
		},
		{
			ins:     INS_READ_BINARY_BER,
			want:    Instruction{Raw: INS_READ_BINARY_BER, IsBERTLV: true},
			verbose: "INS: 0xB1 | Command: INS_READ_BINARY_BER | Format: BER-TLV",
		},
		{
			ins:     0xE2,
			want:    Instruction{Raw: 0xE2},
			verbose: "INS: 0xE2 | Command: InsCode(0xE2) | Format: Standard",
		},
		{ins: 0x61, wantErr: true},
		{ins: 0x6C, wantErr: true},
		{ins: 0x90, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ins.String(), func(t *testing.T) {
			got, err := NewInstruction(tt.ins)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewInstruction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewInstruction() mismatch (-want +got):\n%s", diff)
			}
			if v := got.Verbose(); v != tt.verbose {
				t.Errorf("Verbose() = %q, want %q", v, tt.verbose)
			}
		})
	}
}
