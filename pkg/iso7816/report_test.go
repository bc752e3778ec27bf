package iso7816

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/emv-reader/pkg/tlv"
)

func TestReport(t *testing.T) {
	getResponse := NewCommandAPDU(Class{}, mustInstruction(INS_GET_RESPONSE), 0, 0, nil, 4)
	gpo := NewCommandAPDU(MustClass(0x80), mustInstruction(INS_GET_PROCESSING_OPTIONS), 0, 0, tlv.Hex("8300"), MaxShortLe)

	tests := []struct {
		name  string
		trace Trace
		want  []string
	}{
		{
			name: "READ RECORD",
			trace: Trace{{
				Command:  ReadRecord(Class{}, 1, 1),
				Response: &ResponseAPDU{Data: []byte("HELLO"), Status: SW_NO_ERROR},
			}},
			want: []string{
				"=== READ RECORD COMMAND REPORT ===",
				"[1] Command: READ RECORD",
				"    + Target:  SFI 01 (1)",
				"    + P1:      01 -> Record Number 1",
				"    + Mode:    04 -> Ref Num: Read Record P1",
				"    + Result:  [90 00] [OK] SW_NO_ERROR",
				"",
				"[=] DATA OUTCOME:",
				"    + Length: 5 bytes",
				"    + Dump:   48454C4C4F",
				`    + ASCII:  "HELLO"`,
			},
		},
		{
			name: "READ RECORD by identifier, not found",
			trace: Trace{{
				Command:  NewReadRecordCommand(Class{}, 2, 0xFE, RefByID_NextOccurrence),
				Response: &ResponseAPDU{Status: SW_ERR_RECORD_NOT_FOUND},
			}},
			want: []string{
				"=== READ RECORD COMMAND REPORT ===",
				"[1] Command: READ RECORD",
				"    + Target:  SFI 02 (2)",
				"    + P1:      FE -> Record Identifier FE",
				"    + Mode:    02 -> Ref ID: Next Occurrence",
				"    + Result:  [6A 83] [!!] [6A83] SW_ERR_RECORD_NOT_FOUND",
				"",
				"[=] DATA OUTCOME:",
				"    - No Data Received.",
			},
		},
		{
			name: "SELECT resolved by GET RESPONSE",
			trace: Trace{
				{Command: SelectByAID(Class{}, []byte("2PAY.SYS.DDF01")), Response: &ResponseAPDU{Status: NewStatusWord(0x61, 0x04)}},
				{Command: getResponse, Response: &ResponseAPDU{Data: tlv.Hex("6F028400"), Status: SW_NO_ERROR}},
			},
			want: []string{
				"=== SELECT COMMAND REPORT ===",
				"[1] Command: SELECT FILE",
				"    + Method:  04 -> Select by DF Name (AID)",
				"    + Control: 00 -> Return FCI",
				`    + Data:    325041592E5359532E4444463031 ("2PAY.SYS.DDF01")`,
				"    + Result:  [61 04] [OK] 04 (4) bytes still available",
				"",
				"[2] Protocol: Auto-handling (2 steps)",
				"    + Action:   GET RESPONSE",
				"    + Final SW: [9000]",
				"",
				"[=] DATA OUTCOME:",
				"    + Length: 4 bytes",
				"    + Dump:   6F028400",
				`    + ASCII:  "o..."`,
			},
		},
		{
			name: "GET PROCESSING OPTIONS re-issued with Le",
			trace: Trace{
				{Command: gpo, Response: &ResponseAPDU{Status: NewStatusWord(0x6C, 0x04)}},
				{Command: gpo, Response: &ResponseAPDU{Data: tlv.Hex("80020000"), Status: SW_NO_ERROR}},
			},
			want: []string{
				"=== GET PROCESSING OPTIONS COMMAND REPORT ===",
				"[1] Command: 80 A8 00 00",
				"    + Data:    8300",
				"    + Result:  [6C 04] [!!] Wrong length, correct is 04 (4)",
				"",
				"[2] Protocol: Auto-handling (2 steps)",
				"    + Action:   RE-ISSUE (Corrected Le)",
				"    + Final SW: [9000]",
				"",
				"[=] DATA OUTCOME:",
				"    + Length: 4 bytes",
				"    + Dump:   80020000",
				`    + ASCII:  "...."`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Report(tt.trace)
			if err != nil {
				t.Fatalf("Report() failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, strings.Split(got, "\n")); diff != "" {
				t.Errorf("Report() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReport_Errors(t *testing.T) {
	for name, trace := range map[string]Trace{
		"Empty":       nil,
		"No response": {{Command: ReadRecord(Class{}, 1, 1)}},
		"No command":  {{Response: &ResponseAPDU{Status: SW_NO_ERROR}}},
	} {
		if _, err := Report(trace); err == nil {
			t.Errorf("Report(%s) succeeded, want error", name)
		}
	}
}
