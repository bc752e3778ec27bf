package iso7816

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gregLibert/emv-reader/pkg/tlv"
)

var errEmptyTrace = errors.New("cannot report an empty trace")

// Report renders the exchanges of one logical command for the debug log:
//
//	=== SELECT COMMAND REPORT ===
//	[1] Command: SELECT FILE
//	    + ...parameters...
//	    + Result:  [61 04] [OK] ...
//	[2] Protocol: Auto-handling (2 steps)
//	[=] DATA OUTCOME:
//
// SELECT and READ RECORD get their parameters decoded, other commands are
// shown by name.
func Report(t Trace) (string, error) {
	if len(t) == 0 {
		return "", errEmptyTrace
	}
	first := t[0]
	if first.Command == nil || first.Response == nil {
		return "", errors.New("trace starts with an incomplete transaction")
	}

	var lines []string
	switch cmd := first.Command; cmd.Instruction.Raw {
	case INS_SELECT:
		lines = append(lines, "=== SELECT COMMAND REPORT ===", "[1] Command: SELECT FILE")
		lines = append(lines, selectParams(cmd)...)
	case INS_READ_RECORD:
		lines = append(lines, "=== READ RECORD COMMAND REPORT ===", "[1] Command: READ RECORD")
		lines = append(lines, readRecordParams(cmd)...)
	default:
		name := strings.TrimPrefix(cmd.Instruction.Raw.String(), "INS_")
		lines = append(lines,
			fmt.Sprintf("=== %s COMMAND REPORT ===", strings.ReplaceAll(name, "_", " ")),
			fmt.Sprintf("[1] Command: %02X %02X %02X %02X", cmd.Class.Raw, byte(cmd.Instruction.Raw), cmd.P1, cmd.P2))
		if len(cmd.Data) > 0 {
			lines = append(lines, fmt.Sprintf("    + Data:    %X", cmd.Data))
		}
	}
	lines = append(lines, "    + Result:  "+statusLine(first.Response.Status), "")

	if last := t.Last(); len(t) > 1 {
		action := "RE-ISSUE (Corrected Le)"
		if last.Command.Instruction.Raw == INS_GET_RESPONSE {
			action = "GET RESPONSE"
		}
		lines = append(lines,
			fmt.Sprintf("[2] Protocol: Auto-handling (%d steps)", len(t)),
			"    + Action:   "+action,
			fmt.Sprintf("    + Final SW: [%04X]", uint16(t.Status())),
			"")
	}

	lines = append(lines, "[=] DATA OUTCOME:")
	if data := t.Data(); len(data) > 0 {
		lines = append(lines,
			fmt.Sprintf("    + Length: %d bytes", len(data)),
			fmt.Sprintf("    + Dump:   %X", data),
			fmt.Sprintf("    + ASCII:  %q", tlv.MakeSafeASCII(data)))
	} else {
		lines = append(lines, "    - No Data Received.")
	}
	return strings.Join(lines, "\n"), nil
}

func selectParams(cmd *CommandAPDU) []string {
	ctrl := "Return FCI"
	switch SelectionControl(cmd.P2 & 0x0C) {
	case ReturnFCP:
		ctrl = "Return FCP"
	case ReturnNoData:
		ctrl = "No Data"
	}
	if FileOccurrence(cmd.P2&0x03) == NextOccurrence {
		ctrl += " | Next Occurrence"
	}

	lines := []string{
		fmt.Sprintf("    + Method:  %02X -> %s", cmd.P1, SelectionMethod(cmd.P1)),
		fmt.Sprintf("    + Control: %02X -> %s", cmd.P2, ctrl),
	}
	if len(cmd.Data) > 0 {
		lines = append(lines, fmt.Sprintf("    + Data:    %X (%q)", cmd.Data, tlv.MakeSafeASCII(cmd.Data)))
	}
	return lines
}

func readRecordParams(cmd *CommandAPDU) []string {
	sfi, mode := ParseReadRecordP2(cmd.P2)

	target := "Current EF"
	if sfi > 0 {
		target = fmt.Sprintf("SFI %02X (%d)", sfi, sfi)
	}

	record := fmt.Sprintf("Record Number %d", cmd.P1)
	switch {
	case mode&RefByNum_ReadP1 == 0:
		record = fmt.Sprintf("Record Identifier %02X", cmd.P1)
	case cmd.P1 == 0:
		record = "Current Record"
	}

	return []string{
		"    + Target:  " + target,
		fmt.Sprintf("    + P1:      %02X -> %s", cmd.P1, record),
		fmt.Sprintf("    + Mode:    %02X -> %s", byte(mode), mode),
	}
}

// statusLine renders "[SW1 SW2] [OK|!!] description".
func statusLine(sw StatusWord) string {
	mark, desc := "[OK]", "SW_NO_ERROR"
	switch {
	case sw.SW1() == 0x61:
		desc = fmt.Sprintf("%02X (%d) bytes still available", sw.SW2(), sw.SW2())
	case sw.SW1() == 0x6C:
		mark, desc = "[!!]", fmt.Sprintf("Wrong length, correct is %02X (%d)", sw.SW2(), sw.SW2())
	case sw != SW_NO_ERROR:
		mark, desc = "[!!]", sw.Verbose()
	}
	return fmt.Sprintf("[%02X %02X] %s %s", sw.SW1(), sw.SW2(), mark, desc)
}
