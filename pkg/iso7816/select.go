package iso7816

import "fmt"

// SELECT (INS 'A4'):
//
//	P1  how the target is named (file identifier or DF name)
//	P2  bits 4-3 choose the returned template, bits 2-1 the occurrence
//
// The PPSE directory and payment applications are selected by DF name and
// answer with an FCI template.

// SelectionMethod is the P1 of a SELECT.
type SelectionMethod byte

const (
	SelectByFileID SelectionMethod = 0x00
	SelectByDFName SelectionMethod = 0x04
)

func (s SelectionMethod) String() string {
	switch s {
	case SelectByFileID:
		return "Select by File ID"
	case SelectByDFName:
		return "Select by DF Name (AID)"
	}
	return fmt.Sprintf("Unknown Method (0x%02X)", byte(s))
}

// FileOccurrence fills P2 bits 2-1.
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = 0x00
	NextOccurrence        FileOccurrence = 0x02
)

// SelectionControl fills P2 bits 4-3.
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0x00
	ReturnFCP    SelectionControl = 0x04
	ReturnNoData SelectionControl = 0x0C
)

// NewSelectCommand builds a SELECT. A command carrying a name is sent
// without Le (case 3) so T=0 readers get '61XX' and fetch the answer with
// GET RESPONSE; a bare SELECT that expects a template asks for 256 bytes.
func NewSelectCommand(cla Class, method SelectionMethod, occurrence FileOccurrence, ctrl SelectionControl, name []byte) *CommandAPDU {
	var ne int
	if len(name) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}
	p2 := byte(ctrl) | byte(occurrence)
	return NewCommandAPDU(cla, mustInstruction(INS_SELECT), byte(method), p2, name, ne)
}

// SelectByAID selects the first application or directory named aid.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, FirstOrOnlyOccurrence, ReturnFCI, aid)
}
