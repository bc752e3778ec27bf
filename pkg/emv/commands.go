package emv

import (
	"github.com/gregLibert/emv-reader/pkg/iso7816"
)

// COMMAND BUILDERS:
// The four commands of the contactless read flow. They only describe the
// APDU; sending it is the job of iso7816.Client.
//
// - SELECT PPSE:      00 A4 04 00 | "2PAY.SYS.DDF01"
// - SELECT AID:       00 A4 04 00 | AID
// - GET PROC. OPTS:   80 A8 00 00 | 83 00 (empty PDOL data) | Le 00
// - READ RECORD:      00 B2 rec (SFI<<3|4) | Le 00

var (
	interindustry = iso7816.MustClass(0x00)
	proprietary   = iso7816.MustClass(0x80)
)

// SelectPPSE selects the Proximity Payment System Environment directory.
func SelectPPSE() *iso7816.CommandAPDU {
	return iso7816.SelectByAID(interindustry, []byte(PPSEName))
}

// SelectApplication selects a payment application by its AID.
func SelectApplication(aid []byte) *iso7816.CommandAPDU {
	return iso7816.SelectByAID(interindustry, aid)
}

// GetProcessingOptions starts the transaction with an empty PDOL data object
// (tag '83', length 0).
func GetProcessingOptions() *iso7816.CommandAPDU {
	ins, _ := iso7816.NewInstruction(iso7816.INS_GET_PROCESSING_OPTIONS)
	return iso7816.NewCommandAPDU(proprietary, ins, 0x00, 0x00, []byte{0x83, 0x00}, iso7816.MaxShortLe)
}

// ReadRecord reads record rec of the file identified by sfi.
func ReadRecord(sfi, rec byte) *iso7816.CommandAPDU {
	return iso7816.ReadRecord(interindustry, sfi, rec)
}
