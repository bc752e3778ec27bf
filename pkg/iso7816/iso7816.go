// Package iso7816 is the command layer between a contactless reader and a
// payment card: APDU encoding, the CLA, INS and status word model, the SELECT
// and READ RECORD builders, and a Client that resolves '61XX' and '6CXX'
// answers before the caller sees them.
//
// A reader exposes one command in, one response out. Anything with a
// Transmit method fits, a *scard.Card included:
//
//	client := iso7816.NewClient(card)
//	trace, err := client.Send(iso7816.SelectByAID(iso7816.MustClass(0x00), []byte("2PAY.SYS.DDF01")))
//	if err != nil {
//		return err
//	}
//	if !trace.Completed() {
//		return fmt.Errorf("PPSE rejected: %s", trace.Status().Verbose())
//	}
//	report, _ := iso7816.Report(trace)
//	log.Println(report)
package iso7816
