package emv

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gregLibert/emv-reader/pkg/iso7816"
	"github.com/gregLibert/emv-reader/pkg/tlv"
)

// READ FLOW:
// A contactless read walks through the following states:
//
//	PPSESelect -> ApplicationSelect -> GetProcessingOptions
//	  -> RecordReadAFL      (GPO returned a usable AFL)
//	  -> RecordReadFallback (no AFL: SFI 1..10 x records 1..2)
//	-> Complete | Failed
//
// Only '9000' counts as success. A rejected PPSE or application SELECT ends
// the flow; a rejected GPO or READ RECORD does not.
//
// RECORD READS:
// All READ RECORD commands of a stage are issued at once, one goroutine each.
// The Client lets one exchange at a time on the channel, so responses come
// back in any order. Each goroutine stores its record at the index it was
// issued with; once all have returned, records are merged in issue order so
// that "first record wins" does not depend on scheduling.

// State is a step of the read flow.
type State int

const (
	StatePPSESelect State = iota
	StateApplicationSelect
	StateGetProcessingOptions
	StateRecordReadAFL
	StateRecordReadFallback
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePPSESelect:
		return "PPSESelect"
	case StateApplicationSelect:
		return "ApplicationSelect"
	case StateGetProcessingOptions:
		return "GetProcessingOptions"
	case StateRecordReadAFL:
		return "RecordReadAFL"
	case StateRecordReadFallback:
		return "RecordReadFallback"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Fallback probing range used when the card returns no AFL.
const (
	FallbackMaxSFI        = 10
	FallbackRecordsPerSFI = 2
)

// Logger is the logging surface used by the reader.
type Logger interface {
	Printf(format string, v ...any)
}

// Reader drives one card through the read flow.
type Reader struct {
	Client *iso7816.Client

	// Logger receives progress messages. Defaults to log.Default().
	Logger Logger

	// Verbose adds a full report of every exchange to the log.
	Verbose bool

	// OnState, when set, is called on every state change.
	OnState func(State)
}

// NewReader creates a Reader talking to card.
func NewReader(card iso7816.Transmitter) *Reader {
	return &Reader{Client: iso7816.NewClient(card)}
}

type recordRef struct {
	SFI    byte
	Record byte
}

// Read runs the whole flow. It returns a result with Success set, a
// *ReadError, or the context error when ctx ends first.
func (r *Reader) Read(ctx context.Context) (*CardReadResult, error) {
	result := &CardReadResult{}

	// 1. PPSE
	r.enter(StatePPSESelect)
	trace, err := r.send(ctx, SelectPPSE())
	if err != nil {
		return nil, r.fail(ctx, StatePPSESelect, ReasonNoApplication, trace, err)
	}
	r.reportSelect(trace)

	aid, ok := tlv.FindFirst(TagAID, trace.Data())
	if !trace.Completed() || !ok || len(aid) == 0 {
		return nil, r.fail(ctx, StatePPSESelect, ReasonNoApplication, trace, nil)
	}
	result.AID = bytes.Clone(aid)
	r.logf("PPSE selected, first AID %X", result.AID)

	// 2. Application
	r.enter(StateApplicationSelect)
	trace, err = r.send(ctx, SelectApplication(result.AID))
	if err != nil {
		return nil, r.fail(ctx, StateApplicationSelect, ReasonSelectRejected, trace, err)
	}
	r.reportSelect(trace)

	if !trace.Completed() {
		return nil, r.fail(ctx, StateApplicationSelect, ReasonSelectRejected, trace, nil)
	}
	setOnce(&result.ApplicationLabel, ExtractApplicationLabel(trace.Data()))
	setOnce(&result.PreferredName, ExtractPreferredName(trace.Data()))

	// 3. GPO
	r.enter(StateGetProcessingOptions)
	refs, err := r.processingOptions(ctx)
	if err != nil {
		return nil, err
	}

	// 4./5. Records
	readState := StateRecordReadAFL
	if len(refs) == 0 {
		readState = StateRecordReadFallback
		refs = fallbackRefs()
	}
	r.enter(readState)

	records, err := r.readRecords(ctx, refs)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec != nil {
			result.Merge(rec)
		}
	}
	result.finalize()

	if !result.Success {
		return nil, r.fail(ctx, readState, ReasonNoCardData, nil, nil)
	}

	r.enter(StateComplete)
	return result, nil
}

// processingOptions sends GPO and turns the AFL into the list of records to
// read. An empty list selects the fallback path. Only a context error is
// returned: GPO failures of any kind fall back.
func (r *Reader) processingOptions(ctx context.Context) ([]recordRef, error) {
	trace, err := r.send(ctx, GetProcessingOptions())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logf("GPO failed, probing records: %v", err)
		return nil, nil
	}
	r.report(trace)

	if !trace.Completed() {
		r.logf("GPO returned %s, looking for an AFL anyway", trace.Status().Verbose())
	}

	data := trace.Data()
	if len(data) == 0 {
		r.logf("GPO returned no data, probing records")
		return nil, nil
	}

	po, err := ParseProcessingOptions(data)
	if err != nil {
		r.logf("GPO response unreadable, probing records: %v", err)
		return nil, nil
	}

	entries, err := po.Entries()
	if err != nil {
		r.logf("%v, probing records", err)
		return nil, nil
	}

	var refs []recordRef
	for _, e := range entries {
		if !e.Valid() {
			r.logf("AFL entry skipped: %s", e)
			continue
		}
		for _, rec := range e.Records() {
			refs = append(refs, recordRef{SFI: e.SFI, Record: rec})
		}
	}
	return refs, nil
}

// readRecords issues one READ RECORD per ref concurrently and returns the
// data of every record answered with '9000', indexed like refs. Failed
// reads leave a nil entry.
func (r *Reader) readRecords(ctx context.Context, refs []recordRef) ([][]byte, error) {
	records := make([][]byte, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref recordRef) {
			defer wg.Done()

			trace, err := r.send(ctx, ReadRecord(ref.SFI, ref.Record))
			if err != nil {
				r.logf("SFI %d record %d: %v", ref.SFI, ref.Record, err)
				return
			}
			r.report(trace)

			if !trace.Completed() {
				r.logf("SFI %d record %d skipped: %s", ref.SFI, ref.Record, trace.Status().Verbose())
				return
			}
			records[i] = trace.Data()
		}(i, ref)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func fallbackRefs() []recordRef {
	refs := make([]recordRef, 0, FallbackMaxSFI*FallbackRecordsPerSFI)
	for sfi := byte(1); sfi <= FallbackMaxSFI; sfi++ {
		for rec := byte(1); rec <= FallbackRecordsPerSFI; rec++ {
			refs = append(refs, recordRef{SFI: sfi, Record: rec})
		}
	}
	return refs
}

func (r *Reader) send(ctx context.Context, cmd *iso7816.CommandAPDU) (iso7816.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Client.Send(cmd)
}

// fail builds the terminal error of a state. A context that ended meanwhile
// takes precedence over the card's answer.
func (r *Reader) fail(ctx context.Context, state State, reason string, trace iso7816.Trace, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.enter(StateFailed)

	rerr := &ReadError{State: state, Reason: reason, Status: trace.Status(), Err: cause}
	r.logf("read failed: %v", rerr)
	return rerr
}

func (r *Reader) enter(s State) {
	if r.OnState != nil {
		r.OnState(s)
	}
}

func (r *Reader) reportSelect(trace iso7816.Trace) {
	if !r.Verbose {
		return
	}
	r.report(trace)
	fci, err := ParseFCI(trace.Data())
	if err != nil {
		return
	}
	r.logf("\n%s", fci.Describe())
	for i, e := range fci.Directory() {
		r.logf("directory rank %d: %X %q (priority %d)", i+1, e.AID, tlv.MakeSafeASCII(e.ApplicationLabel), e.Rank())
	}
}

func (r *Reader) report(trace iso7816.Trace) {
	if !r.Verbose {
		return
	}
	if rep, err := iso7816.Report(trace); err == nil {
		r.logf("\n%s", rep)
	}
}

func (r *Reader) logf(format string, v ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}
