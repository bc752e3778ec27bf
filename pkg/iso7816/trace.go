package iso7816

// A logical command can cost several exchanges with the card: '61XX' is
// followed by GET RESPONSE and '6CXX' by the same command with Le = XX.
// A Trace keeps every exchange in order and the last one carries the outcome.

// Transaction is one command and the response the card gave to it.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess reports a '9000' or '61XX' response. A missing response is a failure.
func (t *Transaction) IsSuccess() bool {
	return t.Response != nil && t.Response.Status.IsSuccess()
}

// Trace is the exchange history of one logical command.
type Trace []Transaction

// Last returns the final transaction, or nil for an empty trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess reports whether the final transaction succeeded.
func (t Trace) IsSuccess() bool {
	if last := t.Last(); last != nil {
		return last.IsSuccess()
	}
	return false
}

// Status returns the status word of the final response, or 0 when the trace
// holds no response.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return 0
	}
	return last.Response.Status
}

// Data returns the data field of the final response.
func (t Trace) Data() []byte {
	last := t.Last()
	if last == nil || last.Response == nil {
		return nil
	}
	return last.Response.Data
}

// Completed reports whether the logical operation ended with exactly '9000'.
// EMV flows accept no other value as success once 61XX/6CXX have been resolved.
func (t Trace) Completed() bool {
	return t.Status() == SW_NO_ERROR
}
