package quiz

// RejectionReason is a typed validator verdict for a payload that produced
// no sendable batch. It satisfies error and exposes a stable code for
// structured logs.
type RejectionReason struct {
	code    string
	message string
}

func (r *RejectionReason) Error() string { return r.message }

// Code returns the machine-readable rejection code.
func (r *RejectionReason) Code() string { return r.code }

var (
	// ErrMalformedPayload means the raw text did not parse as JSON at all.
	ErrMalformedPayload = &RejectionReason{code: "MALFORMED_PAYLOAD", message: "payload is not valid JSON"}
	// ErrNoQuestions means no question list was found under any accepted key.
	ErrNoQuestions = &RejectionReason{code: "NO_QUESTIONS", message: "no question list found in payload"}
	// ErrNoValidQuestions means a list was found but every entry was dropped.
	ErrNoValidQuestions = &RejectionReason{code: "NO_VALID_QUESTIONS", message: "no valid questions in payload"}
)
