package consumer

// Result is the outcome a subscriber reports for one message. A nil *Result
// from Handle violates the subscriber contract and is escalated by the
// consumer.
type Result struct {
	failure bool
	err     error
}

// Success returns a successful result
func Success() *Result {
	return &Result{}
}

// Failure returns a failed result carrying the cause
func Failure(err error) *Result {
	return &Result{failure: true, err: err}
}

// IsFailure reports whether the handler failed
func (r *Result) IsFailure() bool {
	return r.failure
}

// Err returns the failure cause, nil on success
func (r *Result) Err() error {
	return r.err
}

func (r *Result) String() string {
	if r == nil {
		return "none"
	}
	if r.failure {
		if r.err != nil {
			return "failure: " + r.err.Error()
		}
		return "failure"
	}
	return "success"
}
