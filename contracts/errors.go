package contracts

import (
	"fmt"
)

// ParseError reports a message body that could not be deserialized into the
// expected variant. It is a per-message error: consumers nack the delivery
// and keep consuming.
type ParseError struct {
	Expected MessageType // Variant the subscription declared
	Err      error       // Underlying error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("contracts: cannot parse body as %s: %v", e.Expected, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
