package consumer

// Action is the routing outcome computed for one processed message
type Action int

const (
	// ActionNone means the handler succeeded and nothing was resent
	ActionNone Action = iota
	// ActionSendToRetry means the message was resent to the retry exchange
	ActionSendToRetry
	// ActionSendToDeadLetter means the message exhausted its retries
	ActionSendToDeadLetter
)

func (a Action) String() string {
	switch a {
	case ActionSendToRetry:
		return "send_to_retry"
	case ActionSendToDeadLetter:
		return "send_to_dead_letter"
	default:
		return "none"
	}
}

// DerivedAction captures the computed outcome of processing a failed message.
// It is created fresh per failure and read-only after construction; consumers
// use it for the resend publish and for logging.
type DerivedAction struct {
	Action       Action
	ExchangeName string
	RoutingKey   string
	Headers      map[string]interface{}
}
