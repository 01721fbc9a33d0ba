package session

import "errors"

// Session errors. None of them is fatal to the connection that caused it.
var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrIllegalMove       = errors.New("illegal move")
	ErrNotActive         = errors.New("session is not active")
	ErrUnknownSession    = errors.New("unknown session")
	ErrMalformedEvent    = errors.New("malformed event")
	ErrObserversDisabled = errors.New("observer mode is disabled")
	ErrReadOnly          = errors.New("observers are read-only")
)

// Wire reason codes sent back to the connection that caused a rejection
const (
	ReasonNotYourTurn       = "not_your_turn"
	ReasonIllegalMove       = "illegal_move"
	ReasonNotActive         = "not_active"
	ReasonUnknownSession    = "unknown_session"
	ReasonMalformedEvent    = "malformed_event"
	ReasonObserversDisabled = "observers_disabled"
	ReasonReadOnly          = "read_only"
	ReasonInternal          = "internal_error"
)

// RejectReason maps an error from this package to its wire reason code
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return ReasonNotYourTurn
	case errors.Is(err, ErrIllegalMove):
		return ReasonIllegalMove
	case errors.Is(err, ErrNotActive):
		return ReasonNotActive
	case errors.Is(err, ErrUnknownSession):
		return ReasonUnknownSession
	case errors.Is(err, ErrMalformedEvent):
		return ReasonMalformedEvent
	case errors.Is(err, ErrObserversDisabled):
		return ReasonObserversDisabled
	case errors.Is(err, ErrReadOnly):
		return ReasonReadOnly
	default:
		return ReasonInternal
	}
}
