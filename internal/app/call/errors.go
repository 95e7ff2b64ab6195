package call

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported to the presentation layer.
type ErrorKind int

const (
	KindMediaAcquisition ErrorKind = iota + 1
	KindNegotiation
	KindTransportDelivery
	KindDeviceSwitch
	KindBusy
	KindConnectivityTimeout
	KindAlreadyInCall
	KindInvalidState
)

func (k ErrorKind) String() string {
	switch k {
	case KindMediaAcquisition:
		return "media_acquisition"
	case KindNegotiation:
		return "negotiation"
	case KindTransportDelivery:
		return "transport_delivery"
	case KindDeviceSwitch:
		return "device_switch"
	case KindBusy:
		return "busy"
	case KindConnectivityTimeout:
		return "connectivity_timeout"
	case KindAlreadyInCall:
		return "already_in_call"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrMediaAcquisition    = errors.New("media acquisition failed")
	ErrNegotiation         = errors.New("negotiation failed")
	ErrTransportDelivery   = errors.New("transport delivery failed")
	ErrDeviceSwitch        = errors.New("camera switch failed")
	ErrBusy                = errors.New("busy")
	ErrConnectivityTimeout = errors.New("connectivity timeout")
	ErrAlreadyInCall       = errors.New("already in a call")
	ErrInvalidState        = errors.New("invalid state for operation")

	// ErrNoIncomingCall indicates accept/reject without a pending offer.
	ErrNoIncomingCall = errors.New("no incoming call")

	// ErrInvalidPeer indicates an empty or self-addressed call target.
	ErrInvalidPeer = errors.New("invalid peer")

	// ErrCallEnded is returned to operations still waiting when the session closes.
	ErrCallEnded = errors.New("call ended")

	// ErrManagerClosed is returned once the manager's loop has exited.
	ErrManagerClosed = errors.New("call manager closed")
)

var kindSentinels = map[ErrorKind]error{
	KindMediaAcquisition:    ErrMediaAcquisition,
	KindNegotiation:         ErrNegotiation,
	KindTransportDelivery:   ErrTransportDelivery,
	KindDeviceSwitch:        ErrDeviceSwitch,
	KindBusy:                ErrBusy,
	KindConnectivityTimeout: ErrConnectivityTimeout,
	KindAlreadyInCall:       ErrAlreadyInCall,
	KindInvalidState:        ErrInvalidState,
}

// Error carries the taxonomy kind, the operation and the cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind's sentinel.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf extracts the kind from err, or 0 when err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// TransitionError indicates an invalid state transition was attempted.
type TransitionError struct {
	SID  string
	From State
	To   State
}

// Error returns the error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("session %s: cannot transition from %s to %s", e.SID, e.From, e.To)
}

// Unwrap returns ErrInvalidState.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidState
}
