package call

// State is the lifecycle phase of a call session.
type State int

const (
	StateIdle State = iota
	StateInitiating
	StateAwaitingDecision
	StateNegotiating
	StateConnected
	StateRecovering
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiating:
		return "initiating"
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateRecovering:
		return "recovering"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions.
// Idle is reachable only when call setup is aborted.
var validTransitions = map[State][]State{
	StateIdle:             {StateInitiating, StateAwaitingDecision},
	StateInitiating:       {StateNegotiating, StateIdle, StateEnded},
	StateAwaitingDecision: {StateNegotiating, StateIdle, StateEnded},
	StateNegotiating:      {StateConnected, StateRecovering, StateEnded},
	StateConnected:        {StateRecovering, StateEnded},
	StateRecovering:       {StateConnected, StateEnded},
	StateEnded:            {},
}

// CanTransitionTo checks if a transition to the target state is valid.
func (s State) CanTransitionTo(target State) bool {
	for _, valid := range validTransitions[s] {
		if valid == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state.
func (s State) IsTerminal() bool {
	return s == StateEnded
}

// Active reports whether a negotiation engine is in play.
func (s State) Active() bool {
	return s == StateNegotiating || s == StateConnected || s == StateRecovering
}

// EndReason explains why a session ended.
type EndReason int

const (
	EndLocalHangup EndReason = iota
	EndDeclined
	EndRemoteRejected
	EndRemoteBusy
	EndRemoteHangup
	EndConnectivityTimeout
	EndConnectionFailed
	EndPeerUnavailable
	EndSetupFailed
	EndShutdown
)

func (r EndReason) String() string {
	switch r {
	case EndLocalHangup:
		return "local_hangup"
	case EndDeclined:
		return "declined"
	case EndRemoteRejected:
		return "remote_rejected"
	case EndRemoteBusy:
		return "remote_busy"
	case EndRemoteHangup:
		return "remote_hangup"
	case EndConnectivityTimeout:
		return "connectivity_timeout"
	case EndConnectionFailed:
		return "connection_failed"
	case EndPeerUnavailable:
		return "peer_unavailable"
	case EndSetupFailed:
		return "setup_failed"
	case EndShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Notice is the user-facing text for the reason.
func (r EndReason) Notice() string {
	switch r {
	case EndRemoteRejected:
		return "Call was rejected."
	case EndRemoteBusy:
		return "The user is busy."
	case EndRemoteHangup:
		return "Call ended by the other side."
	case EndConnectivityTimeout:
		return "Connection lost."
	case EndConnectionFailed:
		return "Connection failed."
	case EndPeerUnavailable:
		return "The user is not reachable."
	case EndSetupFailed:
		return "Call could not be set up."
	default:
		return "Call ended."
	}
}
