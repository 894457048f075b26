package session

import "github.com/haivivi/ttsd/pkg/ttstype"

// Event is one of the six transition-triggering client operations (a
// seventh case — "engine/audio Finish of last utt" — is not a
// client-invoked event; see the comment on transitionTable below).
type Event int

const (
	EventPrepare Event = iota
	EventUnprepare
	EventPlay
	EventStop
	EventPause
	EventResume
)

func (e Event) String() string {
	switch e {
	case EventPrepare:
		return "prepare"
	case EventUnprepare:
		return "unprepare"
	case EventPlay:
		return "play"
	case EventStop:
		return "stop"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	default:
		return "unknown"
	}
}

type outcome int

const (
	outcomeChange outcome = iota // transition to a new state, notify state_changed
	outcomeNoop                  // no-op ok: succeed, no state change, no notification
	outcomeReject                // fail with InvalidState, no side effect
)

// transitionTable implements the session state machine exactly. The
// "engine/audio Finish of last utt" case is handled separately by the
// scheduler's backend-event handler, which explicitly keeps the client in
// Playing when its queues merely drain (only an explicit stop returns it
// to Ready).
func transitionTable(from ttstype.State, ev Event) (to ttstype.State, out outcome) {
	switch from {
	case ttstype.StateCreated:
		switch ev {
		case EventPrepare:
			return ttstype.StateReady, outcomeChange
		default:
			return from, outcomeReject
		}
	case ttstype.StateReady:
		switch ev {
		case EventUnprepare:
			return ttstype.StateCreated, outcomeChange
		case EventPlay:
			return ttstype.StatePlaying, outcomeChange
		case EventStop:
			return from, outcomeNoop
		default:
			return from, outcomeReject
		}
	case ttstype.StatePlaying:
		switch ev {
		case EventPlay:
			return from, outcomeNoop
		case EventStop:
			return ttstype.StateReady, outcomeChange
		case EventPause:
			return ttstype.StatePaused, outcomeChange
		default:
			return from, outcomeReject
		}
	case ttstype.StatePaused:
		switch ev {
		case EventPlay, EventResume:
			return ttstype.StatePlaying, outcomeChange
		case EventStop:
			return ttstype.StateReady, outcomeChange
		default:
			return from, outcomeReject
		}
	default:
		return from, outcomeReject
	}
}
