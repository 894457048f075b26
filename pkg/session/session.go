// Package session implements the client registry: it owns every live
// ClientSession, enforces the Created -> Ready -> Playing <-> Paused
// transition table, and exposes lookup and visitor iteration the way a
// connection registry manages its map of connected devices.
package session

import (
	"sync"

	"github.com/haivivi/ttsd/pkg/fifo"
	"github.com/haivivi/ttsd/pkg/schederr"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// Notifier delivers the four callback kinds a ClientSession can receive.
// The scheduler's rpc layer implements this; the registry never knows
// about transport.
type Notifier interface {
	StateChanged(id ttstype.ClientID, before, after ttstype.State)
	UtteranceStarted(id ttstype.ClientID, utt ttstype.UtteranceID)
	UtteranceCompleted(id ttstype.ClientID, utt ttstype.UtteranceID)
	Error(id ttstype.ClientID, utt ttstype.UtteranceID, kind schederr.Kind)
}

// Session is one live ClientSession.
type Session struct {
	ID         ttstype.ClientID
	PID        int
	Mode       ttstype.Mode
	Credential *string

	Requests *fifo.Queue[ttstype.RequestItem]
	Audio    *fifo.Queue[ttstype.AudioChunk]

	mu                      sync.Mutex
	state                   ttstype.State
	lastCompletedRequestUtt ttstype.UtteranceID
	lastStoppedUtt          ttstype.UtteranceID
	nextUtt                 ttstype.UtteranceID
	liveUtt                 map[ttstype.UtteranceID]bool // queued-or-inflight ids, for wrap collision detection
	startedUtt              map[ttstype.UtteranceID]bool // ids for which utterance_started has already fired
}

func newSession(id ttstype.ClientID, pid int, mode ttstype.Mode) *Session {
	return &Session{
		ID:         id,
		PID:        pid,
		Mode:       mode,
		Requests:   fifo.New[ttstype.RequestItem](),
		Audio:      fifo.New[ttstype.AudioChunk](),
		state:      ttstype.StateCreated,
		nextUtt:    ttstype.MinUtteranceID,
		liveUtt:    make(map[ttstype.UtteranceID]bool),
		startedUtt: make(map[ttstype.UtteranceID]bool),
	}
}

// State returns the session's current state.
func (s *Session) State() ttstype.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastStoppedUtt returns the sentinel recorded by the most recent stop:
// everything at or before it is considered stopped.
func (s *Session) LastStoppedUtt() ttstype.UtteranceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStoppedUtt
}

// LastCompletedRequestUtt returns the id of the most recently completed
// utterance; everything strictly older is "stopped".
func (s *Session) LastCompletedRequestUtt() ttstype.UtteranceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCompletedRequestUtt
}

// NextUtteranceID allocates the next id for this session, wrapping at
// MaxUtteranceID and rejecting if the wrapped id is still live (reject is
// preferred over stalling or renumbering).
func (s *Session) NextUtteranceID() (ttstype.UtteranceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextUtt
	if s.liveUtt[id] {
		return 0, schederr.New(schederr.InvalidParameter, "utterance id %d still live after wrap", id)
	}
	s.liveUtt[id] = true
	s.nextUtt = id.Next()
	return id, nil
}

// ReleaseUtteranceID marks an id no longer live, once its completion (or
// stop/cancel) has been fully processed.
func (s *Session) ReleaseUtteranceID(id ttstype.UtteranceID) {
	s.mu.Lock()
	delete(s.liveUtt, id)
	delete(s.startedUtt, id)
	s.mu.Unlock()
}

// ReleaseAllUtteranceIDs clears every tracked live/started id, used on stop
// and finalize when both queues are cleared.
func (s *Session) ReleaseAllUtteranceIDs() {
	s.mu.Lock()
	s.liveUtt = make(map[ttstype.UtteranceID]bool)
	s.startedUtt = make(map[ttstype.UtteranceID]bool)
	s.mu.Unlock()
}

// MarkStarted records that utterance_started has fired for utt, returning
// true the first time (callers use this to emit the notification exactly
// once).
func (s *Session) MarkStarted(utt ttstype.UtteranceID) (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedUtt[utt] {
		return false
	}
	s.startedUtt[utt] = true
	return true
}

// MarkCompleted records the last fully completed utterance.
func (s *Session) MarkCompleted(utt ttstype.UtteranceID) {
	s.mu.Lock()
	s.lastCompletedRequestUtt = utt
	s.mu.Unlock()
}

// MarkStopped records the stop sentinel.
func (s *Session) MarkStopped(utt ttstype.UtteranceID) {
	s.mu.Lock()
	if utt > s.lastStoppedUtt {
		s.lastStoppedUtt = utt
	}
	s.mu.Unlock()
}

// IsStopped reports whether utt is at or before the last stop sentinel, i.e.
// any late engine output for it must be discarded.
func (s *Session) IsStopped(utt ttstype.UtteranceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return utt != 0 && utt <= s.lastStoppedUtt
}
