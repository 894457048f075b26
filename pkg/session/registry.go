package session

import (
	"sync"

	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/schederr"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// Registry is the client registry: the exclusive owner of every live
// ClientSession, keyed by ClientID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ttstype.ClientID]*Session
	notifier Notifier
	logger   logging.Logger
}

// New creates an empty Registry.
func New(notifier Notifier, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		sessions: make(map[ttstype.ClientID]*Session),
		notifier: notifier,
		logger:   logger,
	}
}

// Create registers a new ClientSession in Created, rejecting a duplicate id.
func (r *Registry) Create(id ttstype.ClientID, pid int, mode ttstype.Mode) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return nil, schederr.New(schederr.InvalidParameter, "client %d already registered", id)
	}
	s := newSession(id, pid, mode)
	r.sessions[id] = s
	return s, nil
}

// Get looks up a session by id.
func (r *Registry) Get(id ttstype.ClientID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes a session from the registry without sending any further
// notification — destruction is the terminal event for a client.
func (r *Registry) Delete(id ttstype.ClientID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Visit calls fn for every live session under a read lock, stopping early
// if fn returns false. Mutation (e.g. finalizing a client found dead) must
// happen outside Visit, after collecting the ids to act on, to avoid
// mutating the map while iterating it.
func (r *Registry) Visit(fn func(*Session) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if !fn(s) {
			return
		}
	}
}

// Transition validates and applies a state transition per the session
// state machine's table, updating the session's state and notifying the
// client of the change. It
// returns an *schederr.Error with Kind InvalidState for a rejected
// transition, or nil on success (including the no-op-ok cells, which
// succeed without emitting a notification).
func (r *Registry) Transition(id ttstype.ClientID, ev Event) error {
	s, ok := r.Get(id)
	if !ok {
		return schederr.New(schederr.InvalidParameter, "unknown client %d", id)
	}

	s.mu.Lock()
	before := s.state
	to, out := transitionTable(before, ev)
	switch out {
	case outcomeReject:
		s.mu.Unlock()
		return schederr.New(schederr.InvalidState, "client %d: %s not valid from %s", id, ev, before)
	case outcomeNoop:
		s.mu.Unlock()
		return nil
	}
	s.state = to
	s.mu.Unlock()

	if r.notifier != nil {
		r.notifier.StateChanged(id, before, to)
	}
	return nil
}

// ForceState sets a session's state directly without going through the
// transition table, used by arbitration to pause/stop a client that did
// not itself request the change. It still emits state_changed.
func (r *Registry) ForceState(id ttstype.ClientID, to ttstype.State) error {
	s, ok := r.Get(id)
	if !ok {
		return schederr.New(schederr.InvalidParameter, "unknown client %d", id)
	}
	s.mu.Lock()
	before := s.state
	s.state = to
	s.mu.Unlock()
	if before == to {
		return nil
	}
	if r.notifier != nil {
		r.notifier.StateChanged(id, before, to)
	}
	return nil
}
