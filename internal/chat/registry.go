package chat

import "sync"

// Event is the payload broadcast to every session joined to a trip's room.
// The sender receives its own broadcast as a delivery echo.
type Event struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// Registry maps a trip ID to the set of live sessions for that trip. The
// set is ephemeral and rebuilt from zero on restart; chat authorization is
// decided by the membership ledger, never by registry state.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Session]bool
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uint]map[*Session]bool)}
}

func (r *Registry) Join(tripID uint, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[tripID] == nil {
		r.rooms[tripID] = make(map[*Session]bool)
	}

	r.rooms[tripID][session] = true
}

// Leave is idempotent: removing a session that is not joined is a no-op.
func (r *Registry) Leave(tripID uint, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, exists := r.rooms[tripID]

	if !exists {
		return
	}

	delete(sessions, session)

	if len(sessions) == 0 {
		delete(r.rooms, tripID)
	}
}

// Broadcast delivers event to every session joined for the trip at the time
// of the call, the sender included.
func (r *Registry) Broadcast(tripID uint, event Event) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.rooms[tripID]))
	for session := range r.rooms[tripID] {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	// Sends happen outside the lock so a slow client cannot block
	// concurrent connects and disconnects.
	for _, session := range sessions {
		session.enqueue(event)
	}
}

// Count reports how many sessions are currently joined for the trip.
func (r *Registry) Count(tripID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[tripID])
}
