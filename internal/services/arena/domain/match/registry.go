package match

import "fmt"

// Registry is the single authority for live sessions. It does no
// locking of its own; callers serialize access.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session. Adding a second session under the same id
// is an error.
func (r *Registry) Add(s *Session) error {
	if _, ok := r.sessions[s.ID()]; ok {
		return fmt.Errorf("session %s already registered", s.ID())
	}
	r.sessions[s.ID()] = s
	return nil
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	delete(r.sessions, id)
}

// FindByParticipant returns every live session the given participant
// plays in.
func (r *Registry) FindByParticipant(userID string) []*Session {
	var found []*Session
	for _, s := range r.sessions {
		if _, ok := s.SideOf(userID); ok {
			found = append(found, s)
		}
	}
	return found
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
