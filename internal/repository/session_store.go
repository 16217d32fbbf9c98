package repository

import (
	"sync"

	"github.com/hyeonwoo/railbot/internal/model"
)

// SessionStore owns every conversational session in the process.  Sessions
// are created lazily on first contact and never deleted; finished
// conversations are reset to idle and the entry reused.
//
// Each session carries its own lock so inputs from one chat are processed
// strictly in order while different chats proceed concurrently.  The store
// lock only guards the map itself.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *model.Session
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*sessionEntry)}
}

func (st *SessionStore) entry(id string) *sessionEntry {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		e = &sessionEntry{session: model.NewSession(id)}
		st.sessions[id] = e
	}
	return e
}

// Do runs fn with exclusive access to the session for id, creating the
// session if this is the chat's first contact.  All reads and writes of a
// session must happen inside fn.
func (st *SessionStore) Do(id string, fn func(*model.Session)) {
	e := st.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
}

// LoginIDs returns the provider login id of every known session, in no
// particular order.  Used by the list-users admin command.
func (st *SessionStore) LoginIDs() []string {
	st.mu.Lock()
	entries := make([]*sessionEntry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.Unlock()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		ids = append(ids, e.session.Credentials.LoginID)
		e.mu.Unlock()
	}
	return ids
}
