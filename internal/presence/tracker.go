package presence

import (
	"sort"
	"sync"
)

// OnlineUser is one row of the online list.
type OnlineUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type entry struct {
	mu       sync.Mutex
	userName string
	conns    map[string]struct{}
	// set when the entry has been dropped from the map; a Connect that raced
	// the removal must not resurrect it.
	removed bool
}

// Tracker keeps the in-memory user -> connection-set mapping. One instance is
// shared by all sessions; per-user mutations are serialized on the entry lock
// so distinct users never contend.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{users: make(map[string]*entry)}
}

// Connect adds connID to the user's connection set, creating the entry if
// absent, and refreshes the display name. It always succeeds.
func (t *Tracker) Connect(userID, connID, userName string) {
	for {
		t.mu.RLock()
		e, ok := t.users[userID]
		t.mu.RUnlock()
		if !ok {
			t.mu.Lock()
			e, ok = t.users[userID]
			if !ok {
				e = &entry{conns: make(map[string]struct{})}
				t.users[userID] = e
			}
			t.mu.Unlock()
		}

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.userName = userName
		e.conns[connID] = struct{}{}
		e.mu.Unlock()
		return
	}
}

// Disconnect removes connID from the user's set and drops the entry when the
// set empties. Unknown users or connections are a no-op.
func (t *Tracker) Disconnect(userID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.users[userID]
	if !ok {
		return
	}
	e.mu.Lock()
	delete(e.conns, connID)
	if len(e.conns) == 0 {
		e.removed = true
		delete(t.users, userID)
	}
	e.mu.Unlock()
}

// IsOnline reports whether the user currently holds at least one connection.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	e, ok := t.users[userID]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns) > 0
}

// ListOnline returns a snapshot of online users sorted by display name,
// user id breaking ties.
func (t *Tracker) ListOnline() []OnlineUser {
	t.mu.RLock()
	snapshot := make([]OnlineUser, 0, len(t.users))
	for id, e := range t.users {
		e.mu.Lock()
		if len(e.conns) > 0 {
			snapshot = append(snapshot, OnlineUser{UserID: id, UserName: e.userName})
		}
		e.mu.Unlock()
	}
	t.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].UserName != snapshot[j].UserName {
			return snapshot[i].UserName < snapshot[j].UserName
		}
		return snapshot[i].UserID < snapshot[j].UserID
	})
	return snapshot
}
