package session

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/hybridrag/core"
)

type entry struct {
	mu        sync.RWMutex
	id        string
	chunkIDs  []core.ID
	members   core.IDSet
	createdAt time.Time
	sealed    bool
}

func (e *entry) snapshot() *core.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &core.Session{
		ID:        e.id,
		ChunkIDs:  slices.Clone(e.chunkIDs),
		CreatedAt: e.createdAt,
		Sealed:    e.sealed,
	}
}

// Registry maps session ids to the chunk ids uploaded in each session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// lookup returns the session entry, creating it when create is set.
func (r *Registry) lookup(id string, create bool) *entry {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok || !create {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.sessions[id]; ok {
		return e
	}
	e = &entry{id: id, members: make(core.IDSet), createdAt: r.now()}
	r.sessions[id] = e
	return e
}

// Register appends chunkIDs to the session, creating the session if it is
// new. Ids already in the session are ignored. Registering into a sealed
// session fails with core.ErrSessionSealed.
func (r *Registry) Register(id string, chunkIDs ...core.ID) error {
	if id == "" {
		return core.ErrInvalidSession
	}
	e := r.lookup(id, true)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return fmt.Errorf("%w: %s", core.ErrSessionSealed, id)
	}
	for _, c := range chunkIDs {
		if e.members.Contains(c) {
			continue
		}
		e.members[c] = struct{}{}
		e.chunkIDs = append(e.chunkIDs, c)
	}
	return nil
}

// Seal freezes the session's membership.
func (r *Registry) Seal(id string) error {
	e := r.lookup(id, false)
	if e == nil {
		return fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
	}
	e.mu.Lock()
	e.sealed = true
	e.mu.Unlock()
	return nil
}

// ChunkIDsFor returns a copy of the session's chunk ids.
func (r *Registry) ChunkIDsFor(id string) (core.IDSet, error) {
	e := r.lookup(id, false)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return core.NewIDSet(e.chunkIDs...), nil
}

// AllChunkIDs returns every chunk id registered under any session.
func (r *Registry) AllChunkIDs() core.IDSet {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	all := make(core.IDSet)
	for _, e := range entries {
		e.mu.RLock()
		for _, c := range e.chunkIDs {
			all[c] = struct{}{}
		}
		e.mu.RUnlock()
	}
	return all
}

// Get returns a snapshot of one session.
func (r *Registry) Get(id string) (*core.Session, error) {
	e := r.lookup(id, false)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
	}
	return e.snapshot(), nil
}

// List returns snapshots of every session, oldest first.
func (r *Registry) List() []*core.Session {
	r.mu.RLock()
	out := make([]*core.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *core.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Restore loads a previously persisted session, replacing any session with
// the same id.
func (r *Registry) Restore(s *core.Session) {
	e := &entry{
		id:        s.ID,
		chunkIDs:  slices.Clone(s.ChunkIDs),
		members:   core.NewIDSet(s.ChunkIDs...),
		createdAt: s.CreatedAt,
		sealed:    s.Sealed,
	}
	r.mu.Lock()
	r.sessions[s.ID] = e
	r.mu.Unlock()
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear removes every session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*entry)
}
