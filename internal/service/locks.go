package service

import (
	"sync"

	"github.com/google/uuid"
)

// KeyedMutex serializes work per identifier. Entries are dropped once no
// goroutine holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*keyedEntry)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (k *KeyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &keyedEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// inflight is the single-owner token registry for processing jobs. At most
// one job per document id is queued or running at any time. A job only acts
// while its own token is the registered one, so a dropped token can never be
// confused with the token of a later request.
type inflight struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*jobToken
}

type jobToken struct {
	cancelled bool
}

func newInflight() *inflight {
	return &inflight{jobs: make(map[uuid.UUID]*jobToken)}
}

// acquire returns nil when id already has an owner.
func (f *inflight) acquire(id uuid.UUID) *jobToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[id]; ok {
		return nil
	}
	t := &jobToken{}
	f.jobs[id] = t
	return t
}

// release removes t if it still owns id.
func (f *inflight) release(id uuid.UUID, t *jobToken) {
	f.mu.Lock()
	if f.jobs[id] == t {
		delete(f.jobs, id)
	}
	f.mu.Unlock()
}

func (f *inflight) has(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[id]
	return ok
}

// cancel flags the owner of id; it reports whether an owner existed.
func (f *inflight) cancel(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.jobs[id]
	if ok {
		t.cancelled = true
	}
	return ok
}

// drop cancels the owner of id and frees the id for a new request.
func (f *inflight) drop(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.jobs[id]; ok {
		t.cancelled = true
		delete(f.jobs, id)
	}
}

// active reports whether t still owns id and was not cancelled.
func (f *inflight) active(id uuid.UUID, t *jobToken) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id] == t && !t.cancelled
}

func (f *inflight) cancelled(t *jobToken) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return t.cancelled
}
