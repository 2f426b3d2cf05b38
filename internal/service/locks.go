package service

import "sync"

// KeyedLocker serialises work per key (a user ID) inside one process. Entries
// are reference counted and dropped when the last holder unlocks.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the unlock function.
func (k *KeyedLocker) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *KeyedLocker) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// principalSet is the set of in-process callers allowed to use a privileged operation.
type principalSet struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

func newPrincipalSet() *principalSet {
	return &principalSet{members: make(map[string]struct{})}
}

func (p *principalSet) add(principal string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[principal] = struct{}{}
}

func (p *principalSet) remove(principal string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members, principal)
}

func (p *principalSet) has(principal string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.members[principal]
	return ok
}
