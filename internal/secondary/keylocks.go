package secondary

import "sync"

// KeyLocks serializes operations on the same key while letting different keys proceed.
// Every store carries one, shared by the managers writing it and by reconciliation.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLocks returns an empty lock table
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock of key and returns its release function
func (k *KeyLocks) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return k.release(key, l)
}

// TryLock acquires the lock of key only when nobody holds or waits for it
func (k *KeyLocks) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, busy := k.locks[key]; busy {
		return nil, false
	}
	l := &keyLock{refs: 1}
	l.mu.Lock()
	k.locks[key] = l
	return k.release(key, l), true
}

func (k *KeyLocks) release(key string, l *keyLock) func() {
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
