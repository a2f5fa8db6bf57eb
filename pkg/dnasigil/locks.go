package dnasigil

import "sync"

// keyedMutex hands out one mutex per entity id. Entries are dropped once no
// caller holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
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

// LockPair locks both keys in ascending order so two callers locking the
// same pair in opposite order cannot deadlock. Equal keys lock once.
func (k *keyedMutex) LockPair(a, b string) (unlock func()) {
	if a == b {
		return k.Lock(a)
	}
	if b < a {
		a, b = b, a
	}
	first := k.Lock(a)
	second := k.Lock(b)
	return func() {
		second()
		first()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
