package xsync

import (
	"sync"

	"github.com/puzpuzpuz/xsync"
)

// KeyedMutex provides one mutex per key. Callers must pair every Lock with an
// Unlock of the same key.
type KeyedMutex struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: xsync.NewMapOf[*sync.Mutex]()}
}

func (m *KeyedMutex) Lock(key string) {
	mutex, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mutex.Lock()
}

func (m *KeyedMutex) Unlock(key string) {
	if mutex, ok := m.locks.Load(key); ok {
		mutex.Unlock()
	}
}
