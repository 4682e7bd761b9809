package panel

import (
	"fmt"
	"sync"
)

// InboundLocker serialises read-modify-write mutations against one
// inbound's client list. Two interleaved updates would otherwise lose
// one of the writes, since the panel replaces the whole client entry.
type InboundLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewInboundLocker() *InboundLocker {
	return &InboundLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for (serverID, inboundID) and returns its
// release function.
func (l *InboundLocker) Lock(serverID string, inboundID int) func() {
	key := fmt.Sprintf("%s/%d", serverID, inboundID)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
