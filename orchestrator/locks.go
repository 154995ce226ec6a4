package orchestrator

import "sync"

// conversationLocks serializes sends per conversation id. Two sends on
// the same conversation both read-then-append the transcript, so they
// take the conversation's lock; sends on different conversations never
// contend.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for id and returns the unlock func. Lock
// entries are kept for the life of the service; conversation counts are
// small enough that reclamation is not worth the bookkeeping.
func (l *conversationLocks) acquire(id string) func() {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
