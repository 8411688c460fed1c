package orchestrator

// semaphore is a channel-based counting semaphore capping concurrent
// worker turns.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &semaphore{ch: make(chan struct{}, capacity)}
}

// tryAcquire attempts to acquire a slot without blocking.
func (s *semaphore) tryAcquire() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// release frees a slot. Must only be called after a successful tryAcquire.
func (s *semaphore) release() {
	<-s.ch
}

// available returns the number of free slots.
func (s *semaphore) available() int {
	return cap(s.ch) - len(s.ch)
}
