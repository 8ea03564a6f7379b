package launcher

import "context"

// semaphore bounds concurrent backend submissions. A nil semaphore means
// unlimited.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(n int) *semaphore {
	if n <= 0 {
		return nil
	}
	return &semaphore{ch: make(chan struct{}, n)}
}

// acquire blocks until a slot is available or ctx is cancelled. Returns true
// if acquired.
func (s *semaphore) acquire(ctx context.Context) bool {
	if s == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *semaphore) release() {
	if s == nil {
		return
	}
	<-s.ch
}
