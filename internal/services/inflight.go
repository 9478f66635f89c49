package services

import (
	"sync"
)

// inflight tracks at most one pending AI action per key. A ticket that
// was cleared before its result arrives marks that result as stale.
type inflight struct {
	mu      sync.Mutex
	next    uint64
	pending map[string]uint64
}

func newInflight() *inflight {
	return &inflight{pending: make(map[string]uint64)}
}

// begin reserves key. It fails with a ConflictError while another action
// for key is pending.
func (f *inflight) begin(key string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.pending[key]; busy {
		return 0, &ConflictError{Message: "Yêu cầu trước đó vẫn đang được xử lý"}
	}
	f.next++
	f.pending[key] = f.next
	return f.next, nil
}

// finish releases the ticket and reports whether it was still current.
// apply runs under the tracker lock only when it was.
func (f *inflight) finish(key string, ticket uint64, apply func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending[key] != ticket {
		return false
	}
	delete(f.pending, key)
	if apply != nil {
		apply()
	}
	return true
}

func (f *inflight) cancel(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, key)
}

func (f *inflight) busy(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[key]
	return ok
}
