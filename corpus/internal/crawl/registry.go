package crawl

import "sync"

// Registry tracks cancellation requests for running crawl jobs. The
// frontier polls it between page fetches, so cancellation takes effect
// at the next URL boundary rather than mid-fetch.
type Registry interface {
	// Cancel marks a job as cancelled.
	Cancel(jobID string)
	// IsCancelled reports whether a job has been cancelled.
	IsCancelled(jobID string) bool
	// Forget drops a job's cancellation state once the job is done.
	Forget(jobID string)
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu        sync.Mutex
	cancelled map[string]bool
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{cancelled: make(map[string]bool)}
}

func (r *MemoryRegistry) Cancel(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled[jobID] = true
}

func (r *MemoryRegistry) IsCancelled(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled[jobID]
}

func (r *MemoryRegistry) Forget(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancelled, jobID)
}
