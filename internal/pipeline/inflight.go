package pipeline

import "sync"

// flight is one unit of in-progress work. Followers block on done;
// outcome is valid once done is closed.
type flight struct {
	done    chan struct{}
	outcome Outcome
}

// registry collapses concurrent processing of the same fingerprint
// onto a single leader. It is keyed by fingerprint plus detail level.
type registry struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func newRegistry() *registry {
	return &registry{flights: make(map[string]*flight)}
}

// claim returns the flight for key and whether the caller is the
// leader. The leader must call complete exactly once.
func (r *registry) claim(key string) (*flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fl, ok := r.flights[key]; ok {
		return fl, false
	}
	fl := &flight{done: make(chan struct{})}
	r.flights[key] = fl
	return fl, true
}

// complete publishes the outcome and releases the key so a later
// delivery starts fresh work.
func (r *registry) complete(key string, out Outcome) {
	r.mu.Lock()
	fl, ok := r.flights[key]
	if ok {
		delete(r.flights, key)
	}
	r.mu.Unlock()
	if ok {
		fl.outcome = out
		close(fl.done)
	}
}
