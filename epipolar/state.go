package epipolar

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TrackedResult is a finished estimation kept for the HTTP endpoints
type TrackedResult struct {
	ID         string           `json:"id"`
	Request    *Request         `json:"-"`
	Result     Result           `json:"result"`
	Inliers    []Correspondence `json:"-"`
	ComputedAt time.Time        `json:"computedAt"`
	Duration   time.Duration    `json:"durationNs"`
}

// ResultTracker keeps the latest result per request ID
type ResultTracker struct {
	mu      sync.RWMutex
	results map[string]*TrackedResult
	latest  string
	seq     int
}

// NewResultTracker creates an empty tracker
func NewResultTracker() *ResultTracker {
	return &ResultTracker{
		results: make(map[string]*TrackedResult),
	}
}

// Put stores or replaces the result for its ID
func (rt *ResultTracker) Put(tr *TrackedResult) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.results[tr.ID] = tr
	rt.latest = tr.ID
}

// Get returns the result for an ID
func (rt *ResultTracker) Get(id string) (*TrackedResult, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	tr, ok := rt.results[id]
	return tr, ok
}

// Latest returns the most recently stored result
func (rt *ResultTracker) Latest() (*TrackedResult, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	tr, ok := rt.results[rt.latest]
	return tr, ok
}

// IDs returns all tracked IDs in sorted order
func (rt *ResultTracker) IDs() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	ids := make([]string, 0, len(rt.results))
	for id := range rt.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked results
func (rt *ResultTracker) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.results)
}

// NextID returns a fresh ID for requests that arrive without one
func (rt *ResultTracker) NextID() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for {
		rt.seq++
		id := fmt.Sprintf("req-%d", rt.seq)
		if _, taken := rt.results[id]; !taken {
			return id
		}
	}
}
