// Package subscription holds the per-session topic membership sets and
// the equipment settings map. Grounded on the teacher's WingMap
// (internal/relay/wing_map.go): a RWMutex-guarded map with a Snapshot
// method so fan-out never holds the lock during socket writes.
package subscription

import "sync"

// Index maps session id -> set of topic names it is subscribed to.
// Insertion is add-if-absent; lookup is membership, not order.
type Index struct {
	mu     sync.RWMutex
	topics map[string]map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{topics: make(map[string]map[string]struct{})}
}

// Add inserts topic into sessionID's set. Idempotent.
func (idx *Index) Add(sessionID, topic string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.topics[sessionID]
	if !ok {
		set = make(map[string]struct{})
		idx.topics[sessionID] = set
	}
	set[topic] = struct{}{}
}

// Has reports whether sessionID's set contains topic.
func (idx *Index) Has(sessionID, topic string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.topics[sessionID][topic]
	return ok
}

// Clear empties sessionID's set without removing the session key,
// mirroring spec.md: a fresh capability document resets subscriptions
// before re-adding them.
func (idx *Index) Clear(sessionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.topics[sessionID] = make(map[string]struct{})
}

// Remove deletes sessionID's entry entirely. Idempotent.
func (idx *Index) Remove(sessionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.topics, sessionID)
}

// SubscribersOf returns a snapshot of session ids whose set contains
// topic. Safe to call while holding no other lock; callers must not
// call back into the index while iterating the result.
func (idx *Index) SubscribersOf(topic string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []string
	for sessionID, set := range idx.topics {
		if _, ok := set[topic]; ok {
			out = append(out, sessionID)
		}
	}
	return out
}

// Topics returns a snapshot of sessionID's topic set.
func (idx *Index) Topics(sessionID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set := idx.topics[sessionID]
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}
