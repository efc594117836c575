package manikin

import (
	"sync"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus"
)

// EventCache correlates event records and promoted omitted events by
// event_id so later modifications/assessments on the same event_id can
// be attributed back to their originating action.
type EventCache struct {
	mu      sync.RWMutex
	records map[string]bus.EventRecordSample
}

// NewEventCache returns an empty cache.
func NewEventCache() *EventCache {
	return &EventCache{records: make(map[string]bus.EventRecordSample)}
}

// Put stores or overwrites a record.
func (c *EventCache) Put(rec bus.EventRecordSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.EventID] = rec
}

// PutOmitted promotes an omitted event into the same cache, filling in
// the fields EventRecordSample carries that OmittedEventSample doesn't.
func (c *EventCache) PutOmitted(ev bus.OmittedEventSample) {
	c.Put(bus.EventRecordSample{
		EventID:  ev.EventID,
		Location: ev.Location,
		AgentID:  ev.AgentID,
		Type:     ev.Type,
	})
}

// Get returns the cached record for eventID, if any.
func (c *EventCache) Get(eventID string) (bus.EventRecordSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[eventID]
	return rec, ok
}

// Reset clears the cache, used on a RESET control sample.
func (c *EventCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]bus.EventRecordSample)
}

// Len reports the number of cached records.
func (c *EventCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
