package subscription

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EquipmentSettings is a two-level mapping capability -> setting-name
// -> setting-value, seeded from a capability document's
// starting_settings and merged from subsequent configuration updates.
type EquipmentSettings struct {
	mu       sync.RWMutex
	settings map[string]map[string]string
}

// NewEquipmentSettings returns an empty settings table.
func NewEquipmentSettings() *EquipmentSettings {
	return &EquipmentSettings{settings: make(map[string]map[string]string)}
}

// Merge upserts kv into capability's inner map.
func (e *EquipmentSettings) Merge(capability string, kv map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inner, ok := e.settings[capability]
	if !ok {
		inner = make(map[string]string)
		e.settings[capability] = inner
	}
	for k, v := range kv {
		inner[k] = v
	}
}

// Snapshot returns a copy of capability's settings map.
func (e *EquipmentSettings) Snapshot(capability string) map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inner := e.settings[capability]
	out := make(map[string]string, len(inner))
	for k, v := range inner {
		out[k] = v
	}
	return out
}

// Serialize renders capability's settings map as deterministic "k=v\n"
// lines, used for the InstrumentData bus sample.
func (e *EquipmentSettings) Serialize(capability string) string {
	snap := e.Snapshot(capability)
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, snap[k])
	}
	return b.String()
}
