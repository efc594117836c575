// Package pod is the multi-manikin registry (spec.md §4.G): an eager
// map from manikin id to its bus façade, grounded on the teacher's
// WingMap pattern (internal/relay/wing_map.go) — a RWMutex-guarded map
// with a default-entry fallback, generalized from session lookup to
// manikin lookup.
package pod

import (
	"context"
	"fmt"
	"sync"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/manikin"
)

// DefaultManikinID is the id used when an inbound envelope omits mid
// or names an id the pod hasn't provisioned, matching spec.md's "mid
// selects target manikin (default if absent or unknown)" rule.
const DefaultManikinID = "default"

// Pod owns every manikin this bridge process serves. In single-manikin
// mode it holds exactly one entry keyed DefaultManikinID; in pod mode
// it holds one entry per configured manikin id plus the default.
type Pod struct {
	mu       sync.RWMutex
	manikins map[string]*manikin.Manikin
}

// New returns an empty pod.
func New() *Pod {
	return &Pod{manikins: make(map[string]*manikin.Manikin)}
}

// Provision constructs and registers a manikin bound to transport,
// then starts its bus subscriptions. It returns the manikin so the
// caller can keep a typed reference without a second lookup.
func Provision(ctx context.Context, p *Pod, id string, transport bus.Transport, dispatcher manikin.Dispatcher, podMode bool) (*manikin.Manikin, error) {
	participant := bus.NewParticipant(id, transport)
	if err := participant.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect manikin %s: %w", id, err)
	}
	m := manikin.New(id, participant, dispatcher, podMode)

	p.mu.Lock()
	p.manikins[id] = m
	p.mu.Unlock()

	go func() {
		if err := m.Start(ctx); err != nil && ctx.Err() == nil {
			// Start only returns a non-nil error from a transport
			// subscribe failure or context cancellation; the caller's
			// dispatcher has no channel to surface this on, and the
			// error is discarded here without being logged.
			_ = err
		}
	}()

	return m, nil
}

// Get resolves id to a manikin, falling back to DefaultManikinID when
// id is empty or unknown. The bool reports whether even the fallback
// was found (false only for an empty, unprovisioned pod).
func (p *Pod) Get(id string) (*manikin.Manikin, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if id != "" {
		if m, ok := p.manikins[id]; ok {
			return m, true
		}
	}
	m, ok := p.manikins[DefaultManikinID]
	return m, ok
}

// IDs returns a snapshot of every provisioned manikin id.
func (p *Pod) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.manikins))
	for id := range p.manikins {
		out = append(out, id)
	}
	return out
}

// Len reports how many manikins the pod holds.
func (p *Pod) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.manikins)
}
