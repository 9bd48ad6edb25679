package webhooks

import (
	"context"
	"sync"
)

// inflight tracks the cancel functions of running deliveries by endpoint.
type inflight struct {
	mu         sync.Mutex
	byEndpoint map[string]map[string]context.CancelCauseFunc
}

func newInflight() *inflight {
	return &inflight{byEndpoint: make(map[string]map[string]context.CancelCauseFunc)}
}

func (f *inflight) add(endpointID, deliveryID string, cancel context.CancelCauseFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.byEndpoint[endpointID]
	if !ok {
		m = make(map[string]context.CancelCauseFunc)
		f.byEndpoint[endpointID] = m
	}
	m[deliveryID] = cancel
}

func (f *inflight) remove(endpointID, deliveryID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := f.byEndpoint[endpointID]; ok {
		delete(m, deliveryID)
		if len(m) == 0 {
			delete(f.byEndpoint, endpointID)
		}
	}
}

func (f *inflight) cancel(endpointID string, cause error) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := f.byEndpoint[endpointID]
	for _, cancel := range m {
		cancel(cause)
	}
	return len(m)
}

func (f *inflight) count(endpointID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEndpoint[endpointID])
}
