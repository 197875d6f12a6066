package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus classifies how well a component is working.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// HealthResult is the outcome of probing a single component.
type HealthResult struct {
	Status    HealthStatus
	Component string
	Message   string
	LastCheck time.Time
	Error     error
}

// HealthChecker probes one component. Checkers that talk to the network
// should honor the context and cache their own results if probing is
// expensive.
type HealthChecker interface {
	Check(ctx context.Context) HealthResult
}

// HealthCheckProvider aggregates component checkers for the serving
// surface.
type HealthCheckProvider interface {
	RegisterChecker(name string, checker HealthChecker)
	CheckAll(ctx context.Context) ([]HealthResult, HealthStatus)
}

// DefaultHealthCheckProvider keeps a registry of named checkers and runs
// them sequentially on demand.
type DefaultHealthCheckProvider struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewDefaultHealthCheckProvider creates an empty provider.
func NewDefaultHealthCheckProvider() *DefaultHealthCheckProvider {
	return &DefaultHealthCheckProvider{checkers: make(map[string]HealthChecker)}
}

// RegisterChecker adds or replaces the checker for a component name.
func (p *DefaultHealthCheckProvider) RegisterChecker(name string, checker HealthChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers[name] = checker
}

// CheckAll probes every registered component in name order and folds the
// individual statuses into an overall verdict: one unhealthy component
// marks the whole service unhealthy, otherwise one degraded component
// degrades it. The registration name wins over whatever Component the
// checker filled in.
func (p *DefaultHealthCheckProvider) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	type entry struct {
		name    string
		checker HealthChecker
	}
	p.mu.RLock()
	entries := make([]entry, 0, len(p.checkers))
	for name, checker := range p.checkers {
		entries = append(entries, entry{name, checker})
	}
	p.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	overall := HealthHealthy
	results := make([]HealthResult, 0, len(entries))
	for _, e := range entries {
		result := e.checker.Check(ctx)
		result.Component = e.name
		results = append(results, result)

		switch result.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}

// SimpleHealthChecker reports a fixed status. Useful as a stand-in for
// components without a real probe.
type SimpleHealthChecker struct {
	status  HealthStatus
	message string
}

// NewSimpleHealthChecker creates a checker that always reports status
// and message.
func NewSimpleHealthChecker(status HealthStatus, message string) *SimpleHealthChecker {
	return &SimpleHealthChecker{status: status, message: message}
}

func (s *SimpleHealthChecker) Check(ctx context.Context) HealthResult {
	return HealthResult{Status: s.status, Message: s.message, LastCheck: time.Now()}
}
