// Package health implements Kubernetes-style liveness and readiness probes.
//
// Registered checks run on their own background goroutines at a fixed
// interval. State transitions are thresholded the way kubelet probes are: a
// check flips to unhealthy only after failing consecutively a few times, and
// flips back after succeeding, so a single slow poll does not pull the
// service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency. nil means healthy.
type CheckFunc func(ctx context.Context) error

const (
	failureThreshold = 3
	successThreshold = 1
)

// result is a probe state snapshot, swapped atomically so HTTP handlers read
// a consistent pair without locking.
type result struct {
	healthy bool
	detail  string
}

// probe is one registered check plus its thresholded state. execute is only
// ever called from the probe's own goroutine; the consecutive counters need
// no synchronization.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	state atomic.Pointer[result]

	fails int
	oks   int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, check: check}
	// Healthy until proven otherwise, so registration order cannot cause a
	// spurious 503 before the first poll.
	p.state.Store(&result{healthy: true, detail: "ok"})
	return p
}

// execute runs the check once and folds the outcome into the state.
func (p *probe) execute(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prev := p.state.Load()
	if err := p.check(ctx); err != nil {
		p.oks = 0
		p.fails++
		healthy := prev.healthy && p.fails < failureThreshold
		p.state.Store(&result{healthy: healthy, detail: err.Error()})
		return
	}
	p.fails = 0
	p.oks++
	healthy := prev.healthy || p.oks >= successThreshold
	p.state.Store(&result{healthy: healthy, detail: "ok"})
}

func (p *probe) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.execute(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.execute(ctx)
		}
	}
}

// Service aggregates liveness and readiness probes and serves them over HTTP.
type Service struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a Service in the not-ready state; call SetReady(true) once
// startup completes.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a probe for process health (goroutine leaks, GC
// stalls). A failing liveness probe means the process should be restarted.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe for traffic-serving fitness (database
// reachability, dependency availability). A failing readiness probe takes the
// instance out of rotation without restarting it.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, newProbe(name, timeout, check))
}

// Start launches one goroutine per registered probe, polling at interval.
// Register all probes before calling Start.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	probes := make([]*probe, 0, len(s.liveness)+len(s.readiness))
	probes = append(probes, s.liveness...)
	probes = append(probes, s.readiness...)
	s.mu.Unlock()

	for _, p := range probes {
		go p.loop(ctx, interval)
	}
}

// Stop cancels all probe goroutines. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness gate: true after startup, false at the
// start of graceful shutdown to drain traffic.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe passes.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}
	for _, p := range s.snapshot(&s.readiness) {
		if !p.state.Load().healthy {
			return false
		}
	}
	return true
}

func (s *Service) snapshot(set *[]*probe) []*probe {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*probe, len(*set))
	copy(out, *set)
	return out
}

// report is the wire shape of a probe endpoint response. Checks maps every
// probe to "ok" or its failure detail.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the liveness probe: 200 when every liveness check
// passes, 503 otherwise. The body always lists per-check state.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, s.snapshot(&s.liveness), true)
}

// ReadyEndpoint serves the readiness probe: 200 when the manual gate is open
// and every readiness check passes, 503 otherwise.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, s.snapshot(&s.readiness), s.ready.Load())
}

func writeReport(w http.ResponseWriter, probes []*probe, gateOpen bool) {
	rep := report{Status: "ok", Checks: make(map[string]string, len(probes)+1)}

	for _, p := range probes {
		st := p.state.Load()
		if st.healthy {
			rep.Checks[p.name] = "ok"
			continue
		}
		rep.Checks[p.name] = st.detail
		rep.Status = "unavailable"
	}
	if !gateOpen {
		rep.Checks["service"] = "not ready"
		rep.Status = "unavailable"
	}

	code := http.StatusOK
	if rep.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
