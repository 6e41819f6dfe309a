// Package health runs liveness and readiness probes in the background and
// serves their state on /livez and /readyz.
//
// A probe flips to unhealthy only after FailureThreshold consecutive
// failures and back after SuccessThreshold consecutive successes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind distinguishes liveness from readiness probes.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Probe describes a single registered check.
type Probe struct {
	Name             string
	Kind             Kind
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
	Check            CheckFunc
}

// probeState holds the runtime state of a Probe. run is only called from the
// probe's own goroutine, so the counters need no locking.
type probeState struct {
	Probe

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func (s *probeState) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	err := s.Check(ctx)
	s.lastErr.Store(&err)

	if err != nil {
		s.oks = 0
		s.fails++
		if s.fails >= s.FailureThreshold {
			s.healthy.Store(false)
		}
		return
	}
	s.fails = 0
	s.oks++
	if s.oks >= s.SuccessThreshold {
		s.healthy.Store(true)
	}
}

func (s *probeState) failure() string {
	if p := s.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Health tracks probes and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probeState
	cancel context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a probe. Zero thresholds default to 3 failures and 1
// success, a zero timeout to one second. Probes start healthy.
func (h *Health) Add(p Probe) {
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = 3
	}
	if p.SuccessThreshold <= 0 {
		p.SuccessThreshold = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = time.Second
	}
	s := &probeState{Probe: p}
	s.healthy.Store(true)

	h.mu.Lock()
	h.probes = append(h.probes, s)
	h.mu.Unlock()
}

// AddLivenessCheck registers a liveness probe with default thresholds.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.Add(Probe{Name: name, Kind: Liveness, Timeout: timeout, Check: check})
}

// AddReadinessCheck registers a readiness probe with default thresholds.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.Add(Probe{Name: name, Kind: Readiness, Timeout: timeout, Check: check})
}

// Start runs every registered probe immediately and then every interval
// until Stop or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := append([]*probeState(nil), h.probes...)
	h.mu.Unlock()

	for _, s := range probes {
		go loop(ctx, s, interval)
	}
}

func loop(ctx context.Context, s *probeState, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// Stop cancels the probe goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag, typically true after startup and
// false when shutdown begins.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// probe passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	failures := make(map[string]string)
	for _, s := range h.probes {
		if s.Kind == kind && !s.healthy.Load() {
			failures[s.Name] = s.failure()
		}
	}
	return failures
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeResponse(w, failures)
}

func writeResponse(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
