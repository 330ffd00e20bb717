// Package health serves the liveness and readiness probes of a Voxlate
// server.
//
//   - /healthz — liveness; a process that answers HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered [Checker] passes.
//
// Both respond with a JSON body carrying a top-level "status" of "ok" or
// "fail"; /readyz adds a "checks" map with one entry per checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout caps how long one readiness check may probe its dependency.
const checkTimeout = 5 * time.Second

// Checker probes one dependency the server needs before it can caption
// audio, such as a provider endpoint or the config file.
type Checker struct {
	// Name keys this check's entry in the /readyz response.
	Name string

	// Check returns nil when the dependency is usable. It must respect
	// context cancellation.
	Check func(ctx context.Context) error
}

// probeResult is the JSON body of both endpoints.
type probeResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates a fixed set of checkers. Safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] over the given checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/readyz", h.Readyz)
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResult{Status: "ok"})
}

// Readyz runs every checker concurrently, each against its own
// [checkTimeout] deadline, and answers 503 if any of them fail.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	type outcome struct {
		name string
		err  error
	}

	outcomes := make([]outcome, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			outcomes[i] = outcome{name: c.Name, err: c.Check(ctx)}
		}()
	}
	wg.Wait()

	res := probeResult{
		Status: "ok",
		Checks: make(map[string]string, len(outcomes)),
	}
	status := http.StatusOK
	for _, o := range outcomes {
		if o.err != nil {
			res.Checks[o.name] = "fail: " + o.err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			res.Checks[o.name] = "ok"
		}
	}

	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
