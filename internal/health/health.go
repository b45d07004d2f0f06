// Package health serves liveness and readiness probes for the droid.
//
//   - /healthz: the process is up and serving HTTP; always 200.
//   - /readyz: 200 only once every registered [Checker] passes, e.g. the
//     microphone is calibrated and capture frames are still arriving.
//
// Responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" map with the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

// Checker is a named readiness check. Check returns nil when healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Flag is a readiness condition flipped by the component that owns it.
// The zero value is "not ready".
type Flag struct {
	ready  atomic.Bool
	reason atomic.Value // string
}

// Set marks the flag ready.
func (f *Flag) Set() { f.ready.Store(true) }

// Clear marks the flag not ready, remembering why.
func (f *Flag) Clear(reason string) {
	f.reason.Store(reason)
	f.ready.Store(false)
}

// Checker returns a [Checker] named name that passes while the flag is set.
func (f *Flag) Checker(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if f.ready.Load() {
			return nil
		}
		if r, _ := f.reason.Load().(string); r != "" {
			return errors.New(r)
		}
		return errors.New("not ready")
	}}
}

type result struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
	started  time.Time
}

// New creates a [Handler] evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...), started: time.Now()}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz runs every checker concurrently, each under [checkTimeout].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)
	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
				return
			}
			checks[c.Name] = "ok"
		}()
	}
	wg.Wait()

	res, status := result{Status: "ok", Checks: checks}, http.StatusOK
	if !allOK {
		res.Status, status = "fail", http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
