// Package health serves the liveness and readiness probes for the story
// server.
//
//   - /healthz — liveness; a process that can serve HTTP answers 200.
//   - /readyz  — readiness; 200 only when every registered [Checker]
//     passes, 503 otherwise.
//
// Responses are JSON with a top-level "status" and a per-check "checks"
// map, so an operator can see which dependency is failing.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds how long a single readiness check may run.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is usable and an error describing the problem otherwise. It must respect
// context cancellation.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "stories").
	Name string

	Check func(ctx context.Context) error
}

// run evaluates the check under the probe timeout and returns the value
// shown for it in the response.
func (c Checker) run(ctx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := c.Check(ctx); err != nil {
		return "fail: " + err.Error(), false
	}
	return "ok", true
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction; safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating the given checkers, in order, on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, "ok", nil)
}

// Readyz answers 200 when every checker passes and 503 when any fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	code := http.StatusOK
	for _, c := range h.checkers {
		detail, ok := c.run(r.Context())
		checks[c.Name] = detail
		if !ok {
			code = http.StatusServiceUnavailable
		}
	}

	status := "ok"
	if code != http.StatusOK {
		status = "fail"
	}
	respond(w, code, status, checks)
}

func respond(w http.ResponseWriter, code int, status string, checks map[string]string) {
	body := struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}{Status: status, Checks: checks}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
