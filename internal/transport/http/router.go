// Package httptransport exposes the operational HTTP surface: health,
// registry inspection and metrics.
package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jardisPsr/foundation/internal/bootstrap"
	"github.com/jardisPsr/foundation/internal/platform/metrics"
	"github.com/jardisPsr/foundation/internal/platform/middleware"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/httputil"
)

// HealthFunc reports the state of every registered connection.
type HealthFunc func(ctx context.Context) bootstrap.HealthReport

// Handler is the thin HTTP layer over the registry and health checks.
type Handler struct {
	registry contracts.ResourceRegistry
	health   HealthFunc
	log      contracts.Logger
}

func NewHandler(registry contracts.ResourceRegistry, health HealthFunc, log contracts.Logger) *Handler {
	return &Handler{registry: registry, health: health, log: log}
}

// NewRouter wires the public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(h.log))

	r.Get("/healthz", h.handleHealth)
	r.Get("/resources", h.handleResources)
	r.Get("/resources/{key}", h.handleResource)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.health(r.Context())

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(report))}
	for key, err := range report {
		if err != nil {
			resp.Checks[key] = err.Error()
			continue
		}
		resp.Checks[key] = "ok"
	}

	status := http.StatusOK
	if !report.OK() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

type resourceEntry struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

func (h *Handler) handleResources(w http.ResponseWriter, _ *http.Request) {
	all := h.registry.All()
	entries := make([]resourceEntry, 0, len(all))
	for key, v := range all {
		entries = append(entries, resourceEntry{Key: key, Type: fmt.Sprintf("%T", v)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleResource(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.registry.Get(key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resourceEntry{Key: key, Type: fmt.Sprintf("%T", v)})
}
