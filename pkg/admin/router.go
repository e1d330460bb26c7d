package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"nostr-jobs/pkg/jobs"

	"github.com/go-chi/chi/v5"
)

// Service is the query and operator surface exposed over HTTP.
type Service interface {
	Search(ctx context.Context, args jobs.SearchArgs) string
	JobDetails(ctx context.Context, jobID string) string
	Stats(ctx context.Context) string
	Relays() string
	Resources() []jobs.Resource
	ReadResource(ctx context.Context, uri string) (string, error)
	MetricsReport() string
	ResetMetrics() string
	ClearCache() string
}

type HealthReporter interface {
	IsHealthy() bool
	Status() string
}

type Handler struct {
	service Service
	health  HealthReporter
	logger  *log.Logger
}

func NewHandler(service Service, health HealthReporter, logger *log.Logger) *Handler {
	return &Handler{service: service, health: health, logger: logger}
}

// NewRouter serves every response as text/plain.
func NewRouter(handler *Handler, debug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger, debug))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusOK, "ok") })

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", handler.healthStatus)
		r.Get("/relays", handler.relays)

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/", handler.metrics)
			r.Post("/reset", handler.resetMetrics)
		})
		r.Post("/cache/clear", handler.clearCache)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", handler.search)
			r.Get("/{id}", handler.jobDetails)
		})
		r.Get("/stats", handler.stats)

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", handler.listResources)
			r.Get("/*", handler.readResource)
		})
		r.Get("/prompts/{name}", handler.prompt)
	})
	return r
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, body)
}

func (h *Handler) healthStatus(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	if !h.health.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeText(w, status, h.health.Status())
}

func (h *Handler) relays(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, h.service.Relays())
}

func (h *Handler) metrics(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, h.service.MetricsReport())
}

func (h *Handler) resetMetrics(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, h.service.ResetMetrics())
}

func (h *Handler) clearCache(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, h.service.ClearCache())
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	args := jobs.SearchArgs{
		Company:        q.Get("company"),
		Skill:          q.Get("skill"),
		EmploymentType: q.Get("employment_type"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeText(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		args.Limit = limit
	}
	writeText(w, http.StatusOK, h.service.Search(r.Context(), args))
}

func (h *Handler) jobDetails(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, h.service.JobDetails(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, h.service.Stats(r.Context()))
}

func (h *Handler) listResources(w http.ResponseWriter, _ *http.Request) {
	var b strings.Builder
	for _, res := range h.service.Resources() {
		fmt.Fprintf(&b, "%s\t%s\n", res.URI, res.Name)
	}
	writeText(w, http.StatusOK, strings.TrimRight(b.String(), "\n"))
}

// readResource maps /v1/resources/latest to jobs://latest.
func (h *Handler) readResource(w http.ResponseWriter, r *http.Request) {
	uri := "jobs://" + chi.URLParam(r, "*")
	body, err := h.service.ReadResource(r.Context(), uri)
	if errors.Is(err, jobs.ErrResourceNotFound) {
		writeText(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeText(w, http.StatusOK, body)
}

func (h *Handler) prompt(w http.ResponseWriter, r *http.Request) {
	args := jobs.PromptArgs{Query: r.URL.Query().Get("query")}
	if raw := r.URL.Query().Get("skills"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				args.Skills = append(args.Skills, s)
			}
		}
	}

	p, err := jobs.GetPrompt(chi.URLParam(r, "name"), args)
	switch {
	case errors.Is(err, jobs.ErrPromptNotFound):
		writeText(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeText(w, http.StatusBadRequest, err.Error())
	default:
		writeText(w, http.StatusOK, p.String())
	}
}
