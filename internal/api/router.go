// Package api exposes the control plane's operator-facing HTTP surface:
// pipeline lifecycle (create/start/pause/resume/stop/delete), a standalone
// source readiness check, resource and health diagnostics, and a manual
// monitor sweep ("check now"). It is deliberately not a multi-tenant
// authenticated surface or the conversational front-end — those sit
// outside this module's scope.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/orchestrator"
	"github.com/bkvaiude/dataflow-ctl/pkg/observability"
)

// PipelineReader is the read-only pipeline lookup this surface needs,
// narrowed from *postgres.Store.
type PipelineReader interface {
	GetPipeline(ctx context.Context, id string) (*models.Pipeline, error)
	ListPipelines(ctx context.Context, owner string) ([]models.Pipeline, error)
}

// ResourceLister reports a pipeline's tracked external footprint, narrowed
// from *tracker.Tracker.
type ResourceLister interface {
	DeletionOrder(ctx context.Context, pipelineID string) ([]models.TrackedResource, error)
}

// Checker triggers an out-of-band monitor sweep for one pipeline, narrowed
// from *monitor.Monitor.
type Checker interface {
	CheckPipeline(ctx context.Context, pipelineID string) error
}

// Orchestrator drives the pipeline lifecycle, narrowed from
// *orchestrator.Orchestrator.
type Orchestrator interface {
	Create(ctx context.Context, in orchestrator.CreateInput) (*models.Pipeline, error)
	Start(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error)
	Pause(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error)
	Resume(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error)
	Stop(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error)
	Delete(ctx context.Context, owner, pipelineID string, opts orchestrator.DeleteOptions) (orchestrator.DeleteResult, error)
}

type handler struct {
	log          *slog.Logger
	pipelines    PipelineReader
	resources    ResourceLister
	checker      Checker
	orchestrator Orchestrator
	readiness    ReadinessProber
	api          huma.API
}

// NewRouter builds the operator-facing HTTP surface.
func NewRouter(log *slog.Logger, pipelines PipelineReader, resources ResourceLister, checker Checker, orch Orchestrator, readiness ReadinessProber, meter *observability.Meter) http.Handler {
	r := mux.NewRouter()

	config := huma.DefaultConfig("dataflow-ctl", "1.0.0")
	config.Info.Description = "Operator-facing surface for the dataflow control plane"
	config.CreateHooks = nil
	config.OpenAPIPath = ""
	config.DocsPath = ""

	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		if len(errs) >= 1 {
			log.Error("api error", "status", status, "message", message, "errors", errs)
		}
		return &ErrorDetail{Status: status, Message: message}
	}

	humaAPI := humamux.New(r, config)

	h := handler{log: log, pipelines: pipelines, resources: resources, checker: checker, orchestrator: orch, readiness: readiness, api: humaAPI}

	registerHumaHandler("/api/v1/pipelines", h.listPipelines, log, ListPipelinesDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines", h.createPipeline, log, CreatePipelineDocs(), humaAPI)
	registerHumaHandler("/api/v1/readiness", h.checkReadiness, log, CheckReadinessDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}", h.getPipeline, log, GetPipelineDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}", h.deletePipeline, log, DeletePipelineDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}/resources", h.getPipelineResources, log, GetPipelineResourcesDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}/check-now", h.checkNow, log, CheckNowDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}/start", h.startPipeline, log, StartPipelineDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}/pause", h.pausePipeline, log, PausePipelineDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}/resume", h.resumePipeline, log, ResumePipelineDocs(), humaAPI)
	registerHumaHandler("/api/v1/pipelines/{id}/stop", h.stopPipeline, log, StopPipelineDocs(), humaAPI)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	r.Use(recovery(log), requestLogging(log), requestMetrics(meter))

	return r
}

func (*handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func registerHumaHandler[I, O any](path string, fn func(context.Context, *I) (*O, error), log *slog.Logger, op huma.Operation, api huma.API) {
	op.Path = path
	huma.Register(api, op, func(ctx context.Context, input *I) (*O, error) {
		output, err := fn(ctx, input)
		if err == nil {
			return output, nil
		}
		var detail *ErrorDetail
		if !errors.As(err, &detail) {
			log.ErrorContext(ctx, err.Error())
			return output, err
		}
		log.ErrorContext(ctx, detail.Error(), slog.Int("status", detail.Status), slog.Any("details", detail.Details))
		return output, detail
	})
}

func recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(r.Context(), "panic", "error", rec, "stacktrace", string(debug.Stack()))
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				level := slog.LevelInfo
				if lw.status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				log.Log(r.Context(), level, "request",
					slog.Duration("latency", time.Since(start)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", lw.status))
			}()
			next.ServeHTTP(lw, r)
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestMetrics(meter *observability.Meter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if meter == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			route := r.URL.Path
			if rt := mux.CurrentRoute(r); rt != nil {
				if tmpl, err := rt.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			mw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(mw, r)

			attrs := []attribute.KeyValue{
				attribute.String("method", r.Method),
				attribute.String("path", route),
				attribute.Int("status", mw.status),
			}
			ctx := r.Context()
			meter.HTTPRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
			meter.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		})
	}
}
