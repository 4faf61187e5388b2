// Package server implements C5, the storage server's HTTP request
// pipeline: put/get/describe/update/unlink/query/ping/list-families/status
// over a chi router, plus the authorization rules of §4.3.8.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/mediastorage/internal/healthz"
	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/mailer"
	"github.com/marmos91/mediastorage/internal/telemetry"
	"github.com/marmos91/mediastorage/pkg/compression"
	"github.com/marmos91/mediastorage/pkg/family"
	"github.com/marmos91/mediastorage/pkg/metrics"
	"github.com/marmos91/mediastorage/pkg/recordstore"
	"github.com/marmos91/mediastorage/pkg/sysinfo"
)

// Config holds the subset of process configuration the request pipeline
// consults directly (§6's "Configuration (enumerated effects)").
type Config struct {
	// MinuteResolution is the bucket width new records are stamped with.
	MinuteResolution int
	// TrustedHosts are remote addresses (IP only, no port) that receive
	// (true, true) trust unconditionally (§4.3.8 rule 1).
	TrustedHosts map[string]bool
	// QueryLimit caps the result set of an unbounded query (§4.3.6).
	QueryLimit int
	// CompressionFormats restricts which codecs may be named in a put's
	// physical.format.comp or an update's policy.compress.comp; a format
	// outside this set is logged and dropped rather than failing the
	// request (§4.3.1).
	CompressionFormats map[compression.Algorithm]bool
	// TempDir is where staged writes and compression spool files land.
	TempDir string
}

// Allows reports whether algo is in the configured compression format set.
func (c Config) Allows(algo compression.Algorithm) bool {
	return c.CompressionFormats[algo]
}

// Server holds every collaborator the request pipeline needs.
type Server struct {
	Store   recordstore.Store
	Router  *family.Router
	Config  Config
	Sysinfo *sysinfo.Reader
	Metrics *metrics.ServerMetrics
	Mailer  *mailer.Mailer

	startedAt time.Time
}

// NewServer wires a Server from its collaborators. m and mail may be nil.
func NewServer(store recordstore.Store, router *family.Router, cfg Config, m *metrics.ServerMetrics, mail *mailer.Mailer) *Server {
	return &Server{
		Store:     store,
		Router:    router,
		Config:    cfg,
		Sysinfo:   sysinfo.NewReader(),
		Metrics:   m,
		Mailer:    mail,
		startedAt: time.Now(),
	}
}

// NewRouter builds the chi router exposing every endpoint in §6's HTTP
// surface, with the same middleware stack shape as the source project's
// own API router: request ID, real IP, structured request logging, panic
// recovery, and a request timeout.
func (s *Server) NewRouter(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestTracing)
	r.Use(requestLogger)
	r.Use(s.requestMetrics)
	r.Use(s.alertRecoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/health", healthz.Handler("storage-server", s.startedAt))
	r.Post("/ping", s.handlePing)
	r.Post("/list/families", s.handleListFamilies)
	r.Post("/status", s.handleStatus)
	r.Post("/put", s.handlePut)
	r.Post("/get", s.handleGet)
	r.Post("/describe", s.handleDescribe)
	r.Post("/update", s.handleUpdate)
	r.Post("/unlink", s.handleUnlink)
	r.Post("/query", s.handleQuery)

	return r
}

// requestMetrics records each request's path, status, and duration into
// s.Metrics, a no-op when s.Metrics is nil.
func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := "ok"
		if ww.Status() >= 400 {
			status = "error"
		}
		s.Metrics.RecordRequest(r.URL.Path, status, time.Since(start).Seconds())
	})
}

// requestTracing opens one span per request, named after the route path,
// tagged with the caller's address. The span closes once the handler chain
// returns, with its status set from the response code.
func requestTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanServerRequest,
			trace.WithAttributes(telemetry.ClientAddr(r.RemoteAddr)))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := "ok"
		if ww.Status() >= 400 {
			status = "error"
		}
		span.SetAttributes(telemetry.Status(status))
	})
}

// alertRecoverer recovers a panicking handler, answers 500, and forwards
// the failure to s.Mailer, matching the unknown/filesystem-error branches
// of the source's post() handler ("log critical + send_alert + 500"). A
// nil s.Mailer makes the alert a no-op.
func (s *Server) alertRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				logger.Error("panic recovered while serving request",
					"request_id", middleware.GetReqID(r.Context()),
					"path", r.URL.Path,
					"panic", rvr,
				)
				if s.Mailer != nil {
					s.Mailer.SendAlert(fmt.Sprintf("panic serving %s: %v", r.URL.Path, rvr))
				}
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
