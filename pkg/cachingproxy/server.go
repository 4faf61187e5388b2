package cachingproxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/mediastorage/internal/healthz"
	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/mailer"
	"github.com/marmos91/mediastorage/pkg/apiclient"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// Server exposes the caching proxy's HTTP surface (§6: "POST /get, POST
// /describe"), backed by a Cache and one apiclient.Client per upstream
// target (§4.6.1).
type Server struct {
	cache          *Cache
	requestTimeout time.Duration
	startedAt      time.Time
	mailer         *mailer.Mailer

	clientsMu sync.Mutex
	clients   map[string]*apiclient.Client
}

// NewServer wires a Server around cache. mail may be nil.
func NewServer(cache *Cache, requestTimeout time.Duration, mail *mailer.Mailer) *Server {
	return &Server{
		cache:          cache,
		requestTimeout: requestTimeout,
		startedAt:      time.Now(),
		mailer:         mail,
		clients:        map[string]*apiclient.Client{},
	}
}

func (s *Server) clientFor(host string, port int) *apiclient.Client {
	key := targetDir(host, port)
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	c, ok := s.clients[key]
	if !ok {
		c = apiclient.New(host, port, s.requestTimeout)
		s.clients[key] = c
	}
	return c
}

// NewRouter builds the chi router exposing /get and /describe, mirroring
// pkg/server's own middleware stack shape.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.alertRecoverer)

	r.Get("/health", healthz.Handler("caching-proxy", s.startedAt))
	r.Post("/get", s.handleGet)
	r.Post("/describe", s.handleDescribe)

	return r
}

// alertRecoverer recovers a panicking handler, answers 500, and forwards
// the failure to s.mailer, mirroring cache.py's "log critical + send_alert"
// behavior on an unexpected download/filesystem error. A nil s.mailer
// makes the alert a no-op.
func (s *Server) alertRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				logger.Error("panic recovered while serving request",
					"request_id", middleware.GetReqID(r.Context()),
					"path", r.URL.Path,
					"panic", rvr,
				)
				if s.mailer != nil {
					s.mailer.SendAlert(fmt.Sprintf("panic serving %s: %v", r.URL.Path, rvr))
				}
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req wire.CacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusConflict, "malformed request body")
		return
	}
	if req.Keys.Read == nil {
		writeError(w, http.StatusForbidden, "read key required")
		return
	}

	client := s.clientFor(req.Proxy.Server.Host, req.Proxy.Server.Port)
	meta, content, err := s.cache.Retrieve(r.Context(), client, req.Proxy.Server.Host, req.Proxy.Server.Port, req.UID, *req.Keys.Read, true)
	if err != nil {
		s.writeRetrieveError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", meta.Physical.Format.Mime)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		logger.Error("failed streaming cached content", "uid", req.UID, "error", err)
	}
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req wire.CacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusConflict, "malformed request body")
		return
	}
	if req.Keys.Read == nil {
		writeError(w, http.StatusForbidden, "read key required")
		return
	}

	client := s.clientFor(req.Proxy.Server.Host, req.Proxy.Server.Port)
	meta, _, err := s.cache.Retrieve(r.Context(), client, req.Proxy.Server.Host, req.Proxy.Server.Port, req.UID, *req.Keys.Read, false)
	if err != nil {
		s.writeRetrieveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meta.DescribeView)
}

func (s *Server) writeRetrieveError(w http.ResponseWriter, err error) {
	switch {
	case err == ErrPermission:
		writeError(w, http.StatusForbidden, err.Error())
	default:
		var apiErr *apiclient.APIError
		if asAPIError(err, &apiErr) {
			writeError(w, apiErr.StatusCode, apiErr.Message)
			return
		}
		logger.Error("caching proxy retrieve failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func asAPIError(err error, target **apiclient.APIError) bool {
	apiErr, ok := err.(*apiclient.APIError)
	if ok {
		*target = apiErr
	}
	return ok
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}
