package storageproxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/mediastorage/internal/healthz"
	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/mailer"
	"github.com/marmos91/mediastorage/internal/telemetry"
	"github.com/marmos91/mediastorage/pkg/metrics"
	"github.com/marmos91/mediastorage/pkg/record"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// PartExtension is the staging suffix a partially-copied upload carries
// until its rename completes (§4.7.1 step 3, §4.7.4's "part" check).
const PartExtension = ".part"

// MetaExtension is the sidecar extension storing a staged entity's full
// descriptor.
const MetaExtension = ".meta"

// Server exposes the storage proxy's single accept endpoint, POST /put
// (§6), backing onto a staging Root, a Queue, and the relay worker pool
// reading from it.
type Server struct {
	root      string
	queue     *Queue
	metrics   *metrics.StorageProxyMetrics
	mailer    *mailer.Mailer
	startedAt time.Time
}

// NewServer wires a Server rooted at root, feeding queue. m and mail may be
// nil.
func NewServer(root string, queue *Queue, m *metrics.StorageProxyMetrics, mail *mailer.Mailer) *Server {
	return &Server{root: root, queue: queue, metrics: m, mailer: mail, startedAt: time.Now()}
}

// NewRouter builds the chi router exposing /put.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.alertRecoverer)
	r.Get("/health", healthz.Handler("storage-proxy", s.startedAt))
	r.Post("/put", s.handlePut)
	return r
}

// alertRecoverer recovers a panicking handler, answers 500, and forwards
// the failure to s.mailer, mirroring filesystem.py's "log critical +
// send_alert" behavior on an unexpected staging failure. A nil s.mailer
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

func targetDirName(host string, port int) string {
	return fmt.Sprintf("%s_%d", host, port)
}

// handlePut implements §4.7.1: parse the request, assign any missing
// uid/keys, stage the source file under a .part suffix, write the meta
// sidecar, rename into place, enqueue, and respond immediately.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var req wire.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusConflict, "malformed request body")
		return
	}
	if req.Physical.Format.Mime == "" {
		writeError(w, http.StatusConflict, "physical.format.mime is required")
		return
	}
	if req.Data == "" {
		writeError(w, http.StatusConflict, "proxy.data is required")
		return
	}

	uid := ""
	if req.UID != nil {
		uid = *req.UID
	}
	if uid == "" {
		var err error
		uid, err = record.NewUID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate uid")
			return
		}
	}

	ctx, span := telemetry.StartUploadSpan(r.Context(), telemetry.SpanUploadAccept, uid)
	defer span.End()

	readKey, writeKey, err := resolveKeys(req.Keys)
	if err != nil {
		telemetry.RecordError(ctx, err)
		writeError(w, http.StatusInternalServerError, "failed to generate key secret")
		return
	}

	targetDir := filepath.Join(s.root, targetDirName(req.Proxy.Server.Host, req.Proxy.Server.Port))
	if err := os.MkdirAll(targetDir, 0o700); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create staging directory")
		return
	}

	permPath := filepath.Join(targetDir, uid)
	stagedPath := permPath + PartExtension
	metaPath := permPath + MetaExtension

	if err := copyFile(req.Data, stagedPath); err != nil {
		logger.Error("failed to stage upload", "path", stagedPath, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}

	meta := stagedMeta{
		UID:      uid,
		Keys:     wire.KeysOutput{Read: readKey, Write: writeKey},
		Physical: req.Physical,
		Policy:   req.Policy,
		Meta:     req.Meta,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		os.Remove(stagedPath)
		writeError(w, http.StatusInternalServerError, "failed to encode staged metadata")
		return
	}
	if err := os.WriteFile(metaPath, metaBytes, 0o600); err != nil {
		os.Remove(stagedPath)
		logger.Error("failed to write staged metadata", "path", metaPath, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write staged metadata")
		return
	}

	if err := os.Rename(stagedPath, permPath); err != nil {
		os.Remove(stagedPath)
		os.Remove(metaPath)
		logger.Error("failed to finalize staged upload", "path", permPath, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to finalize staged upload")
		return
	}

	s.queue.Enqueue(Entry{
		Target:      req.Proxy.Server,
		ContentPath: permPath,
		MetaPath:    metaPath,
	})
	s.metrics.RecordAccepted()
	depth := s.queue.Depth()
	s.metrics.SetQueueDepth(depth)
	span.SetAttributes(telemetry.QueueDepth(depth), telemetry.Status("ok"))

	writeJSON(w, http.StatusOK, wire.PutResponse{
		UID:  uid,
		Keys: wire.KeysOutput{Read: readKey, Write: writeKey},
	})
}

func resolveKeys(in *wire.KeysInput) (read, write *string, err error) {
	if in != nil && in.Read != nil {
		read = in.Read
	} else {
		s, genErr := record.NewKeySecret()
		if genErr != nil {
			return nil, nil, genErr
		}
		read = &s
	}
	if in != nil && in.Write != nil {
		write = in.Write
	} else {
		s, genErr := record.NewKeySecret()
		if genErr != nil {
			return nil, nil, genErr
		}
		write = &s
	}
	return read, write, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
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
