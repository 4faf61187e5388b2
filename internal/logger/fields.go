package logger

import (
	"encoding/hex"
	"log/slog"
)

// Standard field keys for structured logging across the three media-storage
// services (storage server, caching proxy, storage proxy).
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// HTTP / Endpoint
	// ========================================================================
	KeyEndpoint  = "endpoint"   // Endpoint name: put, get, describe, update, unlink, query
	KeyStatus    = "status"     // HTTP status code returned
	KeyStatusMsg = "status_msg" // Human-readable status message

	// ========================================================================
	// Record identity
	// ========================================================================
	KeyUID    = "uid"    // Record uid
	KeyFamily = "family" // Physical family name ("" for generic/null)
	KeyMime   = "mime"   // physical.format.mime

	// ========================================================================
	// Blob path / filesystem backend
	// ========================================================================
	KeyPath       = "path"        // Resolved blob path
	KeyStagedPath = "staged_path" // Staging-suffixed path mid-write

	// ========================================================================
	// Compression
	// ========================================================================
	KeyComp       = "comp"        // Compression algorithm identifier
	KeyTargetComp = "target_comp" // Target compression algorithm for a pending policy

	// ========================================================================
	// Policy / maintenance loops
	// ========================================================================
	KeyLoop      = "loop"      // Maintenance loop name: deletion, compression, record-reconciler, file-reconciler
	KeyMatched   = "matched"   // Number of records matched this cycle
	KeyProcessed = "processed" // Number of records processed this cycle

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP   = "client_ip"   // Client IP address
	KeyClientPort = "client_port" // Client source port
	KeyTrusted    = "trusted"     // Whether the remote address is a trusted host

	// ========================================================================
	// Caching proxy / storage proxy queues
	// ========================================================================
	KeyServerHost = "server_host" // Upstream storage server host
	KeyServerPort = "server_port" // Upstream storage server port
	KeyQueueDepth = "queue_depth" // In-memory queue depth
	KeyFlooded    = "flooded"     // Whether the target is currently flood-marked
	KeyAttempt    = "attempt"     // Retry attempt number

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyBytes      = "bytes"       // Byte count transferred

	// ========================================================================
	// Request context (LogContext)
	// ========================================================================
	KeyProcedure = "procedure" // Operation name carried by a LogContext
	KeyShare     = "share"     // Share path carried by a LogContext
	KeyGID       = "gid"       // Caller group id carried by a LogContext
	KeyHandle    = "handle"    // Opaque handle bytes, hex-encoded
)

// Handle returns a slog.Attr for opaque handle bytes, hex-encoded.
func Handle(h []byte) slog.Attr { return slog.String(KeyHandle, hex.EncodeToString(h)) }

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Endpoint returns a slog.Attr for the endpoint name.
func Endpoint(name string) slog.Attr { return slog.String(KeyEndpoint, name) }

// Status returns a slog.Attr for an HTTP status code.
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

// StatusMsg returns a slog.Attr for a human-readable status message.
func StatusMsg(msg string) slog.Attr { return slog.String(KeyStatusMsg, msg) }

// UID returns a slog.Attr for a record uid.
func UID(uid string) slog.Attr { return slog.String(KeyUID, uid) }

// Family returns a slog.Attr for a physical family name.
func Family(name string) slog.Attr { return slog.String(KeyFamily, name) }

// Mime returns a slog.Attr for a MIME type.
func Mime(mime string) slog.Attr { return slog.String(KeyMime, mime) }

// Path returns a slog.Attr for a blob path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// StagedPath returns a slog.Attr for a staging-suffixed path.
func StagedPath(p string) slog.Attr { return slog.String(KeyStagedPath, p) }

// Comp returns a slog.Attr for a compression algorithm identifier.
func Comp(algo string) slog.Attr { return slog.String(KeyComp, algo) }

// TargetComp returns a slog.Attr for a pending target compression algorithm.
func TargetComp(algo string) slog.Attr { return slog.String(KeyTargetComp, algo) }

// Loop returns a slog.Attr for a maintenance loop name.
func Loop(name string) slog.Attr { return slog.String(KeyLoop, name) }

// Matched returns a slog.Attr for the number of records matched this cycle.
func Matched(n int) slog.Attr { return slog.Int(KeyMatched, n) }

// Processed returns a slog.Attr for the number of records processed this cycle.
func Processed(n int) slog.Attr { return slog.Int(KeyProcessed, n) }

// ClientIP returns a slog.Attr for a client IP address.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// ClientPort returns a slog.Attr for a client source port.
func ClientPort(port int) slog.Attr { return slog.Int(KeyClientPort, port) }

// Trusted returns a slog.Attr for whether the remote address is trusted.
func Trusted(t bool) slog.Attr { return slog.Bool(KeyTrusted, t) }

// ServerHost returns a slog.Attr for an upstream storage server host.
func ServerHost(host string) slog.Attr { return slog.String(KeyServerHost, host) }

// ServerPort returns a slog.Attr for an upstream storage server port.
func ServerPort(port int) slog.Attr { return slog.Int(KeyServerPort, port) }

// QueueDepth returns a slog.Attr for an in-memory queue depth.
func QueueDepth(n int) slog.Attr { return slog.Int(KeyQueueDepth, n) }

// Flooded returns a slog.Attr for whether a target is flood-marked.
func Flooded(f bool) slog.Attr { return slog.Bool(KeyFlooded, f) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Bytes returns a slog.Attr for a byte count transferred.
func Bytes(n int64) slog.Attr { return slog.Int64(KeyBytes, n) }
