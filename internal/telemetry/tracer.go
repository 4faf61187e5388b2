package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared across the storage server, caching proxy, and
// storage proxy. Keys follow OpenTelemetry semantic conventions where one
// applies; domain-specific keys use the "record.", "family.", "cache.",
// "queue." and "upload." prefixes below.
const (
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	AttrRecordUID = "record.uid"
	AttrFamily    = "family.name"
	AttrPath      = "blob.path"
	AttrSize      = "blob.size"
	AttrMime      = "blob.mime"
	AttrComp      = "blob.compression"
	AttrStatus    = "op.status"
	AttrOperation = "op.name"

	AttrCacheHit    = "cache.hit"
	AttrCacheSource = "cache.source"
	AttrCacheSize   = "cache.entries"

	AttrQueueDepth = "queue.depth"
	AttrFlood      = "upload.flooded"

	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
	AttrRegion = "storage.region"

	AttrLoop = "maintenance.loop"
)

// Span names for the operations exercised by the three services.
const (
	SpanServerRequest = "server.request"
	SpanRecordLookup  = "record.lookup"
	SpanRecordCreate  = "record.create"
	SpanRecordUpdate  = "record.update"
	SpanRecordDelete  = "record.delete"

	SpanCacheLookup  = "cache.lookup"
	SpanCacheDownload = "cache.download"
	SpanCachePurge   = "cache.purge"

	SpanUploadAccept  = "upload.accept"
	SpanUploadRelay   = "upload.relay"
	SpanUploadRecover = "upload.recover"

	SpanMaintenanceCycle = "maintenance.cycle"

	SpanContentRead  = "content.read"
	SpanContentWrite = "content.write"
)

// ClientIP returns an attribute for client IP address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// RecordUID returns an attribute for a record's uid.
func RecordUID(uid string) attribute.KeyValue {
	return attribute.String(AttrRecordUID, uid)
}

// Family returns an attribute for a record's family name.
func Family(name string) attribute.KeyValue {
	return attribute.String(AttrFamily, name)
}

// BlobPath returns an attribute for a resolved blob path.
func BlobPath(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

// BlobSize returns an attribute for a blob's size in bytes.
func BlobSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

// Mime returns an attribute for a blob's MIME type.
func Mime(mime string) attribute.KeyValue {
	return attribute.String(AttrMime, mime)
}

// Operation returns an attribute for a generic operation name.
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Status returns an attribute for an operation's outcome ("ok", "error",
// "conflict", ...).
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// CacheHit returns an attribute for cache hit indicator.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheSource returns an attribute for the origin a cache miss was filled
// from (typically the storage server's base URL).
func CacheSource(source string) attribute.KeyValue {
	return attribute.String(AttrCacheSource, source)
}

// CacheSize returns an attribute for the current number of cached entries.
func CacheSize(n int) attribute.KeyValue {
	return attribute.Int(AttrCacheSize, n)
}

// QueueDepth returns an attribute for the storage proxy's pending upload
// queue depth.
func QueueDepth(n int) attribute.KeyValue {
	return attribute.Int(AttrQueueDepth, n)
}

// Flooded returns an attribute marking an upload as flood-controlled.
func Flooded(flooded bool) attribute.KeyValue {
	return attribute.Bool(AttrFlood, flooded)
}

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for a cloud region.
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// Loop returns an attribute naming a maintenance loop ("deletion",
// "compression", "record-reconciler", "file-reconciler").
func Loop(name string) attribute.KeyValue {
	return attribute.String(AttrLoop, name)
}

// StartRecordSpan starts a span for a record store operation, tagging it
// with the record's uid and family when known.
func StartRecordSpan(ctx context.Context, spanName, uid, family string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{RecordUID(uid)}
	if family != "" {
		allAttrs = append(allAttrs, Family(family))
	}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartCacheOpSpan starts a span for a caching proxy operation.
func StartCacheOpSpan(ctx context.Context, spanName, uid string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{RecordUID(uid)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartUploadSpan starts a span for a storage proxy upload operation.
func StartUploadSpan(ctx context.Context, spanName, uid string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{RecordUID(uid)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartMaintenanceSpan starts a span for one maintenance cycle.
func StartMaintenanceSpan(ctx context.Context, loop string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Loop(loop)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanMaintenanceCycle, trace.WithAttributes(allAttrs...))
}

// StartContentSpan starts a span for a content backend read/write.
func StartContentSpan(ctx context.Context, spanName, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{BlobPath(path)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}
