package metrics

import "testing"

func TestNilMetricsAreSafeToUse(t *testing.T) {
	var (
		server  *ServerMetrics
		proxy   *CachingProxyMetrics
		storage *StorageProxyMetrics
		maint   *MaintenanceMetrics
	)

	server.RecordRequest("put", "ok", 0.01)
	server.AddBytesWritten(128)
	server.AddBytesRead(128)
	server.SetRecordsStored(10)

	proxy.RecordHit()
	proxy.RecordMiss()
	proxy.RecordDownload("ok", 0.1)
	proxy.AddEntriesPurged(1)
	proxy.SetCacheEntries(5)

	storage.RecordAccepted()
	storage.SetQueueDepth(3)
	storage.RecordUpload("success")
	storage.RecordFloodMark()
	storage.AddRecoveredJobs(2)

	maint.RecordCycle("deletion", 4, 0.2)
	maint.RecordError("deletion")
}

func TestInitRegistryTogglesIsEnabled(t *testing.T) {
	InitRegistry(false)
	if IsEnabled() {
		t.Fatal("expected metrics to be disabled")
	}
	if Registerer() != nil {
		t.Fatal("expected a nil Registerer when disabled")
	}

	InitRegistry(true)
	defer InitRegistry(false)
	if !IsEnabled() {
		t.Fatal("expected metrics to be enabled")
	}
	if Registerer() == nil {
		t.Fatal("expected a non-nil Registerer when enabled")
	}

	m := NewServerMetrics(Registerer())
	if m == nil {
		t.Fatal("expected a non-nil ServerMetrics when metrics are enabled")
	}
}
