package cachingproxy

import (
	"context"
	"net"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/mediastorage/pkg/apiclient"
	"github.com/marmos91/mediastorage/pkg/compression"
	"github.com/marmos91/mediastorage/pkg/family"
	"github.com/marmos91/mediastorage/pkg/fsbackend"
	"github.com/marmos91/mediastorage/pkg/recordstore"
	"github.com/marmos91/mediastorage/pkg/server"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// newUpstream starts a real storage server behind httptest and returns
// (client, host, port) the same way pkg/apiclient's own tests do.
func newUpstream(t *testing.T) (*apiclient.Client, string, int) {
	t.Helper()

	store, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := family.NewRouter(fsbackend.NewLocalBackend(t.TempDir()))
	s := server.NewServer(store, router, server.Config{
		MinuteResolution:   15,
		TrustedHosts:       map[string]bool{},
		QueryLimit:         100,
		CompressionFormats: map[compression.Algorithm]bool{},
		TempDir:            t.TempDir(),
	}, nil, nil)

	ts := httptest.NewServer(s.NewRouter(0))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host:port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return apiclient.New(host, port, 0), host, port
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(Config{
		Root:         t.TempDir(),
		MinCacheTime: 1,
		MaxCacheTime: 3600,
	}, nil)
}

func TestRetrieveDownloadsOnFirstAccess(t *testing.T) {
	upstream, host, port := newUpstream(t)
	ctx := context.Background()

	readKey := "R"
	header := wire.PutHeader{
		Keys:     &wire.KeysInput{Read: &readKey},
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "text/plain"}},
	}
	putResp, err := upstream.Put(ctx, header, strings.NewReader("hello cache"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	cache := newTestCache(t)
	meta, content, err := cache.Retrieve(ctx, upstream, host, port, putResp.UID, readKey, true)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	defer content.Close()

	body := make([]byte, 64)
	n, _ := content.Read(body)
	if string(body[:n]) != "hello cache" {
		t.Fatalf("unexpected content: %q", body[:n])
	}
	if meta.UID != putResp.UID {
		t.Fatalf("unexpected uid in meta: %s", meta.UID)
	}
	if meta.Keys.Read != readKey {
		t.Fatalf("expected stamped read key %q, got %q", readKey, meta.Keys.Read)
	}

	cache.mu.Lock()
	n2 := len(cache.entries)
	cache.mu.Unlock()
	if n2 != 1 {
		t.Fatalf("expected one cache entry after download, got %d", n2)
	}
}

func TestRetrieveRejectsWrongReadKey(t *testing.T) {
	upstream, host, port := newUpstream(t)
	ctx := context.Background()

	readKey := "R"
	header := wire.PutHeader{
		Keys:     &wire.KeysInput{Read: &readKey},
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "text/plain"}},
	}
	putResp, err := upstream.Put(ctx, header, strings.NewReader("secret"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	cache := newTestCache(t)
	_, _, err = cache.Retrieve(ctx, upstream, host, port, putResp.UID, "wrong-key", true)
	if err != ErrPermission {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
}

func TestRetrieveReusesCachedFilesOnSecondAccess(t *testing.T) {
	upstream, host, port := newUpstream(t)
	ctx := context.Background()

	readKey := "R"
	header := wire.PutHeader{
		Keys:     &wire.KeysInput{Read: &readKey},
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "text/plain"}},
	}
	putResp, err := upstream.Put(ctx, header, strings.NewReader("cached twice"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	cache := newTestCache(t)
	if _, c1, err := cache.Retrieve(ctx, upstream, host, port, putResp.UID, readKey, true); err != nil {
		t.Fatalf("first retrieve: %v", err)
	} else {
		c1.Close()
	}

	// Record was put without presenting a write key, so the server
	// generated one, "W" does not match it and this unlink fails; the
	// point is that removing the upstream record must not disturb what is
	// already cached below.
	writeKey := "W"
	_ = upstream.Unlink(ctx, wire.UnlinkRequest{UID: putResp.UID, Keys: wire.KeysInput{Write: &writeKey}})

	meta, c2, err := cache.Retrieve(ctx, upstream, host, port, putResp.UID, readKey, true)
	if err != nil {
		t.Fatalf("second retrieve (should be served from the local cache): %v", err)
	}
	defer c2.Close()
	if meta.UID != putResp.UID {
		t.Fatalf("unexpected uid: %s", meta.UID)
	}

	cache.mu.Lock()
	n := len(cache.entries)
	cache.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one cache entry (no duplicate download), got %d", n)
	}
}

func TestPurgerUnlinksExpiredEntries(t *testing.T) {
	upstream, host, port := newUpstream(t)
	ctx := context.Background()

	readKey := "R"
	header := wire.PutHeader{
		Keys:     &wire.KeysInput{Read: &readKey},
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "text/plain"}},
	}
	putResp, err := upstream.Put(ctx, header, strings.NewReader("expires soon"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	cache := newTestCache(t)
	_, content, err := cache.Retrieve(ctx, upstream, host, port, putResp.UID, readKey, true)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	content.Close()

	purger := NewPurger(cache, time.Hour, nil)
	purger.purgeOnce(time.Now().Unix() + 10000)

	cache.mu.Lock()
	n := len(cache.entries)
	cache.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected purge to remove the expired entry, got %d remaining", n)
	}

	e := entry{target: targetDir(host, port), uid: putResp.UID}
	if fileExists(e.contentPath(cache.cfg.Root)) {
		t.Fatal("expected content file to be purged")
	}
	if fileExists(e.metaPath(cache.cfg.Root)) {
		t.Fatal("expected meta file to be purged")
	}
}

func TestClearPoolRemovesLeftoverFiles(t *testing.T) {
	cache := newTestCache(t)
	leftoverDir := filepath.Join(cache.cfg.Root, "host_1234")
	if err := os.MkdirAll(leftoverDir, 0o700); err != nil {
		t.Fatalf("seed leftover dir: %v", err)
	}
	leftoverFile := filepath.Join(leftoverDir, "uid")
	if err := os.WriteFile(leftoverFile, []byte("leftover"), 0o600); err != nil {
		t.Fatalf("seed leftover file: %v", err)
	}

	if err := cache.ClearPool(); err != nil {
		t.Fatalf("clear pool: %v", err)
	}
	if fileExists(leftoverFile) {
		t.Fatal("expected leftover file to be removed")
	}
}
