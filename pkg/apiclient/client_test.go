package apiclient

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/marmos91/mediastorage/pkg/compression"
	"github.com/marmos91/mediastorage/pkg/family"
	"github.com/marmos91/mediastorage/pkg/fsbackend"
	"github.com/marmos91/mediastorage/pkg/recordstore"
	"github.com/marmos91/mediastorage/pkg/server"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// newTestServer starts a real pkg/server.Server behind httptest, and
// returns a Client pointed at it. Grounded on the same real-store,
// real-backend testing convention pkg/server's own tests use.
func newTestServer(t *testing.T) *Client {
	t.Helper()

	store, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := family.NewRouter(fsbackend.NewLocalBackend(t.TempDir()))
	s := server.NewServer(store, router, server.Config{
		MinuteResolution: 15,
		TrustedHosts:     map[string]bool{},
		QueryLimit:       100,
		CompressionFormats: map[compression.Algorithm]bool{
			compression.GZip: true,
		},
		TempDir: t.TempDir(),
	}, nil, nil)

	ts := httptest.NewServer(s.NewRouter(0))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host:port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return New(host, port, 0)
}

func TestClientPutThenGetRoundTrips(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	header := wire.PutHeader{Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "text/plain"}}}
	putResp, err := c.Put(ctx, header, strings.NewReader("hello from the proxy"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if putResp.UID == "" {
		t.Fatal("expected a generated uid")
	}

	result, err := c.Get(ctx, wire.GetRequest{UID: putResp.UID, Keys: &wire.KeysInput{Read: putResp.Keys.Read}}, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "hello from the proxy" {
		t.Fatalf("unexpected body: %q", body)
	}
	if result.ContentType != "text/plain" {
		t.Fatalf("unexpected content type: %q", result.ContentType)
	}
}

func TestClientGetMissingRecordReturnsAPIError(t *testing.T) {
	c := newTestServer(t)
	_, err := c.Get(context.Background(), wire.GetRequest{UID: "does-not-exist"}, nil)
	if err == nil {
		t.Fatal("expected an error for a missing record")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", apiErr.StatusCode)
	}
}

func TestClientDescribeReportsPhysicalMetadata(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	header := wire.PutHeader{Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "application/json"}}}
	putResp, err := c.Put(ctx, header, strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	view, err := c.Describe(ctx, wire.DescribeRequest{UID: putResp.UID, Keys: &wire.KeysInput{Read: putResp.Keys.Read}})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if view.UID != putResp.UID {
		t.Fatalf("expected uid %s, got %s", putResp.UID, view.UID)
	}
	if view.Physical.Format.Mime != "application/json" {
		t.Fatalf("unexpected mime: %s", view.Physical.Format.Mime)
	}
}

func TestClientUnlinkRemovesRecord(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	header := wire.PutHeader{Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "text/plain"}}}
	putResp, err := c.Put(ctx, header, strings.NewReader("bye"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := c.Unlink(ctx, wire.UnlinkRequest{UID: putResp.UID, Keys: wire.KeysInput{Write: putResp.Keys.Write}}); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	if _, err := c.Describe(ctx, wire.DescribeRequest{UID: putResp.UID}); err == nil {
		t.Fatal("expected describe to fail after unlink")
	}
}
