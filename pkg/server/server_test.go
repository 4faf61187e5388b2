package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marmos91/mediastorage/pkg/compression"
	"github.com/marmos91/mediastorage/pkg/family"
	"github.com/marmos91/mediastorage/pkg/fsbackend"
	"github.com/marmos91/mediastorage/pkg/recordstore"
	"github.com/marmos91/mediastorage/pkg/wire"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	store, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := family.NewRouter(fsbackend.NewLocalBackend(t.TempDir()))

	s := NewServer(store, router, Config{
		MinuteResolution: 15,
		TrustedHosts:     map[string]bool{"trusted": true},
		QueryLimit:       100,
		CompressionFormats: map[compression.Algorithm]bool{
			compression.GZip: true,
		},
		TempDir: t.TempDir(),
	}, nil, nil)
	return s, s.NewRouter(0)
}

// putHeader issues a /put request built from header and content, returning
// the decoded response.
func doPut(t *testing.T, h http.Handler, header wire.PutHeader, content, remote string) wire.PutResponse {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	var buf bytes.Buffer
	if err := wire.EncodeMultipart(&buf, headerJSON, strings.NewReader(content)); err != nil {
		t.Fatalf("encode multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/put", &buf)
	req.Header.Set("Content-Type", wire.ContentType)
	req.RemoteAddr = remote + ":12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp wire.PutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode put response: %v", err)
	}
	return resp
}

func putRecord(t *testing.T, h http.Handler, mimeType, content, remote string) wire.PutResponse {
	t.Helper()
	header := wire.PutHeader{Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: mimeType}}}
	return doPut(t, h, header, content, remote)
}

// postJSONMultipart builds a /put request without asserting the response
// status, for tests exercising error paths.
func postJSONMultipart(t *testing.T, h http.Handler, header wire.PutHeader, content string) *httptest.ResponseRecorder {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	var buf bytes.Buffer
	if err := wire.EncodeMultipart(&buf, headerJSON, strings.NewReader(content)); err != nil {
		t.Fatalf("encode multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/put", &buf)
	req.Header.Set("Content-Type", wire.ContentType)
	req.RemoteAddr = "1.2.3.4:12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postJSON(h http.Handler, path string, body interface{}, remote string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.RemoteAddr = remote + ":12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// jsonBody marshals v into a request body reader.
func jsonBody(v interface{}) *bytes.Reader {
	data, _ := json.Marshal(v)
	return bytes.NewReader(data)
}
