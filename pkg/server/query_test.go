package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/mediastorage/pkg/wire"
)

func TestHandleQueryFiltersByMime(t *testing.T) {
	_, h := newTestServer(t)

	putRecord(t, h, "image/png", "a", "1.2.3.4")
	putRecord(t, h, "image/jpeg", "b", "1.2.3.4")
	putRecord(t, h, "text/plain", "c", "1.2.3.4")

	mime := "image"
	req := wire.QueryRequest{Mime: &mime}
	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/query", jsonBody(req))
	h.ServeHTTP(rr, httpReq)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp wire.QueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("expected 2 image/* records, got %d", len(resp.Records))
	}
	for _, rv := range resp.Records {
		if rv.Keys != nil {
			t.Fatal("untrusted query response must not include keys")
		}
	}
}

func TestHandleQueryTrustedHostSeesKeysAndPath(t *testing.T) {
	_, h := newTestServer(t)
	putRecord(t, h, "image/png", "a", "1.2.3.4")

	req := wire.QueryRequest{}
	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/query", jsonBody(req))
	httpReq.RemoteAddr = "trusted:9999"
	h.ServeHTTP(rr, httpReq)

	var resp wire.QueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(resp.Records))
	}
	if resp.Records[0].Keys == nil {
		t.Fatal("expected trusted caller to see keys")
	}
	if resp.Records[0].Physical.Path == nil {
		t.Fatal("expected trusted caller to see resolved path")
	}
}
