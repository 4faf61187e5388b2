package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/mediastorage/pkg/wire"
)

func TestHandlePing(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp wire.PingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Online {
		t.Fatal("expected online true")
	}
}

func TestHandleListFamiliesUnionsRouterAndStore(t *testing.T) {
	s, h := newTestServer(t)

	family := "photos"
	header := wire.PutHeader{Physical: wire.PhysicalInput{Family: &family, Format: wire.FormatInput{Mime: "image/png"}}}
	doPut(t, h, header, "bytes", "1.2.3.4")
	s.Router.Register("videos", s.Router.Resolve(""))

	req := httptest.NewRequest(http.MethodPost, "/list/families", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp wire.ListFamiliesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := map[string]bool{}
	for _, f := range resp.Families {
		got[f] = true
	}
	if !got["photos"] || !got["videos"] {
		t.Fatalf("expected both photos and videos in families, got %v", resp.Families)
	}
}

func TestHandleStatusReportsSnapshot(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp wire.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
