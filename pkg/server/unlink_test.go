package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/mediastorage/pkg/wire"
)

func TestHandleUnlinkRemovesBlobAndRecord(t *testing.T) {
	s, h := newTestServer(t)

	writeKey := "writeme"
	header := wire.PutHeader{
		Keys:     &wire.KeysInput{Write: &writeKey},
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "image/png"}},
	}
	resp := doPut(t, h, header, "content", "1.2.3.4")

	req := wire.UnlinkRequest{UID: resp.UID, Keys: wire.KeysInput{Write: &writeKey}}
	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/unlink", jsonBody(req))
	h.ServeHTTP(rr, httpReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if _, err := s.Store.Get(httpReq.Context(), resp.UID); err == nil {
		t.Fatal("expected record to be gone after unlink")
	}
}

func TestHandleUnlinkMissingBlobStillRemovesRecord(t *testing.T) {
	s, h := newTestServer(t)

	header := wire.PutHeader{Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "image/png"}}}
	resp := doPut(t, h, header, "content", "1.2.3.4")

	ctx := context.Background()
	rec, err := s.Store.Get(ctx, resp.UID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	backend := s.Router.Resolve(rec.FamilyName())
	if err := backend.Unlink(backend.ResolvePath(rec), false); err != nil {
		t.Fatalf("pre-remove blob: %v", err)
	}

	req := wire.UnlinkRequest{UID: resp.UID, Keys: wire.KeysInput{Write: resp.Keys.Write}}
	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/unlink", jsonBody(req))
	h.ServeHTTP(rr, httpReq)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when blob already missing, got %d", rr.Code)
	}

	if _, err := s.Store.Get(ctx, resp.UID); err == nil {
		t.Fatal("expected record to still be removed despite missing blob")
	}
}
