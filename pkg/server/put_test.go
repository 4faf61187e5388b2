package server

import (
	"net/http"
	"testing"

	"github.com/marmos91/mediastorage/pkg/wire"
)

func TestHandlePutAssignsUIDAndKeys(t *testing.T) {
	_, h := newTestServer(t)

	resp := putRecord(t, h, "image/png", "hello world", "1.2.3.4")
	if resp.UID == "" {
		t.Fatal("expected a generated uid")
	}
	if resp.Keys.Read == nil || resp.Keys.Write == nil {
		t.Fatal("expected both key facets to be generated")
	}
}

func TestHandlePutRejectsMissingMime(t *testing.T) {
	_, h := newTestServer(t)

	header := wire.PutHeader{}
	rec := postJSONMultipart(t, h, header, "data")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for missing mime, got %d", rec.Code)
	}
}

func TestHandlePutDuplicateUIDConflicts(t *testing.T) {
	_, h := newTestServer(t)

	uid := "fixed-uid"
	header := wire.PutHeader{
		UID:      &uid,
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "text/plain"}},
	}
	doPut(t, h, header, "first", "1.2.3.4")

	rec := postJSONMultipart(t, h, header, "second")
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 on duplicate uid, got %d: %s", rec.Code, rec.Body.String())
	}
}
