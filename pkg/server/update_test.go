package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/mediastorage/pkg/record"
	"github.com/marmos91/mediastorage/pkg/wire"
)

func TestHandleUpdateMetaAndPolicy(t *testing.T) {
	s, h := newTestServer(t)

	writeKey := "writeme"
	header := wire.PutHeader{
		Keys:     &wire.KeysInput{Write: &writeKey},
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "image/png"}},
		Meta:     map[string]interface{}{"kept": "yes", "dropped": "bye"},
	}
	resp := doPut(t, h, header, "content", "1.2.3.4")

	fixed := 3600.0
	req := wire.UpdateRequest{
		UID:    resp.UID,
		Keys:   wire.KeysInput{Write: &writeKey},
		Policy: &wire.PoliciesInput{Delete: &record.RawPolicy{Fixed: &fixed}},
		Meta: &wire.MetaUpdate{
			New:     map[string]interface{}{"added": "hi"},
			Removed: []string{"dropped"},
		},
	}
	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/update", jsonBody(req))
	h.ServeHTTP(rr, httpReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rec, err := s.Store.Get(httpReq.Context(), resp.UID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if rec.Policy.Delete.Fixed == nil {
		t.Fatal("expected delete policy fixed to be set")
	}
	if _, ok := rec.Meta["dropped"]; ok {
		t.Fatal("expected dropped meta key to be removed")
	}
	if rec.Meta["added"] != "hi" {
		t.Fatal("expected added meta key to be present")
	}
	if rec.Meta["kept"] != "yes" {
		t.Fatal("expected untouched meta key to survive")
	}
}

func TestHandleUpdateWrongWriteKeyForbidden(t *testing.T) {
	_, h := newTestServer(t)

	writeKey := "correct"
	header := wire.PutHeader{
		Keys:     &wire.KeysInput{Write: &writeKey},
		Physical: wire.PhysicalInput{Format: wire.FormatInput{Mime: "image/png"}},
	}
	resp := doPut(t, h, header, "content", "1.2.3.4")

	wrong := "incorrect"
	req := wire.UpdateRequest{UID: resp.UID, Keys: wire.KeysInput{Write: &wrong}}
	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/update", jsonBody(req))
	h.ServeHTTP(rr, httpReq)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
