package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/mediastorage/pkg/wire"
)

func TestHandleDescribeOmitsKeys(t *testing.T) {
	_, h := newTestServer(t)
	resp := putRecord(t, h, "image/jpeg", "bytes", "1.2.3.4")

	req := httptest.NewRequest(http.MethodPost, "/describe", jsonBody(wire.DescribeRequest{UID: resp.UID, Keys: &wire.KeysInput{Read: resp.Keys.Read}}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["keys"]; ok {
		t.Fatal("describe response must not include keys")
	}
	physical, ok := raw["physical"].(map[string]interface{})
	if !ok {
		t.Fatal("expected physical object in describe response")
	}
	if _, ok := physical["minRes"]; ok {
		t.Fatal("describe response must not include minute resolution")
	}
}
