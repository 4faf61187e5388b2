package server

import (
	"net/http/httptest"
	"testing"

	"github.com/marmos91/mediastorage/pkg/record"
)

func TestFacetGrantedNilStoredIsOpen(t *testing.T) {
	if !facetGranted(nil, nil) {
		t.Fatal("nil stored facet must grant regardless of presented value")
	}
	presented := "anything"
	if !facetGranted(nil, &presented) {
		t.Fatal("nil stored facet must grant even when a key is presented")
	}
}

func TestFacetGrantedRequiresExactMatch(t *testing.T) {
	stored := "secret"
	if facetGranted(&stored, nil) {
		t.Fatal("a set facet must not grant when nothing is presented")
	}
	wrong := "wrong"
	if facetGranted(&stored, &wrong) {
		t.Fatal("a set facet must not grant on mismatch")
	}
	if !facetGranted(&stored, &stored) {
		t.Fatal("a set facet must grant on exact match")
	}
}

func TestAuthorizeRecordTrustedHostBypassesKeys(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("POST", "/get", nil)
	req.RemoteAddr = "trusted:4444"

	readKey := "r"
	writeKey := "w"
	trust := s.AuthorizeRecord(req, record.Keys{Read: &readKey, Write: &writeKey}, nil, nil)
	if !trust.Read || !trust.Write {
		t.Fatal("trusted host must bypass key checks entirely")
	}
}

func TestAuthorizeQueryRestrictsUntrustedCallers(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("POST", "/query", nil)
	req.RemoteAddr = "1.2.3.4:1111"

	trust := s.AuthorizeQuery(req)
	if trust.Read || trust.Write {
		t.Fatal("untrusted caller must receive no blanket query trust")
	}
}
