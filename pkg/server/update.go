package server

import (
	"net/http"
	"time"

	"github.com/marmos91/mediastorage/pkg/wire"
)

// handleUpdate implements §4.3.4: write-gated in-place edit of a record's
// policies and meta. A policy facet left absent on the wire is unchanged;
// an empty RawPolicy{} clears it; a populated one replaces it outright.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req wire.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		malformed(w, err.Error())
		return
	}

	rec, err := s.Store.Get(r.Context(), req.UID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	trust := s.AuthorizeRecord(r, rec.Keys, req.Keys.Read, req.Keys.Write)
	if !trust.Write {
		forbidden(w, "write key mismatch")
		return
	}

	now := float64(time.Now().Unix())
	if req.Policy != nil {
		if req.Policy.Delete != nil {
			rec.Policy.Delete = s.unpackValidatedPolicy(req.Policy.Delete, now)
		}
		if req.Policy.Compress != nil {
			rec.Policy.Compress = s.unpackValidatedPolicy(req.Policy.Compress, now)
		}
	}

	if req.Meta != nil {
		if rec.Meta == nil {
			rec.Meta = map[string]interface{}{}
		}
		for _, key := range req.Meta.Removed {
			delete(rec.Meta, key)
		}
		for key, value := range req.Meta.New {
			rec.Meta[key] = value
		}
	}

	if err := s.Store.Update(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.NewDescribeView(rec))
}
