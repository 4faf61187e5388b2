package server

import (
	"net/http"

	"github.com/marmos91/mediastorage/pkg/wire"
)

// handleDescribe implements §4.3.3: return the record's metadata without
// its blob, its keys, or its minute resolution.
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req wire.DescribeRequest
	if err := decodeJSON(r, &req); err != nil {
		malformed(w, err.Error())
		return
	}

	rec, err := s.Store.Get(r.Context(), req.UID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	presentedRead, presentedWrite := presentedKeys(req.Keys)
	trust := s.AuthorizeRecord(r, rec.Keys, presentedRead, presentedWrite)
	if !trust.Read {
		forbidden(w, "read key mismatch")
		return
	}

	writeJSON(w, http.StatusOK, wire.NewDescribeView(rec))
}
