package server

import (
	"net/http"

	"github.com/marmos91/mediastorage/pkg/wire"
)

// handleUnlink implements §4.3.5: write-gated removal. The blob is
// unlinked first, with directory pruning, then the record is deleted
// regardless of whether the blob was present — a missing blob still
// yields 404 but the record is removed either way, since a dangling
// record pointing at nothing serves no purpose.
func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	var req wire.UnlinkRequest
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

	backend := s.Router.Resolve(rec.FamilyName())
	path := backend.ResolvePath(rec)
	blobMissing := !backend.FileExists(path)
	if !blobMissing {
		if err := backend.Unlink(path, true); err != nil {
			internalErr(w, "failed to unlink blob")
			return
		}
	}

	if err := s.Store.Delete(r.Context(), rec.UID); err != nil {
		writeStoreError(w, err)
		return
	}

	if blobMissing {
		notFound(w, "no such blob")
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}
