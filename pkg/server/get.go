package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/compression"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// handleGet implements §4.3.2: touch the record's access bookkeeping,
// then stream the blob, transparently decompressing server-side when the
// caller's advertised support doesn't cover the stored compression.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req wire.GetRequest
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

	rec.Touch(time.Now())
	if err := s.Store.Update(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}

	backend := s.Router.Resolve(rec.FamilyName())
	path := backend.ResolvePath(rec)
	blob, err := backend.Get(path)
	if err != nil {
		logger.Error("record exists but blob is missing, awaiting reconciliation",
			"uid", rec.UID, "path", path, "error", err)
		notFound(w, "no such blob")
		return
	}
	defer blob.Close()

	stream := blob
	appliedHeader := ""
	if rec.Physical.Format.Comp != nil && !supportsCompression(r, *rec.Physical.Format.Comp) {
		decoder, err := compression.Decompressor(compression.Algorithm(*rec.Physical.Format.Comp))
		if err != nil {
			internalErr(w, "failed to decompress blob")
			return
		}
		spooled, err := decoder.Transform(blob, s.Config.TempDir)
		if err != nil {
			internalErr(w, "failed to decompress blob")
			return
		}
		defer spooled.Discard()
		decoded, err := spooled.Reader()
		if err != nil {
			internalErr(w, "failed to read decompressed blob")
			return
		}
		defer decoded.Close()
		stream = decoded
	} else if rec.Physical.Format.Comp != nil {
		appliedHeader = *rec.Physical.Format.Comp
	}

	w.Header().Set("Content-Type", rec.Physical.Format.Mime)
	if appliedHeader != "" {
		w.Header().Set("Applied-Compression", appliedHeader)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, stream)
}

// supportsCompression reports whether the client's semicolon-delimited
// Supported-Compression header lists algo.
func supportsCompression(r *http.Request, algo string) bool {
	header := r.Header.Get("Supported-Compression")
	if header == "" {
		return false
	}
	for _, part := range strings.Split(header, ";") {
		if strings.TrimSpace(part) == algo {
			return true
		}
	}
	return false
}

func presentedKeys(in *wire.KeysInput) (read, write *string) {
	if in == nil {
		return nil, nil
	}
	return in.Read, in.Write
}
