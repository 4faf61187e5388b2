package server

import (
	"net/http"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/compression"
	"github.com/marmos91/mediastorage/pkg/record"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// handlePut implements §4.3.1: assemble a record from the multipart put
// body, insert it into the record store, then write the blob through the
// family's backend via a staged write committed with MakePermanent.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := wire.DecodePutBody(r)
	if err != nil {
		malformed(w, err.Error())
		return
	}
	defer body.Close()

	header := body.Header
	if header.Physical.Format.Mime == "" {
		malformed(w, "physical.format.mime is required")
		return
	}

	now := float64(time.Now().Unix())

	uid := ""
	if header.UID != nil {
		uid = *header.UID
	}
	if uid == "" {
		uid, err = record.NewUID()
		if err != nil {
			internalErr(w, "failed to generate uid")
			return
		}
	}

	readKey, writeKey, err := resolveKeys(header.Keys)
	if err != nil {
		internalErr(w, "failed to generate key secret")
		return
	}

	rec := &record.Record{
		UID:  uid,
		Keys: record.Keys{Read: readKey, Write: writeKey},
		Physical: record.Physical{
			Family: header.Physical.Family,
			Ctime:  now,
			Atime:  int64(now),
			MinRes: s.Config.MinuteResolution,
			Format: record.Format{
				Mime: header.Physical.Format.Mime,
				Comp: header.Physical.Format.Comp,
			},
		},
		Stats: record.Stats{Accesses: 0},
		Meta:  header.Meta,
	}
	if rec.Meta == nil {
		rec.Meta = map[string]interface{}{}
	}

	rec.Policy.Delete = s.unpackValidatedPolicy(policyOf(header.Policy, "delete"), now)
	rec.Policy.Compress = s.unpackValidatedPolicy(policyOf(header.Policy, "compress"), now)

	content := body.Content
	if rec.Physical.Format.Comp != nil && r.Header.Get("Compress-On-Server") == "yes" {
		algo := compression.Algorithm(*rec.Physical.Format.Comp)
		codec, err := compression.Compressor(algo)
		if err != nil {
			malformed(w, err.Error())
			return
		}
		spooled, err := codec.Transform(content, s.Config.TempDir)
		if err != nil {
			internalErr(w, "failed to compress upload")
			return
		}
		defer spooled.Discard()
		reader, err := spooled.Reader()
		if err != nil {
			internalErr(w, "failed to read compressed upload")
			return
		}
		defer reader.Close()
		content = reader
	}

	if err := s.Store.Insert(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}

	backend := s.Router.Resolve(rec.FamilyName())
	path := backend.ResolvePath(rec)
	if err := backend.Put(path, content, true); err != nil {
		_ = s.Store.Delete(r.Context(), rec.UID)
		internalErr(w, "failed to store blob")
		return
	}
	if err := backend.MakePermanent(path); err != nil {
		_ = s.Store.Delete(r.Context(), rec.UID)
		internalErr(w, "failed to finalize blob")
		return
	}

	writeJSON(w, http.StatusOK, wire.PutResponse{
		UID:  rec.UID,
		Keys: wire.KeysOutput{Read: rec.Keys.Read, Write: rec.Keys.Write},
	})
}

// resolveKeys generates any key facet the caller did not present (§4.3.1
// step 1: "generate absent key facets as 6-12-character URL-safe random
// strings").
func resolveKeys(in *wire.KeysInput) (read, write *string, err error) {
	if in != nil && in.Read != nil {
		read = in.Read
	} else {
		s, genErr := record.NewKeySecret()
		if genErr != nil {
			return nil, nil, genErr
		}
		read = &s
	}
	if in != nil && in.Write != nil {
		write = in.Write
	} else {
		s, genErr := record.NewKeySecret()
		if genErr != nil {
			return nil, nil, genErr
		}
		write = &s
	}
	return read, write, nil
}

func policyOf(in *wire.PoliciesInput, facet string) *record.RawPolicy {
	if in == nil {
		return nil
	}
	if facet == "delete" {
		return in.Delete
	}
	return in.Compress
}

// unpackValidatedPolicy translates a raw policy, dropping (and logging) a
// compress target whose algorithm isn't in the configured compression
// format set rather than failing the request (§4.3.1: "compression format
// not in C1 is logged and dropped from the policy").
func (s *Server) unpackValidatedPolicy(raw *record.RawPolicy, now float64) record.Policy {
	if raw != nil && raw.Comp != nil && !s.Config.Allows(compression.Algorithm(*raw.Comp)) {
		logger.Warn("unsupported compression format in policy, dropping", "format", *raw.Comp)
		stripped := *raw
		stripped.Comp = nil
		raw = &stripped
	}
	return record.UnpackPolicy(raw, now)
}
