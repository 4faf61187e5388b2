package server

import (
	"net/http"

	"github.com/marmos91/mediastorage/pkg/recordstore"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// handleQuery implements §4.3.6: translate the request into a
// recordstore.Filter, restrict untrusted callers to anonymous records, and
// project the results according to caller trust.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req wire.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		malformed(w, err.Error())
		return
	}

	trust := s.AuthorizeQuery(r)

	filter := recordstore.Filter{
		Family: req.Family,
		Limit:  s.Config.QueryLimit,
	}
	if req.Ctime != nil {
		filter.CtimeMin, filter.CtimeMax = req.Ctime.Min, req.Ctime.Max
	}
	if req.Atime != nil {
		filter.AtimeMin, filter.AtimeMax = rangeInt64(req.Atime.Min), rangeInt64(req.Atime.Max)
	}
	if req.Accesses != nil {
		filter.AccessesMin, filter.AccessesMax = rangeInt64(req.Accesses.Min), rangeInt64(req.Accesses.Max)
	}
	if req.Mime != nil {
		filter.Mime = &recordstore.MimeFilter{Value: *req.Mime}
	}
	for key, raw := range req.Meta {
		clause, err := wire.ParseMetaFilter(raw)
		if err != nil {
			malformed(w, err.Error())
			return
		}
		filter.Meta = append(filter.Meta, recordstore.MetaFilter{Key: key, Clause: clause})
	}

	records, err := s.Store.Query(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	views := make([]wire.RecordView, 0, len(records))
	for _, rec := range records {
		if !trust.Read && rec.Keys.Read != nil {
			continue
		}
		resolvedPath := ""
		if trust.Read {
			backend := s.Router.Resolve(rec.FamilyName())
			resolvedPath = backend.ResolvePath(rec)
		}
		views = append(views, wire.NewRecordView(rec, trust.Read, resolvedPath))
	}

	writeJSON(w, http.StatusOK, wire.QueryResponse{Records: views})
}

func rangeInt64(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}
