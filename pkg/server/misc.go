package server

import (
	"net/http"
	"sort"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// handlePing implements §4.3.7's ping.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wire.PingResponse{Online: true})
}

// handleListFamilies implements §4.3.7's list/families: the union of the
// record store's distinct physical.family values and the router's
// registered names, with the null family dropped.
func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.familyUnion(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ListFamiliesResponse{Families: families})
}

// handleStatus implements §4.3.7's status: a process/system load snapshot
// plus the family list.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	families, err := s.familyUnion(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	snap := s.Sysinfo.Snapshot()
	writeJSON(w, http.StatusOK, wire.StatusResponse{
		Families:      families,
		CPUPercent:    snap.CPUPercent,
		MemoryPercent: snap.MemoryPercent,
		RSSBytes:      snap.RSSBytes,
		Threads:       snap.Threads,
		Load1:         snap.Load1,
		Load5:         snap.Load5,
		Load15:        snap.Load15,
	})
}

func (s *Server) familyUnion(r *http.Request) ([]string, error) {
	stored, err := s.Store.Families(r.Context())
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stored))
	for _, f := range stored {
		if f == "" {
			continue
		}
		seen[f] = struct{}{}
	}
	for _, f := range s.Router.Names() {
		seen[f] = struct{}{}
	}

	families := make([]string, 0, len(seen))
	for f := range seen {
		families = append(families, f)
	}
	sort.Strings(families)

	logger.Debug("family union computed", "count", len(families))
	return families, nil
}
