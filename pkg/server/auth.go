package server

import (
	"net"
	"net/http"

	"github.com/marmos91/mediastorage/pkg/record"
)

// Trust is the (read, write) facet grant computed per request (§4.3.8).
type Trust struct {
	Read  bool
	Write bool
}

// remoteTrusted reports whether r's remote address is in cfg.TrustedHosts
// (§4.3.8 rule 1). The port is stripped; trust is keyed on host only,
// matching the "space-delimited IP strings" configuration shape (§6).
func (s *Server) remoteTrusted(r *http.Request) bool {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	return s.Config.TrustedHosts[host]
}

// facetGranted implements §4.3.8 rule 2: a facet is granted iff the stored
// key is null, or it matches the presented key exactly.
func facetGranted(stored, presented *string) bool {
	if stored == nil {
		return true
	}
	return presented != nil && *presented == *stored
}

// AuthorizeRecord computes the trust a request has over an existing
// record's keys. presented carries whatever facet(s) the caller supplied
// on the wire (nil means "not presented").
func (s *Server) AuthorizeRecord(r *http.Request, keys record.Keys, presentedRead, presentedWrite *string) Trust {
	if s.remoteTrusted(r) {
		return Trust{Read: true, Write: true}
	}
	return Trust{
		Read:  facetGranted(keys.Read, presentedRead),
		Write: facetGranted(keys.Write, presentedWrite),
	}
}

// AuthorizeQuery computes the trust a caller has with no record in scope
// (§4.3.8 rule 3): only the trusted-host rule can grant read; otherwise
// the caller is restricted to anonymous records.
func (s *Server) AuthorizeQuery(r *http.Request) Trust {
	if s.remoteTrusted(r) {
		return Trust{Read: true, Write: true}
	}
	return Trust{}
}
