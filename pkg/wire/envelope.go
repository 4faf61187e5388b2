// Package wire implements C9: the JSON request/response envelopes for
// every storage-server, caching-proxy and storage-proxy endpoint, the
// multipart upload framing, and the meta-filter mini-language parser that
// feeds pkg/recordstore's typed query clauses.
package wire

import "github.com/marmos91/mediastorage/pkg/record"

// KeysInput carries the caller-presented or caller-assigned key facets.
// Both fields are optional on the wire; a present-but-null value and an
// absent field both decode to a nil *string. In a request that presents
// keys, nil means no key is presented. In a put header, a nil facet is
// filled with a generated secret, so a put never creates a record with a
// null (anonymous) key facet.
type KeysInput struct {
	Read  *string `json:"read,omitempty"`
	Write *string `json:"write,omitempty"`
}

// FormatInput is the physical.format portion of a put header.
type FormatInput struct {
	Mime string  `json:"mime"`
	Comp *string `json:"comp,omitempty"`
}

// PhysicalInput is the physical portion of a put header.
type PhysicalInput struct {
	Family *string     `json:"family,omitempty"`
	Format FormatInput `json:"format"`
}

// PoliciesInput groups the two policy facets a put/update request can set.
// Each facet reuses record.RawPolicy directly rather than a wire-local
// copy: nil means "no change" (put: "never"/"no pending compression"), a
// populated value replaces the prior policy via record.UnpackPolicy.
type PoliciesInput struct {
	Delete   *record.RawPolicy `json:"delete,omitempty"`
	Compress *record.RawPolicy `json:"compress,omitempty"`
}

// PutHeader is the JSON "header" part of a put request (§4.3.1).
type PutHeader struct {
	UID      *string        `json:"uid,omitempty"`
	Keys     *KeysInput     `json:"keys,omitempty"`
	Physical PhysicalInput  `json:"physical"`
	Policy   *PoliciesInput `json:"policy,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PutResponse is returned by a successful put.
type PutResponse struct {
	UID  string     `json:"uid"`
	Keys KeysOutput `json:"keys"`
}

// KeysOutput always reports both facets, since a put response must
// disclose generated secrets even when the request left them unset.
type KeysOutput struct {
	Read  *string `json:"read"`
	Write *string `json:"write"`
}

// GetRequest is the body of a get request (§4.3.2).
type GetRequest struct {
	UID  string     `json:"uid"`
	Keys *KeysInput `json:"keys,omitempty"`
}

// DescribeRequest is the body of a describe request (§4.3.3).
type DescribeRequest struct {
	UID  string     `json:"uid"`
	Keys *KeysInput `json:"keys,omitempty"`
}

// MetaUpdate carries the additive/subtractive meta edit in an update
// request.
type MetaUpdate struct {
	New     map[string]any `json:"new,omitempty"`
	Removed []string       `json:"removed,omitempty"`
}

// UpdateRequest is the body of an update request (§4.3.4). Keys.Write is
// mandatory; Policy fields use nil/empty/populated to mean
// no-change/clear/replace.
type UpdateRequest struct {
	UID    string         `json:"uid"`
	Keys   KeysInput      `json:"keys"`
	Policy *PoliciesInput `json:"policy,omitempty"`
	Meta   *MetaUpdate    `json:"meta,omitempty"`
}

// UnlinkRequest is the body of an unlink request (§4.3.5).
type UnlinkRequest struct {
	UID  string    `json:"uid"`
	Keys KeysInput `json:"keys"`
}

// RangeInput is a {min, max} pair used for ctime/atime/accesses range
// clauses in a query request. Either bound may be absent.
type RangeInput struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// QueryRequest is the body of a query request (§4.3.6). Meta values use
// the filter mini-language parsed by ParseMetaFilter.
type QueryRequest struct {
	Ctime    *RangeInput       `json:"ctime,omitempty"`
	Atime    *RangeInput       `json:"atime,omitempty"`
	Accesses *RangeInput       `json:"accesses,omitempty"`
	Family   *string           `json:"family,omitempty"`
	Mime     *string           `json:"mime,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// QueryResponse wraps the matched records.
type QueryResponse struct {
	Records []RecordView `json:"records"`
}

// PingResponse is returned by ping (§4.3.7).
type PingResponse struct {
	Online bool `json:"online"`
}

// ListFamiliesResponse is returned by list/families (§4.3.7).
type ListFamiliesResponse struct {
	Families []string `json:"families"`
}

// StatusResponse is returned by status (§4.3.7): a process/system load
// snapshot plus the family list.
type StatusResponse struct {
	Families      []string `json:"families"`
	CPUPercent    float64  `json:"cpuPercent"`
	MemoryPercent float64  `json:"memoryPercent"`
	RSSBytes      uint64   `json:"rssBytes"`
	Threads       int      `json:"threads"`
	Load1         float64  `json:"load1"`
	Load5         float64  `json:"load5"`
	Load15        float64  `json:"load15"`
}

// ErrorResponse is the JSON body returned alongside any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
