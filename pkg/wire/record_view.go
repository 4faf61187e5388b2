package wire

import "github.com/marmos91/mediastorage/pkg/record"

// PhysicalView is the physical portion of a RecordView: record.Physical
// without MinRes (never serialized, §3.1) plus an optional Path populated
// only for trusted callers (§4.3.6).
type PhysicalView struct {
	Family *string       `json:"family"`
	Ctime  float64       `json:"ctime"`
	Atime  int64         `json:"atime"`
	Format record.Format `json:"format"`
	Path   *string       `json:"path,omitempty"`
}

// RecordView is the query-response shape for one record: keys are present
// only for trusted callers, and Path is populated only for trusted callers
// (§4.3.6's authorization-dependent projection).
type RecordView struct {
	UID      string          `json:"uid"`
	Keys     *record.Keys    `json:"keys,omitempty"`
	Physical PhysicalView    `json:"physical"`
	Policy   record.Policies `json:"policy"`
	Stats    record.Stats    `json:"stats"`
	Meta     map[string]any  `json:"meta"`
}

// NewRecordView projects rec for a query response. trusted gates both the
// keys field and the resolved path; resolvedPath is ignored when trusted
// is false.
func NewRecordView(rec *record.Record, trusted bool, resolvedPath string) RecordView {
	v := RecordView{
		UID: rec.UID,
		Physical: PhysicalView{
			Family: rec.Physical.Family,
			Ctime:  rec.Physical.Ctime,
			Atime:  rec.Physical.Atime,
			Format: rec.Physical.Format,
		},
		Policy: rec.Policy,
		Stats:  rec.Stats,
		Meta:   rec.Meta,
	}
	if trusted {
		keys := rec.Keys
		v.Keys = &keys
		v.Physical.Path = &resolvedPath
	}
	return v
}

// DescribeView is the describe-response shape: the record minus keys and
// physical.minRes (§4.3.3). physical.minRes is already excluded by
// record.Physical's own json:"-" tag; keys must be dropped here since
// describe never discloses them regardless of caller trust.
type DescribeView struct {
	UID      string          `json:"uid"`
	Physical record.Physical `json:"physical"`
	Policy   record.Policies `json:"policy"`
	Stats    record.Stats    `json:"stats"`
	Meta     map[string]any  `json:"meta"`
}

// NewDescribeView projects rec for a describe response.
func NewDescribeView(rec *record.Record) DescribeView {
	return DescribeView{
		UID:      rec.UID,
		Physical: rec.Physical,
		Policy:   rec.Policy,
		Stats:    rec.Stats,
		Meta:     rec.Meta,
	}
}
