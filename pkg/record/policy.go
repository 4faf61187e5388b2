package record

// RawPolicy is the wire shape of a policy as submitted by a client: fixed is
// relative seconds from now, stale is a duration in seconds. Both are
// optional; an absent RawPolicy (nil) means "no change" on update, and an
// empty RawPolicy{} means "clear".
type RawPolicy struct {
	Fixed *float64 `json:"fixed"`
	Stale *float64 `json:"stale"`
	Comp  *string  `json:"comp"`
}

// IsEmpty reports whether the raw policy carries no predicate.
func (p *RawPolicy) IsEmpty() bool {
	return p == nil || (p.Fixed == nil && p.Stale == nil && p.Comp == nil)
}

// UnpackPolicy translates a client-submitted RawPolicy into the persisted
// Policy shape (§4.3.1 step 2, "_unpack_policy"): a relative `fixed` becomes
// `now + fixed` as an absolute epoch, `stale` is retained verbatim and
// `staleTime = now + stale` is denormalized so range-indexed lookups work.
func UnpackPolicy(raw *RawPolicy, now float64) Policy {
	if raw == nil {
		return Policy{}
	}
	var out Policy
	if raw.Fixed != nil {
		abs := now + *raw.Fixed
		out.Fixed = &abs
	}
	if raw.Stale != nil {
		out.Stale = raw.Stale
		st := now + *raw.Stale
		out.StaleTime = &st
	}
	out.Comp = raw.Comp
	return out
}
