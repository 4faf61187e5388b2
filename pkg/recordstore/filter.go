package recordstore

import "regexp"

// MetaClause is a predicate against a single meta value. It is a closed set
// of tagged variants (Range, Gte, Lte, Regex, Like, Literal) rather than a
// string the store has to parse — pkg/wire owns translating the request's
// filter mini-language (":range:", ":re:", "::literal", ...) into these
// typed clauses, so the store never sees wire syntax. This is the split the
// design note in spec.md §9 asks for: decouple the query grammar from the
// record store's native query form.
type MetaClause interface {
	// match reports whether the stored meta value (always a string on the
	// wire, but the store tolerates numeric JSON values too) satisfies the
	// clause.
	match(value interface{}) bool
}

// RangeClause matches values numerically within [Min, Max] inclusive.
type RangeClause struct {
	Min, Max float64
}

func (c RangeClause) match(value interface{}) bool {
	n, ok := toFloat(value)
	return ok && n >= c.Min && n <= c.Max
}

// GteClause matches values numerically >= Min.
type GteClause struct{ Min float64 }

func (c GteClause) match(value interface{}) bool {
	n, ok := toFloat(value)
	return ok && n >= c.Min
}

// LteClause matches values numerically <= Max.
type LteClause struct{ Max float64 }

func (c LteClause) match(value interface{}) bool {
	n, ok := toFloat(value)
	return ok && n <= c.Max
}

// RegexClause matches values whose string form matches Pattern. Callers
// build Pattern with regexp.MustCompile("(?i)...") for the case-insensitive
// ":re.i:" variant.
type RegexClause struct{ Pattern *regexp.Regexp }

func (c RegexClause) match(value interface{}) bool {
	s, ok := toString(value)
	return ok && c.Pattern.MatchString(s)
}

// LikeClause matches values against a SQL-LIKE pattern already compiled to
// a regexp by the caller (% -> .*, case sensitivity baked into Pattern).
type LikeClause struct{ Pattern *regexp.Regexp }

func (c LikeClause) match(value interface{}) bool {
	s, ok := toString(value)
	return ok && c.Pattern.MatchString(s)
}

// LiteralClause matches values by exact string equality — the "::<literal>"
// escape hatch that bypasses filter-language parsing entirely.
type LiteralClause struct{ Value string }

func (c LiteralClause) match(value interface{}) bool {
	s, ok := toString(value)
	return ok && s == c.Value
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func toString(value interface{}) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

// MetaFilter applies Clause to record.Meta[Key].
type MetaFilter struct {
	Key    string
	Clause MetaClause
}

// MimeFilter implements spec.md §4.3.6's mime matching rule: an exact value
// containing "/" matches by equality; a bare type (no "/") matches by
// prefix against the super-class ("image" matches "image/png").
type MimeFilter struct {
	Value string
}

// Filter is the record store's native query form. Every field is optional
// (zero value = unconstrained); Query intersects all constraints present.
type Filter struct {
	CtimeMin, CtimeMax       *float64
	AtimeMin, AtimeMax       *int64
	AccessesMin, AccessesMax *int64
	Family                   *string
	Mime                     *MimeFilter
	Meta                     []MetaFilter
	Limit                    int
}
