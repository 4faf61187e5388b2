package wire

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/marmos91/mediastorage/pkg/recordstore"
)

// ParseMetaFilter compiles one meta.<k> wire value into a typed
// recordstore.MetaClause (§4.3.6, §9's design note). A value with no
// recognized ":directive:" prefix is treated as a plain literal; a value
// that needs to start with a literal colon escapes via a leading "::",
// which this function strips down to a single colon before matching.
func ParseMetaFilter(raw string) (recordstore.MetaClause, error) {
	if strings.HasPrefix(raw, "::") {
		return recordstore.LiteralClause{Value: raw[1:]}, nil
	}
	if !strings.HasPrefix(raw, ":") {
		return recordstore.LiteralClause{Value: raw}, nil
	}

	rest := raw[1:]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return nil, fmt.Errorf("wire: malformed meta filter %q", raw)
	}
	directive, arg := rest[:idx], rest[idx+1:]

	switch directive {
	case "range":
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("wire: malformed range filter %q", raw)
		}
		min, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("wire: range filter min: %w", err)
		}
		max, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("wire: range filter max: %w", err)
		}
		return recordstore.RangeClause{Min: min, Max: max}, nil

	case "lte":
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("wire: lte filter: %w", err)
		}
		return recordstore.LteClause{Max: n}, nil

	case "gte":
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("wire: gte filter: %w", err)
		}
		return recordstore.GteClause{Min: n}, nil

	case "re":
		re, err := regexp.Compile(arg)
		if err != nil {
			return nil, fmt.Errorf("wire: regex filter: %w", err)
		}
		return recordstore.RegexClause{Pattern: re}, nil

	case "re.i":
		re, err := regexp.Compile("(?i)" + arg)
		if err != nil {
			return nil, fmt.Errorf("wire: case-insensitive regex filter: %w", err)
		}
		return recordstore.RegexClause{Pattern: re}, nil

	case "like":
		re, err := compileLikePattern(arg, false)
		if err != nil {
			return nil, fmt.Errorf("wire: like filter: %w", err)
		}
		return recordstore.LikeClause{Pattern: re}, nil

	case "ilike":
		re, err := compileLikePattern(arg, true)
		if err != nil {
			return nil, fmt.Errorf("wire: ilike filter: %w", err)
		}
		return recordstore.LikeClause{Pattern: re}, nil

	default:
		return nil, fmt.Errorf("wire: unknown meta filter directive %q", directive)
	}
}

// compileLikePattern translates a SQL-LIKE pattern to a regexp. Only a
// trailing "%" is supported, compiling to a prefix match; "%" elsewhere in
// the pattern is treated literally, matching the source's own tail-only
// wildcard behavior.
func compileLikePattern(pattern string, insensitive bool) (*regexp.Regexp, error) {
	prefixOnly := strings.HasSuffix(pattern, "%")
	body := pattern
	if prefixOnly {
		body = strings.TrimSuffix(pattern, "%")
	}

	expr := "^" + regexp.QuoteMeta(body)
	if !prefixOnly {
		expr += "$"
	}
	if insensitive {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}
