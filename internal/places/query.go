package places

import (
	"strconv"
	"strings"
)

// The original GeoNames data is US-only, so a literal "US" token carries no
// information and is dropped before building the filter.
const countryMarker = "US"

func parseTokens(geo string) []string {
	parts := strings.Split(geo, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == countryMarker {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

// isNumericToken reports whether a token is plain digits with an optional
// decimal part. Postal codes are the only numeric tokens in the data, so
// float syntax like exponents, signs, or "Inf" stays alphabetic.
func isNumericToken(s string) bool {
	whole, frac, dotted := strings.Cut(s, ".")
	if whole == "" || (dotted && frac == "") {
		return false
	}
	for _, r := range whole {
		if r < '0' || r > '9' {
			return false
		}
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildSearchQuery turns tokens into a parameterized statement. Conditions
// are ORed within a token and ANDed across tokens: a row must match every
// token by at least one of its field-prefix rules. Prefix matching only;
// LIKE metacharacters in tokens are escaped.
func buildSearchQuery(tokens []string) (string, []any) {
	var sb strings.Builder
	sb.WriteString("select postal_code, place_name, admin_code1, admin_name1, country_code from places where ")
	args := make([]any, 0, len(tokens))
	for i, token := range tokens {
		if i > 0 {
			sb.WriteString(" and ")
		}
		args = append(args, escapeLike(token)+"%")
		p := "$" + strconv.Itoa(len(args))
		if isNumericToken(token) {
			sb.WriteString("(postal_code like " + p + " or country_code like " + p + ")")
			continue
		}
		sb.WriteString("(place_name ilike " + p)
		if len(token) <= 2 {
			sb.WriteString(" or admin_code1 ilike " + p)
		}
		sb.WriteString(" or admin_name1 ilike " + p + " or country_code ilike " + p + ")")
	}
	return sb.String(), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
