package tika

// Personality resolves templated response lines by category and key.
//
// Lookups never fail: unknown categories and keys yield a neutral fallback
// line so command modules always have something to say.
type Personality interface {
	// Line returns the formatted line for one category/key pair, substituting
	// {placeholder} markers from vars.
	Line(category, key string, vars map[string]string) string
	// Category returns all lines in one category keyed by line name.
	Category(category string) map[string]string
}
