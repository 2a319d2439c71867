package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	// Movement history queries are capped rather than paginated by cursor;
	// the cap keeps ledger reads bounded no matter how old an item is.
	DefaultLimit = 50
	// MaxLimit caps how many rows any listing query can request.
	MaxLimit = 200
)

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizeLimitWithDefault behaves like NormalizeLimit but lets the caller
// override the default page size (alerts use a smaller cap than movements).
func NormalizeLimitWithDefault(limit, fallback int) int {
	if limit <= 0 {
		if fallback > 0 && fallback <= MaxLimit {
			return fallback
		}
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
