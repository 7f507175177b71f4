package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any listing can request.
	MaxLimit = 100
)

// Params holds 1-based page pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit into their valid ranges.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), Limit: NormalizeLimit(p.Limit)}
}

// Offset is the number of rows skipped before the page starts.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

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

// NormalizePage treats anything below the first page as the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
