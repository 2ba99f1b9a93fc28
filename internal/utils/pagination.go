// Package utils provides small helpers shared across layers. It must not
// import domain or service packages.
package utils

import "strconv"

// Page bounds for list endpoints. Candidate listings are the largest
// consumers; MaxPageSize keeps a single response well under the body limit
// even for interviews with heavy transcripts.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a validated page request parsed from query parameters.
type Page struct {
	Number int
	Size   int
}

// ParsePage builds a Page from the raw "page" and "page_size" query values.
// Empty, malformed, or out-of-range values are clamped rather than rejected,
// so a sloppy dashboard link still renders the first page instead of a 400.
func ParsePage(pageStr, sizeStr string) Page {
	p := Page{
		Number: AtoiDefault(pageStr, 1),
		Size:   AtoiDefault(sizeStr, DefaultPageSize),
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 1
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset for this page, for repository queries.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TotalPages returns how many pages a result set of total rows spans.
func (p Page) TotalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether a page after this one exists.
func (p Page) HasNext(total int64) bool {
	return p.Number < p.TotalPages(total)
}

// AtoiDefault converts s to an int, returning def when s is empty or not a
// plain base-10 integer. No trimming is applied; " 42" is malformed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
