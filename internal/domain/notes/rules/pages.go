package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PageRange is an inclusive 1-based range. End == 0 means "last page".
type PageRange struct {
	Start, End int
}

// PageSelector is a parsed page expression such as "1", "1,3", "2-4", "1-end" or "all".
type PageSelector []PageRange

// ParsePageSelector parses a page expression. An empty expression selects page 1.
func ParsePageSelector(s string) (PageSelector, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PageSelector{{Start: 1, End: 1}}, nil
	}
	if s == "all" {
		return PageSelector{{Start: 1, End: 0}}, nil
	}

	var sel PageSelector
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")

		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid page %q in %q", part, s)
		}

		if !isRange {
			sel = append(sel, PageRange{Start: start, End: start})
			continue
		}

		hi = strings.TrimSpace(hi)
		if hi == "end" {
			sel = append(sel, PageRange{Start: start, End: 0})
			continue
		}
		end, err := strconv.Atoi(hi)
		if err != nil || end < start {
			return nil, fmt.Errorf("invalid page range %q in %q", part, s)
		}
		sel = append(sel, PageRange{Start: start, End: end})
	}
	return sel, nil
}

// Resolve expands the selector against a document with pageCount pages,
// returning 1-based page numbers in ascending order without duplicates.
func (p PageSelector) Resolve(pageCount int) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	for _, r := range p {
		end := r.End
		if end == 0 {
			end = pageCount
		}
		if r.Start > pageCount || end > pageCount {
			return nil, fmt.Errorf("page %d-%d out of range (document has %d pages)", r.Start, end, pageCount)
		}
		for n := r.Start; n <= end; n++ {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}

// String renders the selector in the same syntax it was parsed from.
func (p PageSelector) String() string {
	parts := make([]string, len(p))
	for i, r := range p {
		switch {
		case r.End == 0:
			parts[i] = fmt.Sprintf("%d-end", r.Start)
		case r.Start == r.End:
			parts[i] = strconv.Itoa(r.Start)
		default:
			parts[i] = fmt.Sprintf("%d-%d", r.Start, r.End)
		}
	}
	return strings.Join(parts, ",")
}
