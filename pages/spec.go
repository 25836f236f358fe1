// Package pages turns a page spec such as "1,3-4" into an ordered page list
// and assembles the matching PDF.
//
// Out-of-range pages reject the whole selection. The broker applies the same
// check at upload time, so an agent only sees a range error when the document
// and the selection disagree in a way the broker could not detect.
package pages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidSpec is returned for a page spec that does not parse
	ErrInvalidSpec = errors.New("invalid page spec")
	// ErrPageOutOfRange is returned when a page falls outside the document
	ErrPageOutOfRange = errors.New("page out of range")
)

// Range is one term of a page spec, 1-based and inclusive.
// A single page N is Range{N, N}.
type Range struct {
	Start int
	End   int
}

// Len returns the number of pages named by the range
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// IsEmpty reports whether spec selects the whole document
func IsEmpty(spec string) bool {
	return strings.TrimSpace(spec) == ""
}

// ParseSpec parses a comma-separated page spec. It returns nil for an empty
// spec. Terms keep their order; nothing is sorted or deduplicated.
func ParseSpec(spec string) ([]Range, error) {
	if IsEmpty(spec) {
		return nil, nil
	}

	terms := strings.Split(spec, ",")
	ranges := make([]Range, 0, len(terms))
	for _, term := range terms {
		r, err := parseTerm(strings.TrimSpace(term))
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseTerm(term string) (Range, error) {
	if term == "" {
		return Range{}, fmt.Errorf("%w: empty term", ErrInvalidSpec)
	}

	startStr, endStr, isRange := strings.Cut(term, "-")
	start, err := parsePage(startStr)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidSpec, term)
	}
	if !isRange {
		return Range{Start: start, End: start}, nil
	}

	end, err := parsePage(endStr)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidSpec, term)
	}
	if end < start {
		return Range{}, fmt.Errorf("%w: descending range %q", ErrInvalidSpec, term)
	}
	return Range{Start: start, End: end}, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("page %d is not 1-based", n)
	}
	return n, nil
}

// Resolve expands spec against a document of pageCount pages. An empty spec
// yields every page in order. Any page outside [1, pageCount] fails the whole
// spec with ErrPageOutOfRange.
func Resolve(spec string, pageCount int) ([]int, error) {
	ranges, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}

	if ranges == nil {
		all := make([]int, pageCount)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}

	total := 0
	for _, r := range ranges {
		if r.End > pageCount {
			return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, r.End, pageCount)
		}
		total += r.Len()
	}

	out := make([]int, 0, total)
	for _, r := range ranges {
		for p := r.Start; p <= r.End; p++ {
			out = append(out, p)
		}
	}
	return out, nil
}
