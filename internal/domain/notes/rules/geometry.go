package rules

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Area is a table bounding box in PDF points with the origin at the bottom
// left of the page: (X1, Y1) is the top-left corner, (X2, Y2) the bottom-right.
type Area struct {
	X1, Y1, X2, Y2 float64
}

// Contains reports whether (x, y) lies inside the area, edges included.
func (a Area) Contains(x, y float64) bool {
	return x >= a.X1 && x <= a.X2 && y >= a.Y2 && y <= a.Y1
}

// Intersects reports whether the rectangle [left,right]x[bottom,top] overlaps the area.
func (a Area) Intersects(left, bottom, right, top float64) bool {
	return left <= a.X2 && right >= a.X1 && bottom <= a.Y1 && top >= a.Y2
}

// ParseArea parses "x1,y1,x2,y2".
func ParseArea(s string) (Area, error) {
	v, err := parseFloats(s)
	if err != nil {
		return Area{}, fmt.Errorf("table area %q: %w", s, err)
	}
	if len(v) != 4 {
		return Area{}, fmt.Errorf("table area %q: want 4 coordinates, got %d", s, len(v))
	}

	a := Area{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if a.X1 >= a.X2 || a.Y1 <= a.Y2 {
		return Area{}, fmt.Errorf("table area %q: want x1<x2 and y1>y2", s)
	}
	return a, nil
}

// ParseColumns parses ascending column separators "x1,x2,...".
func ParseColumns(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := parseFloats(s)
	if err != nil {
		return nil, fmt.Errorf("columns %q: %w", s, err)
	}
	if !sort.Float64sAreSorted(v) {
		return nil, fmt.Errorf("columns %q: positions must be ascending", s)
	}
	return v, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite coordinate %q", p)
		}
		out = append(out, f)
	}
	return out, nil
}
