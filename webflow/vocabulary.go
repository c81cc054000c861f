package webflow

import "sort"

// Breakpoint is one supported responsive tier. Width is the max-width pixel
// boundary of the tier; the base (desktop) tier has no entry here.
type Breakpoint struct {
	Key   string
	Width int
}

// Vocabulary is the closed set of variant keys the consumer format accepts,
// plus the combinator marker convention. Both are dictated by an external,
// undocumented format, so they are injectable configuration rather than
// hard-coded assumptions; the defaults match the currently known consumer.
type Vocabulary struct {
	Breakpoints []Breakpoint
	PseudoKeys  []string
	CombMarker  string
}

// DefaultVocabulary returns the variant vocabulary of the known consumer.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Breakpoints: []Breakpoint{
			{Key: "medium", Width: 991},
			{Key: "small", Width: 767},
			{Key: "tiny", Width: 479},
		},
		PseudoKeys: []string{
			"main_hover", "medium_hover", "small_hover", "tiny_hover",
		},
		CombMarker: "&",
	}
}

// Contains reports whether key is a valid variant key.
func (v Vocabulary) Contains(key string) bool {
	for _, bp := range v.Breakpoints {
		if bp.Key == key {
			return true
		}
	}
	for _, p := range v.PseudoKeys {
		if p == key {
			return true
		}
	}
	return false
}

// HoverKey returns the pseudo key for a hover variant on the given
// breakpoint key ("" meaning the base tier). Unknown combinations return
// false.
func (v Vocabulary) HoverKey(breakpoint string) (string, bool) {
	want := "main_hover"
	if breakpoint != "" {
		want = breakpoint + "_hover"
	}
	for _, p := range v.PseudoKeys {
		if p == want {
			return p, true
		}
	}
	return "", false
}

// NearestBreakpoint maps a source max-width in pixels to the closest
// supported tier. rounded is true when the source width is not an exact
// tier boundary. A width wider than every tier maps to the widest one.
func (v Vocabulary) NearestBreakpoint(width int) (key string, rounded bool, ok bool) {
	if len(v.Breakpoints) == 0 || width <= 0 {
		return "", false, false
	}
	sorted := append([]Breakpoint(nil), v.Breakpoints...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Width < sorted[j].Width })

	best := sorted[0]
	bestDist := abs(width - best.Width)
	for _, bp := range sorted[1:] {
		if d := abs(width - bp.Width); d < bestDist {
			best, bestDist = bp, d
		}
	}
	return best.Key, bestDist != 0, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
