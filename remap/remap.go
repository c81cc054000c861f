// Package remap reconciles a candidate document against a live destination
// before direct insertion. The destination's already-declared style and
// variable names are authoritative: colliding payload styles are skipped,
// and variable references are rewritten onto destination-native identifiers
// once the mapping is known.
package remap

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

// Destination exposes what already exists at the insertion target.
type Destination interface {
	// StyleNames lists class names already declared at the destination.
	StyleNames() []string
	// VariableNames lists design-variable handles (with the leading "--")
	// already declared at the destination.
	VariableNames() []string
}

// Resolution is how a detected collision gets handled.
type Resolution string

// ResolutionSkip keeps the destination's declaration; the payload style is
// not inserted.
const ResolutionSkip Resolution = "skip"

// StyleCollision is one payload style whose name already exists at the
// destination.
type StyleCollision struct {
	Name       string     `json:"name"`
	StyleID    string     `json:"styleId"`
	Resolution Resolution `json:"resolution"`
}

// CollisionReport summarizes the reconciliation findings.
type CollisionReport struct {
	// Styles lists payload styles colliding with the destination.
	Styles []StyleCollision `json:"styles"`
	// Variables lists every variable handle referenced by the payload.
	Variables []string `json:"variables"`
	// Unsatisfied lists referenced handles the destination does not declare.
	Unsatisfied []string `json:"unsatisfied"`
}

// Remapper performs collision detection and variable rewriting.
type Remapper struct {
	log *zap.Logger
}

// NewRemapper creates a remapper.
func NewRemapper(log *zap.Logger) *Remapper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Remapper{log: log.Named("remap")}
}

// DetectCollisions flags payload style names already declared at the
// destination and reports variable references the destination cannot
// satisfy. The document is not modified.
func (r *Remapper) DetectCollisions(doc *webflow.Document, dest Destination) *CollisionReport {
	report := &CollisionReport{}

	existing := map[string]bool{}
	for _, name := range dest.StyleNames() {
		existing[name] = true
	}
	for _, s := range doc.Payload.Styles {
		if existing[s.Name] {
			report.Styles = append(report.Styles, StyleCollision{
				Name:       s.Name,
				StyleID:    s.ID,
				Resolution: ResolutionSkip,
			})
			r.log.Debug("Style collision", zap.String("name", s.Name))
		}
	}

	declared := map[string]bool{}
	for _, handle := range dest.VariableNames() {
		declared[handle] = true
	}
	seen := map[string]bool{}
	forEachStyleText(doc, func(text string) string {
		for _, ref := range variableRefs(text) {
			if !seen[ref.Handle] {
				seen[ref.Handle] = true
				report.Variables = append(report.Variables, ref.Handle)
				if !declared[ref.Handle] {
					report.Unsatisfied = append(report.Unsatisfied, ref.Handle)
				}
			}
		}
		return text
	})
	sort.Strings(report.Variables)
	sort.Strings(report.Unsatisfied)
	return report
}

// RewriteVariables rewrites var() references whose handle appears in the
// mapping into the destination-native identifier, across base and variant
// inline syntax. References with no mapping entry are left untouched. The
// rewrite count is returned.
func (r *Remapper) RewriteVariables(doc *webflow.Document, mapping map[string]string) int {
	if len(mapping) == 0 {
		return 0
	}
	count := 0
	forEachStyleText(doc, func(text string) string {
		out, n := rewriteRefs(text, mapping)
		count += n
		return out
	})
	if count > 0 {
		r.log.Debug("Rewrote variable references", zap.Int("count", count))
	}
	return count
}

// forEachStyleText applies fn to every inline-syntax string in the document,
// base and variants alike, storing the result back.
func forEachStyleText(doc *webflow.Document, fn func(string) string) {
	for i := range doc.Payload.Styles {
		s := &doc.Payload.Styles[i]
		s.StyleLess = fn(s.StyleLess)
		for key, v := range s.Variants {
			v.StyleLess = fn(v.StyleLess)
			s.Variants[key] = v
		}
	}
}

// varRef is one var() occurrence inside an inline-syntax string.
type varRef struct {
	Handle   string // "--name"
	Fallback string // empty when absent
	start    int    // offset of "var("
	end      int    // offset one past the closing paren
}

// variableRefs scans text for var() calls. The call extent is found by
// balanced-paren counting so fallbacks may themselves contain calls.
func variableRefs(text string) []varRef {
	var refs []varRef
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], "var(")
		if j < 0 {
			break
		}
		start := i + j
		inner, end, ok := balancedCall(text, start+len("var("))
		if !ok {
			break // unterminated call, nothing more to extract
		}
		handle, fallback := splitRef(inner)
		if strings.HasPrefix(handle, "--") {
			refs = append(refs, varRef{Handle: handle, Fallback: fallback, start: start, end: end})
		}
		i = end
	}
	return refs
}

// balancedCall returns the argument text of a call whose opening paren sits
// just before from, plus the offset one past its closing paren.
func balancedCall(text string, from int) (string, int, bool) {
	depth := 1
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[from:i], i + 1, true
			}
		}
	}
	return "", 0, false
}

// splitRef splits "--name, fallback" at the first top-level comma.
func splitRef(inner string) (string, string) {
	depth := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(inner[:i]), strings.TrimSpace(inner[i+1:])
			}
		}
	}
	return strings.TrimSpace(inner), ""
}

// rewriteRefs replaces each mapped var() call with the destination-native
// identifier, keeping unmapped calls verbatim.
func rewriteRefs(text string, mapping map[string]string) (string, int) {
	refs := variableRefs(text)
	if len(refs) == 0 {
		return text, 0
	}
	var b strings.Builder
	b.Grow(len(text))
	count := 0
	last := 0
	for _, ref := range refs {
		native, ok := mapping[ref.Handle]
		if !ok {
			continue
		}
		b.WriteString(text[last:ref.start])
		b.WriteString(native)
		last = ref.end
		count++
	}
	if count == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), count
}
