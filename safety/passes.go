package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

// lineBreakMarkup matches line-break tags embedded in plain text runs, a
// known consumer crash trigger.
var lineBreakMarkup = regexp.MustCompile(`(?i)<br\s*/?\s*>`)

// structuralPass strips crash patterns, drops out-of-vocabulary variant
// keys, rewrites reserved-prefix identifiers and cuts graph cycles.
func (g *Gate) structuralPass(doc *webflow.Document, report *Report) {
	// Crash-triggering markup inside plain text runs.
	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		if n.Text && lineBreakMarkup.MatchString(n.V) {
			n.V = lineBreakMarkup.ReplaceAllString(n.V, " ")
			report.fix("stripped line-break markup from text node " + n.ID)
		}
	}

	// Variant keys outside the closed vocabulary.
	for i := range doc.Payload.Styles {
		s := &doc.Payload.Styles[i]
		for key := range s.Variants {
			if !g.vocab.Contains(key) {
				delete(s.Variants, key)
				report.fix(fmt.Sprintf("dropped unknown variant key %q from style %s", key, s.Name))
			}
		}
	}

	// Reserved-prefix identifiers.
	if prefix := g.opts.ReservedPrefix; prefix != "" {
		remap := map[string]string{}
		for i := range doc.Payload.Nodes {
			n := &doc.Payload.Nodes[i]
			if strings.HasPrefix(n.ID, prefix) {
				remap[n.ID] = "u-" + strings.TrimPrefix(n.ID, prefix)
				report.fix("rewrote reserved node identifier " + n.ID)
			}
		}
		for i := range doc.Payload.Styles {
			s := &doc.Payload.Styles[i]
			if strings.HasPrefix(s.ID, prefix) {
				remap[s.ID] = "u-" + strings.TrimPrefix(s.ID, prefix)
				report.fix("rewrote reserved style identifier " + s.ID)
			}
		}
		if len(remap) > 0 {
			applyIDRemap(doc, remap)
		}
	}

	// Cycles in the node-children graph.
	nodeIndex := map[string]int{}
	for i, n := range doc.Payload.Nodes {
		nodeIndex[n.ID] = i
	}
	cutCycles(len(doc.Payload.Nodes),
		func(i int) []string { return doc.Payload.Nodes[i].Children },
		func(id string) (int, bool) { i, ok := nodeIndex[id]; return i, ok },
		func(i, j int) {
			n := &doc.Payload.Nodes[i]
			cut := n.Children[j]
			n.Children = append(n.Children[:j], n.Children[j+1:]...)
			report.warn("cut cyclic child edge " + n.ID + " -> " + cut)
			g.log.Debug("Cut node cycle", zap.String("from", n.ID), zap.String("to", cut))
		})

	// Cycles in the style-children (combo) graph; children reference names.
	styleIndex := map[string]int{}
	for i, s := range doc.Payload.Styles {
		styleIndex[s.Name] = i
	}
	cutCycles(len(doc.Payload.Styles),
		func(i int) []string { return doc.Payload.Styles[i].Children },
		func(name string) (int, bool) { i, ok := styleIndex[name]; return i, ok },
		func(i, j int) {
			s := &doc.Payload.Styles[i]
			cut := s.Children[j]
			s.Children = append(s.Children[:j], s.Children[j+1:]...)
			report.warn("cut cyclic combo edge " + s.Name + " -> " + cut)
			g.log.Debug("Cut style cycle", zap.String("from", s.Name), zap.String("to", cut))
		})
}

// cutCycles runs an iterative DFS with color marking over an id-indexed
// graph, removing the offending edge whenever a back edge closes a cycle.
// Removal restarts the scan so index bookkeeping stays simple; graphs here
// are small.
func cutCycles(n int, children func(int) []string, lookup func(string) (int, bool), cut func(i, j int)) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
restart:
	color := make([]int, n)
	var visit func(int) bool
	visit = func(i int) bool {
		color[i] = gray
		kids := children(i)
		for j := 0; j < len(kids); j++ {
			k, ok := lookup(kids[j])
			if !ok {
				continue
			}
			if color[k] == gray {
				cut(i, j)
				return true
			}
			if color[k] == white && visit(k) {
				return true
			}
		}
		color[i] = black
		return false
	}
	for i := 0; i < n; i++ {
		if color[i] == white && visit(i) {
			goto restart
		}
	}
}

// identityPass regenerates duplicate identifiers deterministically and
// rewrites every reference occurrence-aware: the first referencing node
// points at the first declaration, the second at the second, and so on.
func (g *Gate) identityPass(doc *webflow.Document, report *Report) {
	// Identifiers are globally unique across nodes and styles.
	seen := map[string]int{}
	replacements := map[string][]string{} // old id -> new id per occurrence

	assign := func(id string) string {
		count := seen[id]
		seen[id]++
		if count == 0 {
			return id
		}
		fresh := fmt.Sprintf("%s-dup%d", id, count)
		if _, taken := seen[fresh]; taken {
			fresh = uuid.NewString()
		}
		seen[fresh]++
		replacements[id] = append(replacements[id], fresh)
		return fresh
	}

	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		if fresh := assign(n.ID); fresh != n.ID {
			report.fix("regenerated duplicate node identifier " + n.ID + " as " + fresh)
			n.ID = fresh
		}
	}
	for i := range doc.Payload.Styles {
		s := &doc.Payload.Styles[i]
		if fresh := assign(s.ID); fresh != s.ID {
			report.fix("regenerated duplicate style identifier " + s.ID + " as " + fresh)
			s.ID = fresh
		}
	}
	if len(replacements) == 0 {
		return
	}

	// Occurrence-aware reference rewrite: the n-th reference to a formerly
	// duplicated id resolves to the n-th declaration.
	taken := map[string]int{}
	resolve := func(ref string) string {
		news, ok := replacements[ref]
		if !ok {
			return ref
		}
		n := taken[ref]
		taken[ref]++
		if n == 0 {
			return ref // first reference keeps the original declaration
		}
		if n-1 < len(news) {
			return news[n-1]
		}
		return news[len(news)-1]
	}

	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		for j, child := range n.Children {
			n.Children[j] = resolve(child)
		}
	}
	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		for j, class := range n.Classes {
			n.Classes[j] = resolve(class)
		}
	}
}

// applyIDRemap rewrites node ids, style ids and all references per remap.
func applyIDRemap(doc *webflow.Document, remap map[string]string) {
	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		if fresh, ok := remap[n.ID]; ok {
			n.ID = fresh
		}
		for j, child := range n.Children {
			if fresh, ok := remap[child]; ok {
				n.Children[j] = fresh
			}
		}
		for j, class := range n.Classes {
			if fresh, ok := remap[class]; ok {
				n.Classes[j] = fresh
			}
		}
	}
	for i := range doc.Payload.Styles {
		s := &doc.Payload.Styles[i]
		if fresh, ok := remap[s.ID]; ok {
			s.ID = fresh
		}
	}
}

// depthPass flags elements nested beyond the depth thresholds. Flattening
// is intentionally out of scope; the caller decides what to do.
func (g *Gate) depthPass(doc *webflow.Document, report *Report) {
	nodeIndex := map[string]int{}
	referenced := map[string]bool{}
	for i, n := range doc.Payload.Nodes {
		nodeIndex[n.ID] = i
		for _, c := range n.Children {
			referenced[c] = true
		}
	}

	var walk func(i, depth int)
	walk = func(i, depth int) {
		n := doc.Payload.Nodes[i]
		if depth > g.opts.HardDepth {
			report.warn(fmt.Sprintf("node %s nested %d levels deep (limit %d)", n.ID, depth, g.opts.HardDepth))
			return
		}
		if depth > g.opts.SoftDepth {
			// Shallow excess is tolerated silently.
			g.log.Debug("Deep nesting", zap.String("node", n.ID), zap.Int("depth", depth))
		}
		for _, c := range n.Children {
			if j, ok := nodeIndex[c]; ok {
				walk(j, depth+1)
			}
		}
	}
	for i, n := range doc.Payload.Nodes {
		if !referenced[n.ID] {
			walk(i, 1)
		}
	}
}

// referentialPass runs last and closes the invariant that every class a
// node references resolves to a declared style, either by synthesizing an
// empty style or by dropping the dangling reference.
func (g *Gate) referentialPass(doc *webflow.Document, report *Report) {
	styleIDs := map[string]bool{}
	for _, s := range doc.Payload.Styles {
		styleIDs[s.ID] = true
	}

	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		kept := n.Classes[:0]
		for _, class := range n.Classes {
			if styleIDs[class] {
				kept = append(kept, class)
				continue
			}
			if g.opts.SynthesizeMissing {
				s := webflow.NewStyle(class, class, "")
				s.Fake = true
				doc.Payload.Styles = append(doc.Payload.Styles, s)
				styleIDs[class] = true
				kept = append(kept, class)
				report.fix("synthesized empty style for dangling class " + class)
				continue
			}
			report.fix("dropped dangling class reference " + class + " from node " + n.ID)
		}
		n.Classes = kept
	}
}
