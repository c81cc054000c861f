package remap_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/remap"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

type fakeDestination struct {
	styles    []string
	variables []string
}

func (d fakeDestination) StyleNames() []string    { return d.styles }
func (d fakeDestination) VariableNames() []string { return d.variables }

func payloadDocument() *webflow.Document {
	doc := webflow.NewDocument()

	hero := webflow.NewStyle("s-1", "hero", "ns")
	hero.StyleLess = "color: var(--brand-primary, #000); display: flex"
	hero.Variants["small"] = webflow.Variant{StyleLess: "padding: var(--space-sm)"}
	doc.Payload.Styles = append(doc.Payload.Styles, hero)

	card := webflow.NewStyle("s-2", "card", "ns")
	card.StyleLess = "background: var(--surface, var(--fallback-surface, #fff))"
	doc.Payload.Styles = append(doc.Payload.Styles, card)

	return doc
}

func TestDetectCollisions(t *testing.T) {
	doc := payloadDocument()
	dest := fakeDestination{
		styles:    []string{"card", "unused"},
		variables: []string{"--brand-primary"},
	}

	report := remap.NewRemapper(zap.NewNop()).DetectCollisions(doc, dest)

	if len(report.Styles) != 1 {
		t.Fatalf("collisions = %+v, want card only", report.Styles)
	}
	c := report.Styles[0]
	if c.Name != "card" || c.StyleID != "s-2" || c.Resolution != remap.ResolutionSkip {
		t.Errorf("collision = %+v", c)
	}

	// Only outer handles count: the nested fallback reference is part of the
	// --surface call, not a reference of its own.
	want := []string{"--brand-primary", "--space-sm", "--surface"}
	if len(report.Variables) != len(want) {
		t.Fatalf("variables = %v, want %v", report.Variables, want)
	}
	for i, v := range want {
		if report.Variables[i] != v {
			t.Errorf("variables[%d] = %q, want %q", i, report.Variables[i], v)
		}
	}

	wantMissing := []string{"--space-sm", "--surface"}
	if len(report.Unsatisfied) != len(wantMissing) {
		t.Fatalf("unsatisfied = %v, want %v", report.Unsatisfied, wantMissing)
	}
	for i, v := range wantMissing {
		if report.Unsatisfied[i] != v {
			t.Errorf("unsatisfied[%d] = %q, want %q", i, report.Unsatisfied[i], v)
		}
	}
}

func TestDetectCollisions_DoesNotModify(t *testing.T) {
	doc := payloadDocument()
	before := doc.Payload.Styles[0].StyleLess

	remap.NewRemapper(nil).DetectCollisions(doc, fakeDestination{styles: []string{"hero"}})

	if doc.Payload.Styles[0].StyleLess != before {
		t.Error("detection modified the document")
	}
}

func TestRewriteVariables(t *testing.T) {
	doc := payloadDocument()
	mapping := map[string]string{
		"--brand-primary": "@var_brand-primary",
		"--space-sm":      "@var_space-sm",
	}

	n := remap.NewRemapper(zap.NewNop()).RewriteVariables(doc, mapping)
	if n != 2 {
		t.Fatalf("rewrites = %d, want 2", n)
	}

	hero := doc.StyleByName("hero")
	if hero.StyleLess != "color: @var_brand-primary; display: flex" {
		t.Errorf("base = %q", hero.StyleLess)
	}
	if got := hero.Variants["small"].StyleLess; got != "padding: @var_space-sm" {
		t.Errorf("variant = %q", got)
	}

	// Unmapped references stay verbatim, fallback and all.
	card := doc.StyleByName("card")
	if card.StyleLess != "background: var(--surface, var(--fallback-surface, #fff))" {
		t.Errorf("unmapped reference changed: %q", card.StyleLess)
	}
}

func TestRewriteVariables_EmptyMapping(t *testing.T) {
	doc := payloadDocument()
	before := doc.Payload.Styles[0].StyleLess

	if n := remap.NewRemapper(nil).RewriteVariables(doc, nil); n != 0 {
		t.Errorf("rewrites = %d, want 0", n)
	}
	if doc.Payload.Styles[0].StyleLess != before {
		t.Error("empty mapping modified the document")
	}
}

func TestRewriteVariables_NestedFallback(t *testing.T) {
	doc := webflow.NewDocument()
	s := webflow.NewStyle("s-1", "x", "ns")
	s.StyleLess = "background: var(--surface, var(--fallback, #fff))"
	doc.Payload.Styles = append(doc.Payload.Styles, s)

	// Mapping the outer handle replaces the whole call, fallback included.
	n := remap.NewRemapper(nil).RewriteVariables(doc, map[string]string{"--surface": "@var_surface"})
	if n != 1 {
		t.Fatalf("rewrites = %d, want 1", n)
	}
	if got := doc.Payload.Styles[0].StyleLess; got != "background: @var_surface" {
		t.Errorf("result = %q", got)
	}
}
