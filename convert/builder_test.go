package convert_test

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/convert"
	"github.com/Maria-the2nd/flow-stach-sub004/page"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

func buildOptions() convert.BuildOptions {
	return convert.BuildOptions{
		IDPrefix:  "t",
		Namespace: "test",
		Vocab:     webflow.DefaultVocabulary(),
		Tracer:    convert.DefaultTracerOptions(),
	}
}

func TestBuildSection_Graph(t *testing.T) {
	sec := page.Section{
		Name: "hero",
		HTML: `<section class="hero-section">
  <h1 class="hero-title">Build <em>faster</em></h1>
  <a class="cta" href="mailto:sales@example.com">Talk to us</a>
  <img class="shot" src="/shot.png" alt="screenshot" loading="lazy">
</section>`,
		ClassNames: []string{"hero-section", "hero-title", "cta", "shot"},
		CSS: `.hero-section { display: flex; }
.hero-title { font-size: 48px; }
.cta:hover { opacity: 0.8; }
@media (max-width: 767px) { .hero-section { display: block; } }`,
	}

	doc, fixes := convert.NewBuilder(zap.NewNop()).BuildSection(sec, buildOptions())
	if len(fixes) != 0 {
		t.Errorf("unexpected fixes: %v", fixes)
	}
	if !doc.Valid() {
		t.Fatal("document failed validity check")
	}

	root := doc.Payload.Nodes[0]
	if root.Tag != "section" || root.Type != webflow.NodeBlock {
		t.Fatalf("root = %+v", root)
	}
	if root.ID != "t-1" {
		t.Errorf("root id = %q, want sequential prefixed ids", root.ID)
	}

	// Children are identifier references resolving within the same payload.
	for _, n := range doc.Payload.Nodes {
		for _, child := range n.Children {
			if doc.NodeByID(child) == nil {
				t.Errorf("node %s references missing child %s", n.ID, child)
			}
		}
	}

	// Every class a node references resolves to a declared style id.
	for _, n := range doc.Payload.Nodes {
		for _, class := range n.Classes {
			if doc.StyleByID(class) == nil {
				t.Errorf("node %s references missing style %s", n.ID, class)
			}
		}
	}

	heroStyle := doc.StyleByName("hero-section")
	if heroStyle == nil {
		t.Fatal("hero-section style missing")
	}
	if !strings.Contains(heroStyle.StyleLess, "display: flex") {
		t.Errorf("styleLess = %q", heroStyle.StyleLess)
	}
	if v, ok := heroStyle.Variants["small"]; !ok || !strings.Contains(v.StyleLess, "display: block") {
		t.Errorf("variants = %+v, want small override", heroStyle.Variants)
	}

	cta := doc.StyleByName("cta")
	if cta == nil {
		t.Fatal("cta style missing")
	}
	if v, ok := cta.Variants["main_hover"]; !ok || !strings.Contains(v.StyleLess, "opacity: 0.8") {
		t.Errorf("cta variants = %+v, want main_hover", cta.Variants)
	}

	// Text runs become text nodes.
	var textNode *webflow.Node
	for i := range doc.Payload.Nodes {
		if doc.Payload.Nodes[i].Text && strings.Contains(doc.Payload.Nodes[i].V, "Talk to us") {
			textNode = &doc.Payload.Nodes[i]
		}
	}
	if textNode == nil {
		t.Error("anchor text run missing")
	}

	// Element data: link mode and image attributes.
	var link, img *webflow.Node
	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		switch n.Type {
		case webflow.NodeLink:
			link = n
		case webflow.NodeImage:
			img = n
		}
	}
	if link == nil || link.Data == nil || link.Data.Link == nil {
		t.Fatal("link node missing its data")
	}
	if link.Data.Link.Mode != "email" {
		t.Errorf("link mode = %q, want email", link.Data.Link.Mode)
	}
	if img == nil || img.Data == nil || img.Data.Attr == nil {
		t.Fatal("image node missing its data")
	}
	if img.Data.Attr.Src != "/shot.png" || img.Data.Attr.Loading != "lazy" {
		t.Errorf("image attr = %+v", img.Data.Attr)
	}
}

func TestBuildSection_ComboClasses(t *testing.T) {
	sec := page.Section{
		Name:       "cards",
		HTML:       `<div class="card dark">x</div>`,
		ClassNames: []string{"card", "dark"},
		CSS:        `.card { padding: 16px; } .card.dark { background-color: #111; }`,
	}

	doc, _ := convert.NewBuilder(zap.NewNop()).BuildSection(sec, buildOptions())

	card := doc.StyleByName("card")
	if card == nil {
		t.Fatal("card style missing")
	}
	found := false
	for _, c := range card.Children {
		if c == "dark" {
			found = true
		}
	}
	if !found {
		t.Errorf("card children = %v, want dark", card.Children)
	}

	dark := doc.StyleByName("dark")
	if dark == nil {
		t.Fatal("dark style missing")
	}
	if dark.Comb != "&" {
		t.Errorf("dark comb = %q, want the combo marker", dark.Comb)
	}
	if !strings.Contains(dark.StyleLess, "background-color: #111") {
		t.Errorf("dark styleLess = %q", dark.StyleLess)
	}
}

func TestBuildSection_EmbedNode(t *testing.T) {
	sec := page.Section{
		Name:       "fancy",
		HTML:       `<div class="fancy">x</div>`,
		ClassNames: []string{"fancy"},
		CSS: `.fancy > span { color: red; }
@keyframes spin { from { transform: rotate(0); } to { transform: rotate(360deg); } }`,
	}

	doc, _ := convert.NewBuilder(zap.NewNop()).BuildSection(sec, buildOptions())

	var embed *webflow.Node
	for i := range doc.Payload.Nodes {
		if doc.Payload.Nodes[i].Type == webflow.NodeEmbed {
			embed = &doc.Payload.Nodes[i]
		}
	}
	if embed == nil {
		t.Fatal("embed node missing")
	}
	cssText := embed.Data.Embed.Meta.CSS
	if !strings.Contains(cssText, ".fancy > span") {
		t.Errorf("embed CSS missing complex rule:\n%s", cssText)
	}
	if !strings.Contains(cssText, "@keyframes spin") {
		t.Errorf("embed CSS missing keyframes:\n%s", cssText)
	}

	// The embed node hangs off the section root.
	root := doc.Payload.Nodes[0]
	attached := false
	for _, c := range root.Children {
		if c == embed.ID {
			attached = true
		}
	}
	if !attached {
		t.Error("embed node not attached to the root")
	}
}

func TestBuildSection_NeverFails(t *testing.T) {
	for _, html := range []string{"", "<script>alert(1)</script>", "nonsense <<<"} {
		doc, _ := convert.NewBuilder(zap.NewNop()).BuildSection(page.Section{Name: "x", HTML: html}, buildOptions())
		if !doc.Valid() {
			t.Errorf("BuildSection(%q) produced invalid document", html)
		}
		if len(doc.Payload.Nodes) == 0 {
			t.Errorf("BuildSection(%q) produced no nodes, want minimal block", html)
		}
	}
}

func TestValidateDocument_Placeholders(t *testing.T) {
	doc := webflow.NewDocument()
	doc.Payload.Nodes = append(doc.Payload.Nodes,
		webflow.Node{ID: "l1", Type: webflow.NodeLink, Tag: "a"},
		webflow.Node{ID: "i1", Type: webflow.NodeImage, Tag: "img"},
	)

	fixes := convert.ValidateDocument(doc)
	if len(fixes) != 2 {
		t.Fatalf("fixes = %v, want 2", fixes)
	}
	link := doc.NodeByID("l1")
	if link.Data == nil || link.Data.Link == nil || link.Data.Link.URL != "#" {
		t.Errorf("link not patched: %+v", link.Data)
	}
	img := doc.NodeByID("i1")
	if img.Data == nil || img.Data.Attr == nil || img.Data.Attr.Src == "" {
		t.Errorf("image not patched: %+v", img.Data)
	}
}
