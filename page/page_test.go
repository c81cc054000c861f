package page_test

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
	"github.com/Maria-the2nd/flow-stach-sub004/page"
)

const fixturePage = `<!DOCTYPE html>
<html>
<head>
<title>Acme Landing</title>
<style>
:root { --brand: #336699; }
.hero-section { display: flex; padding: 80px 0; }
.hero-title { font-size: 48px; }
.feature-card { border-radius: 8px; animation: slide-up 0.5s ease; }
.cta-section { background: #111; }
.cta-section:hover { background: #222; }
h1, h2 { margin: 0; }
.unrelated { color: fuchsia; }
@media (max-width: 767px) {
  .hero-section { padding: 40px 0; }
  .unrelated { display: none; }
}
@keyframes slide-up {
  from { transform: translateY(24px); }
  to { transform: translateY(0); }
}
</style>
</head>
<body>
<header class="site-header"><nav class="main-nav"><a href="/">Acme</a></nav></header>
<!-- ws:section hero -->
<section class="hero-section">
  <h1 class="hero-title">Build faster</h1>
</section>
<div class="features-section">
  <div class="feature-card">Fast</div>
  <div class="feature-card">Safe</div>
</div>
<section class="cta-section"><a class="cta-button" href="/signup">Start</a></section>
<footer class="site-footer"><p>© Acme</p></footer>
</body>
</html>`

func TestDetect_Fixture(t *testing.T) {
	d := page.NewDetector(zap.NewNop())
	sections := d.Detect(fixturePage, page.DefaultDetectOptions())

	// header, marked hero, implicit features div, cta section, footer.
	// The nav is inside the claimed header, so it is not its own section.
	if len(sections) != 5 {
		var names []string
		for _, s := range sections {
			names = append(names, s.Name)
		}
		t.Fatalf("expected 5 sections, got %d: %v", len(sections), names)
	}

	for i, want := range []struct {
		name string
		tag  string
	}{
		{"site-header", "header"},
		{"hero", "section"},
		{"features-section", "div"},
		{"cta-section", "section"},
		{"site-footer", "footer"},
	} {
		if sections[i].Name != want.name {
			t.Errorf("sections[%d].Name = %q, want %q", i, sections[i].Name, want.name)
		}
		if sections[i].Tag != want.tag {
			t.Errorf("sections[%d].Tag = %q, want %q", i, sections[i].Tag, want.tag)
		}
	}

	hero := sections[1]
	if !strings.Contains(hero.HTML, `class="hero-title"`) {
		t.Error("hero section lost its nested heading")
	}
	if hero.PrimaryClass != "hero-section" {
		t.Errorf("hero PrimaryClass = %q", hero.PrimaryClass)
	}
	found := false
	for _, c := range hero.ClassNames {
		if c == "hero-title" {
			found = true
		}
	}
	if !found {
		t.Errorf("hero ClassNames = %v, want hero-title included", hero.ClassNames)
	}
}

func TestDetect_MarkerNamesSection(t *testing.T) {
	html := `<!-- ws:section masthead --><section class="top"><p>x</p></section>`
	sections := page.NewDetector(nil).Detect(html, page.DefaultDetectOptions())
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Name != "masthead" {
		t.Errorf("Name = %q, want masthead", sections[0].Name)
	}
}

func TestDetect_NestedSameTag(t *testing.T) {
	html := `<section class="outer"><section class="inner"><p>x</p></section><p>tail</p></section>`
	sections := page.NewDetector(nil).Detect(html, page.DefaultDetectOptions())
	if len(sections) != 1 {
		t.Fatalf("expected the outer section only, got %d", len(sections))
	}
	if !strings.Contains(sections[0].HTML, "tail") {
		t.Error("outer section truncated at the inner closer")
	}
}

func TestDetect_UnclosedElementSkipped(t *testing.T) {
	html := `<section class="broken"><p>x</p>` // no closer
	sections := page.NewDetector(zap.NewNop()).Detect(html, page.DefaultDetectOptions())
	if len(sections) != 0 {
		t.Fatalf("expected unclosed element to be skipped, got %d sections", len(sections))
	}
}

func TestDetect_NoSections(t *testing.T) {
	sections := page.NewDetector(nil).Detect("<p>just a paragraph</p>", page.DefaultDetectOptions())
	if len(sections) != 0 {
		t.Fatalf("expected empty result, got %d", len(sections))
	}
}

func TestTitle(t *testing.T) {
	if got := page.Title(fixturePage); got != "Acme Landing" {
		t.Errorf("Title() = %q", got)
	}
	if got := page.Title("<p>no title</p>"); got != "" {
		t.Errorf("Title() = %q, want empty", got)
	}
}

func TestExtractCSS_Fixture(t *testing.T) {
	split := page.Split(fixturePage, page.DefaultDetectOptions(), page.DefaultExtractOptions(), zap.NewNop())
	if len(split.Sections) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(split.Sections))
	}

	hero := split.Sections[1]
	if !strings.Contains(hero.CSS, ".hero-section") || !strings.Contains(hero.CSS, ".hero-title") {
		t.Errorf("hero CSS missing class rules:\n%s", hero.CSS)
	}
	if !strings.Contains(hero.CSS, ":root") {
		t.Error("hero CSS missing :root block (IncludeRoot default)")
	}
	if !strings.Contains(hero.CSS, "@media") || !strings.Contains(hero.CSS, "padding: 40px 0") {
		t.Errorf("hero CSS missing scoped media rule:\n%s", hero.CSS)
	}
	if strings.Contains(hero.CSS, ".unrelated") {
		t.Errorf("hero CSS leaked unrelated rules:\n%s", hero.CSS)
	}
	if !strings.Contains(hero.CSS, "h1") {
		t.Error("hero CSS missing bare-tag rule for a tag the section uses")
	}

	features := split.Sections[2]
	if !strings.Contains(features.CSS, ".feature-card") {
		t.Errorf("features CSS missing card rule:\n%s", features.CSS)
	}
	if !strings.Contains(features.CSS, "@keyframes slide-up") {
		t.Errorf("features CSS missing keyframes pulled via animation shorthand:\n%s", features.CSS)
	}

	cta := split.Sections[3]
	if !strings.Contains(cta.CSS, ".cta-section:hover") {
		t.Errorf("cta CSS missing pseudo variant:\n%s", cta.CSS)
	}
	if strings.Contains(cta.CSS, "@keyframes") {
		t.Error("cta CSS pulled keyframes it never references")
	}
}

func TestExtractCSS_Dedupe(t *testing.T) {
	sheet := css.NewParser(zap.NewNop()).Parse([]byte(".a { color: red; } .a { color: red; }"))
	sec := page.Section{Name: "s", HTML: `<div class="a">x</div>`, ClassNames: []string{"a"}}

	e := page.NewExtractor(zap.NewNop())

	deduped := e.ExtractCSS(sec, sheet, page.DefaultExtractOptions())
	if strings.Count(deduped, ".a") != 1 {
		t.Errorf("expected one rule after dedupe:\n%s", deduped)
	}

	opts := page.DefaultExtractOptions()
	opts.Dedupe = false
	kept := e.ExtractCSS(sec, sheet, opts)
	if strings.Count(kept, ".a") != 2 {
		t.Errorf("expected duplicates kept when dedupe is off:\n%s", kept)
	}
}

func TestStylesheetText(t *testing.T) {
	html := "<style>.a { color: red; }</style><p>x</p><style>\n.b { color: blue; }\n</style>"
	got := page.StylesheetText(html)
	if !strings.Contains(got, ".a") || !strings.Contains(got, ".b") {
		t.Errorf("StylesheetText() = %q", got)
	}
}
