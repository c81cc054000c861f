package tokens

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
)

// FontSource classifies where a font family comes from.
type FontSource string

const (
	FontGoogle FontSource = "google"
	FontSystem FontSource = "system"
	FontAdobe  FontSource = "adobe"
	FontCustom FontSource = "custom"
)

// FontRef is one referenced font family. Compatible marks sources the
// destination can load without manual setup (google and system).
type FontRef struct {
	Family     string
	Source     FontSource
	Compatible bool
}

// systemFamilies are families every destination already has.
var systemFamilies = map[string]bool{
	"arial": true, "helvetica": true, "helvetica neue": true,
	"times": true, "times new roman": true, "georgia": true,
	"courier": true, "courier new": true, "verdana": true, "tahoma": true,
	"trebuchet ms": true, "impact": true, "-apple-system": true,
	"blinkmacsystemfont": true, "segoe ui": true, "system-ui": true,
	"serif": true, "sans-serif": true, "monospace": true, "cursive": true,
	"fantasy": true, "ui-sans-serif": true, "ui-serif": true, "ui-monospace": true,
}

// ExtractFonts scans @font-face blocks, Google-Fonts import URLs and
// literal font-family declarations, classifying each family once.
func (e *Extractor) ExtractFonts(sheet *css.Stylesheet) []FontRef {
	var (
		refs []FontRef
		seen = map[string]bool{}
	)
	add := func(family string, source FontSource) {
		family = strings.Trim(strings.TrimSpace(family), `"'`)
		if family == "" {
			return
		}
		key := strings.ToLower(family)
		if seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, FontRef{
			Family:     family,
			Source:     source,
			Compatible: source == FontGoogle || source == FontSystem,
		})
	}

	// Import URLs first: they carry the most reliable source signal.
	for _, imp := range sheet.Imports() {
		for _, fam := range googleImportFamilies(imp) {
			add(fam, FontGoogle)
		}
		if strings.Contains(imp, "use.typekit.net") {
			e.log.Debug("Adobe fonts import detected", zap.String("url", imp))
		}
	}

	// @font-face declarations: self-hosted unless the src points at a known
	// foundry host.
	for _, ff := range sheet.FontFaces() {
		switch {
		case strings.Contains(ff.Src, "use.typekit.net"):
			add(ff.Family, FontAdobe)
		case strings.Contains(ff.Src, "fonts.gstatic.com"):
			add(ff.Family, FontGoogle)
		default:
			add(ff.Family, FontCustom)
		}
	}

	// Literal font-family declarations pick up whatever is left.
	for _, scoped := range sheet.AllRules() {
		v, ok := scoped.Rule.Decl("font-family")
		if !ok || strings.Contains(v, "var(") {
			// Variable-driven stacks resolve through the token manifest.
			continue
		}
		for _, fam := range strings.Split(v, ",") {
			fam = strings.Trim(strings.TrimSpace(fam), `"'`)
			if fam == "" {
				continue
			}
			if systemFamilies[strings.ToLower(fam)] {
				add(fam, FontSystem)
			} else {
				add(fam, FontCustom)
			}
		}
	}

	e.log.Debug("Extracted fonts", zap.Int("families", len(refs)))
	return refs
}

// googleImportFamilies parses families out of a Google Fonts URL in either
// the legacy query-string syntax (?family=A|B:400,700) or the modern
// repeatable syntax (?family=A&family=B:wght@400;700).
func googleImportFamilies(raw string) []string {
	if !strings.Contains(raw, "fonts.googleapis.com") {
		return nil
	}
	_, query, found := strings.Cut(raw, "?")
	if !found {
		return nil
	}
	// The query is walked by hand: url.Query() drops pairs containing the
	// semicolons the modern axis syntax uses (wght@400;700).
	var families []string
	for _, pair := range strings.Split(query, "&") {
		value, ok := strings.CutPrefix(pair, "family=")
		if !ok {
			continue
		}
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		// Legacy syntax packs several families into one value with pipes.
		for _, part := range strings.Split(value, "|") {
			// Strip weight/style suffixes: "Name:400,700" or "Name:wght@400".
			name, _, _ := strings.Cut(part, ":")
			name = strings.ReplaceAll(name, "+", " ")
			if name = strings.TrimSpace(name); name != "" {
				families = append(families, name)
			}
		}
	}
	return families
}
