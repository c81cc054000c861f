// Package tokens extracts design tokens - custom-property variables and
// font references - from page CSS. The manifest is an explicit value
// threaded through the pipeline, scoped per conversion; there is no shared
// token state across calls.
package tokens

import (
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
)

// Kind classifies a variable.
type Kind string

const (
	KindColor      Kind = "color"
	KindFontFamily Kind = "font-family"
)

// Variable is one named design value with a stable handle and optional
// per-mode overrides.
type Variable struct {
	Handle     string
	Name       string
	Kind       Kind
	Value      string
	ModeValues map[string]string
}

// Manifest groups the variables extracted from one conversion.
type Manifest struct {
	Namespace string
	Modes     []string
	Variables []Variable
}

// VariableByName returns the variable declared under the given custom
// property name (with or without the -- prefix).
func (m *Manifest) VariableByName(name string) (Variable, bool) {
	name = strings.TrimPrefix(name, "--")
	for _, v := range m.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Options configures variable extraction.
type Options struct {
	// AltRootClass is the alternate root-class block scanned in addition to
	// :root (leading class match).
	AltRootClass string
	// BaseMode names the default mode; ModeSelectors map additional modes to
	// the selector class redeclaring the same properties.
	BaseMode      string
	ModeSelectors map[string]string
}

// DefaultOptions returns the stock extraction configuration.
func DefaultOptions() Options {
	return Options{
		AltRootClass:  "theme-variables",
		BaseMode:      "light",
		ModeSelectors: map[string]string{"dark": "dark"},
	}
}

// Extractor scans stylesheets for design tokens.
type Extractor struct {
	log *zap.Logger
}

// NewExtractor creates a token extractor.
func NewExtractor(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log.Named("token-extractor")}
}

// ExtractVariables scans root-scope custom-property blocks into a manifest.
// The namespace derives from the slugified page title.
func (e *Extractor) ExtractVariables(sheet *css.Stylesheet, title string, opts Options) *Manifest {
	manifest := &Manifest{
		Namespace: slug.Make(title),
		Modes:     []string{opts.BaseMode},
	}
	if manifest.Namespace == "" {
		manifest.Namespace = "site"
	}

	index := map[string]int{}
	for _, rule := range sheet.Rules() {
		if len(rule.Custom) == 0 {
			continue
		}
		if isRootScope(rule.Selector, opts) {
			for _, d := range rule.Custom {
				name := strings.TrimPrefix(d.Prop, "--")
				if _, dup := index[name]; dup {
					// Redeclaration in root scope: last wins.
					manifest.Variables[index[name]].Value = d.Value
					continue
				}
				v := Variable{
					Handle:     "--" + slug.Make(name),
					Name:       name,
					Kind:       classify(name, d.Value),
					Value:      d.Value,
					ModeValues: map[string]string{},
				}
				index[name] = len(manifest.Variables)
				manifest.Variables = append(manifest.Variables, v)
			}
		}
	}

	// Mode override blocks redeclaring the same properties.
	for mode, class := range opts.ModeSelectors {
		found := false
		for _, rule := range sheet.Rules() {
			if len(rule.Custom) == 0 || rule.Selector.BaseClass() != class {
				continue
			}
			for _, d := range rule.Custom {
				name := strings.TrimPrefix(d.Prop, "--")
				if i, ok := index[name]; ok {
					manifest.Variables[i].ModeValues[mode] = d.Value
					found = true
				}
			}
		}
		if found {
			manifest.Modes = append(manifest.Modes, mode)
		}
	}

	e.log.Debug("Extracted variables",
		zap.String("namespace", manifest.Namespace),
		zap.Int("variables", len(manifest.Variables)),
		zap.Strings("modes", manifest.Modes))
	return manifest
}

// isRootScope matches the canonical :root block and the alternate
// root-class block.
func isRootScope(sel css.Selector, opts Options) bool {
	if sel.Complex || len(sel.Parts) != 1 {
		return false
	}
	if sel.First().Element == ":root" {
		return true
	}
	return opts.AltRootClass != "" && sel.BaseClass() == opts.AltRootClass
}

// colorValuePrefixes mark values that are colors regardless of name.
var colorValuePrefixes = []string{"#", "rgb(", "rgba(", "hsl(", "hsla(", "oklch(", "color("}

// namedColors covers the common keyword colors seen in practice.
var namedColors = map[string]bool{
	"black": true, "white": true, "red": true, "green": true, "blue": true,
	"gray": true, "grey": true, "transparent": true, "currentcolor": true,
}

// classify decides color vs font-family by name and value heuristics.
// Anything inconclusive defaults to color - in scraped design systems the
// vast majority of root custom properties are colors.
func classify(name, value string) Kind {
	lowName := strings.ToLower(name)
	lowValue := strings.ToLower(strings.TrimSpace(value))

	if strings.Contains(lowName, "font") || strings.Contains(lowName, "family") {
		return KindFontFamily
	}
	for _, p := range colorValuePrefixes {
		if strings.HasPrefix(lowValue, p) {
			return KindColor
		}
	}
	if namedColors[lowValue] {
		return KindColor
	}
	// A quoted family list reads as a font stack.
	if strings.Contains(lowValue, ",") && (strings.Contains(lowValue, "serif") ||
		strings.Contains(lowValue, "sans") || strings.Contains(lowValue, `"`) ||
		strings.Contains(lowValue, "'")) {
		return KindFontFamily
	}
	return KindColor
}
