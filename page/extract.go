package page

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
)

// ExtractOptions controls which base rules are pulled alongside class
// matches and whether identical rule text is emitted once.
type ExtractOptions struct {
	IncludeRoot  bool // :root custom-property blocks
	IncludeReset bool // * reset rules
	IncludeBase  bool // body, html and img base rules
	Dedupe       bool
}

// DefaultExtractOptions returns the stock extraction configuration.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		IncludeRoot:  true,
		IncludeReset: false,
		IncludeBase:  true,
		Dedupe:       true,
	}
}

// Extractor pulls a section's matching CSS subset out of a parsed
// stylesheet.
type Extractor struct {
	log *zap.Logger
}

// NewExtractor creates a CSS extractor.
func NewExtractor(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log.Named("css-extractor")}
}

// ExtractCSS returns the CSS text matching the section: simple class rules,
// compound rules, descendant rules, pseudo variants, grouped bare-tag rules
// for tags the section uses, media queries whose body references a gathered
// class, and keyframes named by an animation property already pulled in.
func (e *Extractor) ExtractCSS(sec Section, sheet *css.Stylesheet, opts ExtractOptions) string {
	classes := make(map[string]bool, len(sec.ClassNames))
	for _, c := range sec.ClassNames {
		classes[c] = true
	}
	tags := TagNames(sec.HTML)

	var (
		out        []string
		seen       = map[string]bool{}
		animations []string
	)
	emit := func(text string) {
		if opts.Dedupe {
			if seen[text] {
				return
			}
			seen[text] = true
		}
		out = append(out, text)
	}

	for _, item := range sheet.Items {
		if item.Rule == nil {
			continue
		}
		rule := *item.Rule
		if !e.ruleMatches(rule, classes, tags, opts) {
			continue
		}
		emit(rule.Text())
		animations = append(animations, animationNames(rule)...)
	}

	// Media queries: keep only the nested rules that reference a gathered
	// class, preserving the query wrapper.
	for _, mb := range sheet.MediaBlocks() {
		var matched []css.Rule
		for _, rule := range mb.Rules {
			if rule.Selector.ReferencesAnyClass(classes) {
				matched = append(matched, rule)
				animations = append(animations, animationNames(rule)...)
			}
		}
		if len(matched) > 0 {
			emit(mb.Text(matched))
		}
	}

	// Keyframes named by an animation property already pulled in.
	for _, name := range animations {
		if kf, ok := sheet.KeyframesByName(name); ok {
			emit(kf.Text())
		}
	}

	e.log.Debug("Extracted section CSS",
		zap.String("section", sec.Name),
		zap.Int("classes", len(classes)),
		zap.Int("rules", len(out)))
	return strings.Join(out, "\n")
}

// ruleMatches decides whether a top-level rule belongs to the section.
func (e *Extractor) ruleMatches(rule css.Rule, classes map[string]bool, tags map[string]bool, opts ExtractOptions) bool {
	sel := rule.Selector

	// Base and reset rules ride on the option toggles.
	if !sel.Complex && len(sel.Parts) == 1 && len(sel.First().Classes) == 0 {
		switch sel.First().Element {
		case ":root":
			return opts.IncludeRoot
		case "*":
			return opts.IncludeReset
		case "html", "body", "img":
			return opts.IncludeBase
		}
	}

	if sel.Complex {
		// Complex selectors still belong to the section when their raw text
		// names one of its classes; routing decides native vs embed later.
		for c := range classes {
			if strings.Contains(sel.Raw, "."+c) {
				return true
			}
		}
		return false
	}

	// Class-driven match anywhere in the chain covers simple, compound,
	// descendant and pseudo variants.
	if sel.ReferencesAnyClass(classes) {
		return true
	}

	// Grouped bare-tag rules (h1,h2,h3 were split at parse time) match when
	// the section uses the tag.
	if len(sel.Parts) == 1 && len(sel.First().Classes) == 0 && sel.First().Element != "" {
		return tags[sel.First().Element]
	}
	return false
}

var animationNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*`)

// animationNames extracts referenced keyframes names from animation
// properties.
func animationNames(rule css.Rule) []string {
	var names []string
	if v, ok := rule.Decl("animation-name"); ok {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" && name != "none" {
				names = append(names, name)
			}
		}
	}
	if v, ok := rule.Decl("animation"); ok {
		// Shorthand: the first identifier that is not a keyword is the name.
		for _, part := range strings.Split(v, ",") {
			for _, field := range strings.Fields(part) {
				if !animationNamePattern.MatchString(field) || animationKeyword(field) {
					continue
				}
				names = append(names, field)
				break
			}
		}
	}
	return names
}

// animationKeyword filters shorthand fields that cannot be keyframes names.
func animationKeyword(s string) bool {
	switch strings.ToLower(s) {
	case "linear", "ease", "ease-in", "ease-out", "ease-in-out", "infinite",
		"normal", "reverse", "alternate", "alternate-reverse", "none",
		"forwards", "backwards", "both", "running", "paused", "step-start",
		"step-end":
		return true
	}
	return false
}
