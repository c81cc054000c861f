// Package css is the stylesheet scanning layer shared by section
// extraction, token extraction and routing. It parses CSS text with the
// tdewolff grammar parser into a flat item list preserving source order,
// keeping enough selector structure for class-based matching while marking
// anything it cannot classify as complex instead of dropping it.
package css

import (
	"fmt"
	"strings"
)

// Decl is a single property declaration with its raw value text.
type Decl struct {
	Prop  string
	Value string
}

// SelectorPart is one compound step of a selector chain: an optional
// element plus zero or more classes, e.g. "div.card.dark".
type SelectorPart struct {
	Element string
	Classes []string
}

// Selector is a parsed selector. Parts are the descendant chain left to
// right; Pseudo is the pseudo-class or pseudo-element on the final part
// without leading colons ("hover", "before"). Complex marks selectors with
// combinators, attribute matchers or anything else outside the supported
// shape - their raw text is preserved for embed routing.
type Selector struct {
	Raw     string
	Parts   []SelectorPart
	Pseudo  string
	Complex bool
}

// IsSimple reports whether the selector resolved into at least one part.
func (s Selector) IsSimple() bool {
	return !s.Complex && len(s.Parts) > 0
}

// Last returns the final part of the chain.
func (s Selector) Last() SelectorPart {
	if len(s.Parts) == 0 {
		return SelectorPart{}
	}
	return s.Parts[len(s.Parts)-1]
}

// First returns the leading part of the chain.
func (s Selector) First() SelectorPart {
	if len(s.Parts) == 0 {
		return SelectorPart{}
	}
	return s.Parts[0]
}

// BaseClass returns the first class of the leading part, the grouping key
// for style emission.
func (s Selector) BaseClass() string {
	first := s.First()
	if len(first.Classes) == 0 {
		return ""
	}
	return first.Classes[0]
}

// IsCompound reports whether the leading part stacks multiple classes
// (".a.b"), the combo/modifier shape.
func (s Selector) IsCompound() bool {
	return len(s.Parts) == 1 && len(s.First().Classes) > 1
}

// ReferencesAnyClass reports whether any part of the chain names one of the
// given classes.
func (s Selector) ReferencesAnyClass(classes map[string]bool) bool {
	for _, part := range s.Parts {
		for _, c := range part.Classes {
			if classes[c] {
				return true
			}
		}
	}
	return false
}

// MediaQuery is a parsed @media condition. Only pixel width bounds are
// interpreted; everything else stays in Raw.
type MediaQuery struct {
	Raw      string
	MinWidth int // 0 when absent
	MaxWidth int // 0 when absent
}

// Rule is one ruleset: a single parsed selector plus its declarations.
// Grouped selectors are split into one Rule per selector at parse time.
// Custom holds root-scope custom-property declarations ("--name: value")
// which are not regular declarations in the consumer model.
type Rule struct {
	Selector Selector
	Decls    []Decl
	Custom   []Decl
}

// Decl returns the raw value for a property name.
func (r Rule) Decl(name string) (string, bool) {
	for _, d := range r.Decls {
		if d.Prop == name {
			return d.Value, true
		}
	}
	return "", false
}

// Text re-serializes the rule to canonical CSS text. Identical rules
// produce identical text, which is what section CSS dedupe keys on.
func (r Rule) Text() string {
	var sb strings.Builder
	sb.WriteString(r.Selector.Raw)
	sb.WriteString(" { ")
	for _, d := range r.Custom {
		fmt.Fprintf(&sb, "%s: %s; ", d.Prop, d.Value)
	}
	for _, d := range r.Decls {
		fmt.Fprintf(&sb, "%s: %s; ", d.Prop, d.Value)
	}
	sb.WriteString("}")
	return sb.String()
}

// MediaBlock is an @media block with its nested rules.
type MediaBlock struct {
	Query MediaQuery
	Rules []Rule
}

// Text re-serializes the media block wrapped around the given rules. When
// rules is nil the block's own rules are used.
func (m MediaBlock) Text(rules []Rule) string {
	if rules == nil {
		rules = m.Rules
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "@media %s { ", m.Query.Raw)
	for _, r := range rules {
		sb.WriteString(r.Text())
		sb.WriteString(" ")
	}
	sb.WriteString("}")
	return sb.String()
}

// Keyframes is an @keyframes block kept as raw body text; the consumer can
// only carry it verbatim.
type Keyframes struct {
	Name string
	Body string
}

// Text re-serializes the keyframes block.
func (k Keyframes) Text() string {
	return "@keyframes " + k.Name + " { " + k.Body + " }"
}

// FontFace is an @font-face declaration.
type FontFace struct {
	Family string
	Src    string
	Style  string
	Weight string
}

// StylesheetItem is a single top-level stylesheet item; exactly one field
// is non-nil.
type StylesheetItem struct {
	Rule      *Rule
	Media     *MediaBlock
	Keyframes *Keyframes
	FontFace  *FontFace
	Import    *string
}

// Stylesheet is a parsed stylesheet in source order.
type Stylesheet struct {
	Items    []StylesheetItem
	Warnings []string
}

// Rules returns all top-level rules in source order.
func (s *Stylesheet) Rules() []Rule {
	var rules []Rule
	for _, item := range s.Items {
		if item.Rule != nil {
			rules = append(rules, *item.Rule)
		}
	}
	return rules
}

// MediaBlocks returns all @media blocks in source order.
func (s *Stylesheet) MediaBlocks() []MediaBlock {
	var blocks []MediaBlock
	for _, item := range s.Items {
		if item.Media != nil {
			blocks = append(blocks, *item.Media)
		}
	}
	return blocks
}

// ScopedRule is a rule with its media scope (nil for top-level rules).
type ScopedRule struct {
	Rule  Rule
	Media *MediaQuery
}

// AllRules returns top-level rules followed by rules nested in media
// blocks, each paired with its owning query.
func (s *Stylesheet) AllRules() []ScopedRule {
	var out []ScopedRule
	for _, item := range s.Items {
		switch {
		case item.Rule != nil:
			out = append(out, ScopedRule{Rule: *item.Rule})
		case item.Media != nil:
			for _, r := range item.Media.Rules {
				q := item.Media.Query
				out = append(out, ScopedRule{Rule: r, Media: &q})
			}
		}
	}
	return out
}

// KeyframesByName returns the keyframes block with the given name.
func (s *Stylesheet) KeyframesByName(name string) (Keyframes, bool) {
	for _, item := range s.Items {
		if item.Keyframes != nil && item.Keyframes.Name == name {
			return *item.Keyframes, true
		}
	}
	return Keyframes{}, false
}

// FontFaces returns all @font-face declarations with a non-empty family.
func (s *Stylesheet) FontFaces() []FontFace {
	var faces []FontFace
	for _, item := range s.Items {
		if item.FontFace != nil && item.FontFace.Family != "" {
			faces = append(faces, *item.FontFace)
		}
	}
	return faces
}

// Imports returns all @import URLs in source order.
func (s *Stylesheet) Imports() []string {
	var urls []string
	for _, item := range s.Items {
		if item.Import != nil {
			urls = append(urls, *item.Import)
		}
	}
	return urls
}

// RulesBySelector returns all top-level rules whose raw selector matches.
func (s *Stylesheet) RulesBySelector(selector string) []Rule {
	var matches []Rule
	for _, item := range s.Items {
		if item.Rule != nil && item.Rule.Selector.Raw == selector {
			matches = append(matches, *item.Rule)
		}
	}
	return matches
}
