// Package styleprops parses the consumer's inline style syntax: property
// declarations delimited by semicolons, no braces or selectors. The parser
// is total - malformed declarations are dropped with a warning, never an
// error, so however much of a style survives is still usable downstream.
package styleprops

import (
	"strings"
)

// Prop is one validated property/value pair.
type Prop struct {
	Name  string
	Value string
}

// Props is an ordered property list. Order is first-seen; a duplicate name
// overwrites the value in place, keeping serialize-parse round trips stable.
type Props []Prop

// deniedProps are dropped silently: they show up constantly in scraped CSS
// and the consumer format has no use for them, so warning on each would
// drown real problems.
var deniedProps = map[string]bool{
	"-webkit-font-smoothing":      true,
	"-moz-osx-font-smoothing":     true,
	"-webkit-tap-highlight-color": true,
	"text-size-adjust":            true,
	"-webkit-text-size-adjust":    true,
	"appearance":                  true,
	"-webkit-appearance":          true,
	"-moz-appearance":             true,
	"speak":                       true,
	"content-visibility":          true,
}

// propAliases rewrites property names the consumer spells differently.
var propAliases = map[string]string{
	"gap":        "grid-gap",
	"column-gap": "grid-column-gap",
	"row-gap":    "grid-row-gap",
}

// Parse splits an inline style string into validated property pairs plus
// the warnings accumulated while dropping malformed declarations.
func Parse(styleLess string) (Props, []string) {
	var (
		props    Props
		warnings []string
	)
	for _, seg := range strings.Split(styleLess, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, value, found := strings.Cut(seg, ":")
		if !found {
			warnings = append(warnings, "declaration without colon dropped: "+clip(seg))
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)

		if !validPropName(name) {
			warnings = append(warnings, "invalid property name dropped: "+clip(name))
			continue
		}
		if strings.HasPrefix(name, "--") {
			// Custom properties belong to the token system, not styles.
			warnings = append(warnings, "custom property not allowed in style: "+clip(name))
			continue
		}
		if deniedProps[name] {
			continue
		}
		if alias, ok := propAliases[name]; ok {
			name = alias
		}

		value, ok := normalizeValue(name, value, &warnings)
		if !ok {
			continue
		}
		props = props.set(name, value)
	}
	return props, warnings
}

// ParseMap is the map-form accessor for consumers that do not care about
// declaration order.
func ParseMap(styleLess string) (map[string]string, []string) {
	props, warnings := Parse(styleLess)
	return props.Map(), warnings
}

// set overwrites an existing property in place or appends a new one.
func (p Props) set(name, value string) Props {
	for i := range p {
		if p[i].Name == name {
			p[i].Value = value
			return p
		}
	}
	return append(p, Prop{Name: name, Value: value})
}

// Get returns the value for a property name.
func (p Props) Get(name string) (string, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

// Map returns the properties as a plain map.
func (p Props) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, prop := range p {
		m[prop.Name] = prop.Value
	}
	return m
}

// String serializes back to the inline syntax, the inverse of Parse.
func (p Props) String() string {
	var sb strings.Builder
	for i, prop := range p {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(prop.Name)
		sb.WriteString(": ")
		sb.WriteString(prop.Value)
	}
	return sb.String()
}

// validPropName checks the identifier grammar: leading letter, underscore or
// hyphen, then letters, digits, underscores and hyphens only.
func validPropName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '-':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// normalizeValue cleans a declaration value, returning ok=false when the
// value must be discarded.
func normalizeValue(name, value string, warnings *[]string) (string, bool) {
	if cut, found := strings.CutSuffix(value, "!important"); found {
		*warnings = append(*warnings, "!important stripped from "+name)
		value = strings.TrimSpace(cut)
	} else if cut, found := strings.CutSuffix(value, "! important"); found {
		*warnings = append(*warnings, "!important stripped from "+name)
		value = strings.TrimSpace(cut)
	}
	value = collapseSpace(value)

	switch strings.ToLower(value) {
	case "", "nan", "undefined", "null":
		*warnings = append(*warnings, "empty or unusable value dropped for "+name)
		return "", false
	}
	if hasUnresolvedVar(value) {
		*warnings = append(*warnings, "unresolved variable reference dropped for "+name)
		return "", false
	}
	if reason, truncated := truncatedValue(value); truncated {
		*warnings = append(*warnings, "truncated value ("+reason+") dropped for "+name)
		return "", false
	}
	return value, true
}

// collapseSpace folds internal whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// hasUnresolvedVar reports whether the value carries a var() reference with
// no fallback. Such references cannot be satisfied by the destination
// without the token manifest, so the declaration is unusable as a literal
// style; references carrying a fallback stay intact for the remapper.
func hasUnresolvedVar(s string) bool {
	rest := s
	for {
		idx := strings.Index(rest, "var(")
		if idx < 0 {
			return false
		}
		rest = rest[idx+len("var("):]
		depth := 1
		hasFallback := false
		i := 0
		for ; i < len(rest) && depth > 0; i++ {
			switch rest[i] {
			case '(':
				depth++
			case ')':
				depth--
			case ',':
				if depth == 1 {
					hasFallback = true
				}
			}
		}
		if depth > 0 {
			// Unterminated call, caught by the truncation check.
			return false
		}
		if !hasFallback {
			return true
		}
		rest = rest[i:]
	}
}

// truncatedValue detects values that were cut off mid-expression: a trailing
// operator or comma, an unmatched function call, or an odd quote count.
func truncatedValue(s string) (string, bool) {
	switch s[len(s)-1] {
	case ',', '+', '*', '/', '(':
		return "trailing operator", true
	case '-':
		// A bare trailing minus is an operator; a trailing identifier like
		// "x-" is still suspicious enough to drop.
		return "trailing operator", true
	}
	opened, closed := strings.Count(s, "("), strings.Count(s, ")")
	if opened > closed {
		return "unmatched function call", true
	}
	if strings.Count(s, `"`)%2 != 0 {
		return "odd double quote count", true
	}
	if strings.Count(s, "'")%2 != 0 {
		return "odd single quote count", true
	}
	return "", false
}

// clip shortens a fragment for warning text.
func clip(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
