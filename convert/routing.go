// Package convert turns detected sections into candidate documents: the
// deterministic node/style graph builder, the CSS routing tracer its style
// partitioning relies on, the optional generation-service client with its
// mandatory fallback, and the pipeline tying the stages together.
package convert

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
	"github.com/Maria-the2nd/flow-stach-sub004/styleprops"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

// Destination says where a rule's declarations end up.
type Destination string

const (
	DestNative Destination = "native" // representable as style properties
	DestEmbed  Destination = "embed"  // carried as raw CSS
	DestSplit  Destination = "split"  // part native, part embedded
)

// BreakpointRemap records a media-query width mapped onto a supported tier.
type BreakpointRemap struct {
	SourceWidth int
	Key         string
	Rounded     bool
}

// PropertyTransform records a per-property rewrite applied on the native
// side.
type PropertyTransform struct {
	Prop string
	From string
	To   string
}

// RouteTrace is the routing decision for one CSS rule. Diagnostic output
// for tooling, but the Destination and the native/embed partition are
// authoritative for the builder and the safety gate.
type RouteTrace struct {
	Selector    string
	Destination Destination
	Category    string
	Reasons     []string
	Breakpoint  *BreakpointRemap
	Transforms  []PropertyTransform
	Native      string // styleLess snippet of the native side
	Embed       string // raw CSS of the embedded side
}

// TracerOptions configures routing.
type TracerOptions struct {
	// OptOutCategories are rule categories always routed to embeds.
	OptOutCategories []string
	// MaxDeclarations is the complexity threshold above which a rule is
	// embedded wholesale.
	MaxDeclarations int
}

// DefaultTracerOptions returns the stock routing configuration.
func DefaultTracerOptions() TracerOptions {
	return TracerOptions{MaxDeclarations: 40}
}

// Tracer classifies CSS rules as native, embed or split.
type Tracer struct {
	log   *zap.Logger
	vocab webflow.Vocabulary
	opts  TracerOptions
}

// NewTracer creates a routing tracer.
func NewTracer(vocab webflow.Vocabulary, opts TracerOptions, log *zap.Logger) *Tracer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracer{log: log.Named("routing"), vocab: vocab, opts: opts}
}

// unsupportedFunctions cannot be expressed by the consumer's style values.
var unsupportedFunctions = []string{"clamp(", "conic-gradient(", "counter(", "attr(", "env("}

// Trace routes every rule and returns the ordered trace list.
func (t *Tracer) Trace(rules []css.ScopedRule) []RouteTrace {
	traces := make([]RouteTrace, 0, len(rules))
	for _, scoped := range rules {
		traces = append(traces, t.TraceRule(scoped))
	}
	return traces
}

// TraceRule routes a single rule.
func (t *Tracer) TraceRule(scoped css.ScopedRule) RouteTrace {
	rule := scoped.Rule
	trace := RouteTrace{
		Selector: rule.Selector.Raw,
		Category: categorize(rule),
	}

	// Selector-level embeds come first: nothing below can rescue them.
	if rule.Selector.Complex {
		return t.embedAll(trace, rule, scoped.Media, "selector uses combinators or attribute matching")
	}
	if strings.Contains(rule.Selector.Raw, ":has(") {
		return t.embedAll(trace, rule, scoped.Media, "selector uses :has()")
	}
	for _, cat := range t.opts.OptOutCategories {
		if cat == trace.Category {
			return t.embedAll(trace, rule, scoped.Media, "category "+cat+" opted out of native conversion")
		}
	}
	if t.opts.MaxDeclarations > 0 && len(rule.Decls) > t.opts.MaxDeclarations {
		return t.embedAll(trace, rule, scoped.Media,
			fmt.Sprintf("rule exceeds complexity threshold (%d declarations)", len(rule.Decls)))
	}
	if len(rule.Selector.Parts) > 1 && len(rule.Selector.Last().Classes) == 0 {
		return t.embedAll(trace, rule, scoped.Media, "descendant selector targets a bare element")
	}
	if p := rule.Selector.Pseudo; p != "" && p != "hover" {
		return t.embedAll(trace, rule, scoped.Media, "pseudo-state :"+p+" outside the variant vocabulary")
	}

	// Media scope must land on a supported breakpoint for a native variant.
	if scoped.Media != nil {
		if scoped.Media.MaxWidth > 0 {
			key, rounded, ok := t.vocab.NearestBreakpoint(scoped.Media.MaxWidth)
			if ok {
				trace.Breakpoint = &BreakpointRemap{SourceWidth: scoped.Media.MaxWidth, Key: key, Rounded: rounded}
				if rounded {
					trace.Reasons = append(trace.Reasons,
						fmt.Sprintf("breakpoint %dpx rounded to %s", scoped.Media.MaxWidth, key))
				}
			} else {
				return t.embedAll(trace, rule, scoped.Media, "no supported breakpoint tier")
			}
		} else if scoped.Media.MinWidth > 0 {
			return t.embedAll(trace, rule, scoped.Media, "min-width query not representable in a desktop-first tier set")
		} else {
			return t.embedAll(trace, rule, scoped.Media, "media query without width bounds")
		}
	}

	// Declaration-level partition.
	var (
		native styleprops.Props
		embed  []css.Decl
	)
	for _, d := range rule.Decls {
		parsed, warnings := styleprops.Parse(d.Prop + ": " + d.Value)
		if len(parsed) == 0 {
			if len(warnings) > 0 {
				embed = append(embed, d)
				trace.Reasons = append(trace.Reasons, "declaration "+d.Prop+" not native: "+warnings[0])
			}
			// Silently denied properties disappear entirely: expected noise.
			continue
		}
		if fn, bad := unsupportedFunction(d.Value); bad {
			embed = append(embed, d)
			trace.Reasons = append(trace.Reasons, "declaration "+d.Prop+" uses unsupported "+fn)
			continue
		}
		for _, p := range parsed {
			if p.Name != d.Prop {
				trace.Transforms = append(trace.Transforms, PropertyTransform{Prop: d.Prop, From: d.Prop, To: p.Name})
			}
			native = append(native, p)
		}
	}

	switch {
	case len(native) > 0 && len(embed) == 0:
		trace.Destination = DestNative
	case len(native) == 0:
		trace.Destination = DestEmbed
		if len(trace.Reasons) == 0 {
			trace.Reasons = append(trace.Reasons, "no native-representable declarations")
		}
	default:
		trace.Destination = DestSplit
	}

	if len(native) > 0 {
		trace.Native = native.String()
	}
	if len(embed) > 0 {
		trace.Embed = embedText(rule.Selector.Raw, embed, scoped.Media)
	}

	t.log.Debug("Routed rule",
		zap.String("selector", trace.Selector),
		zap.String("destination", string(trace.Destination)),
		zap.Strings("reasons", trace.Reasons))
	return trace
}

// embedAll finalizes a whole-rule embed decision.
func (t *Tracer) embedAll(trace RouteTrace, rule css.Rule, media *css.MediaQuery, reason string) RouteTrace {
	trace.Destination = DestEmbed
	trace.Reasons = append(trace.Reasons, reason)
	trace.Embed = embedText(rule.Selector.Raw, rule.Decls, media)
	t.log.Debug("Routed rule to embed", zap.String("selector", trace.Selector), zap.String("reason", reason))
	return trace
}

// embedText renders the embedded side as raw CSS, re-wrapping the media
// query when present.
func embedText(selector string, decls []css.Decl, media *css.MediaQuery) string {
	var sb strings.Builder
	if media != nil {
		fmt.Fprintf(&sb, "@media %s { ", media.Raw)
	}
	sb.WriteString(selector)
	sb.WriteString(" { ")
	for _, d := range decls {
		fmt.Fprintf(&sb, "%s: %s; ", d.Prop, d.Value)
	}
	sb.WriteString("}")
	if media != nil {
		sb.WriteString(" }")
	}
	return sb.String()
}

// unsupportedFunction reports the first unsupported function in a value.
func unsupportedFunction(value string) (string, bool) {
	low := strings.ToLower(value)
	for _, fn := range unsupportedFunctions {
		if strings.Contains(low, fn) {
			return strings.TrimSuffix(fn, "("), true
		}
	}
	return "", false
}

// categorize buckets a rule by its dominant property group.
func categorize(rule css.Rule) string {
	counts := map[string]int{}
	for _, d := range rule.Decls {
		counts[propertyGroup(d.Prop)]++
	}
	best, bestN := "other", 0
	for g, n := range counts {
		if n > bestN || (n == bestN && g < best) {
			best, bestN = g, n
		}
	}
	return best
}

// propertyGroup maps a property name onto a coarse category.
func propertyGroup(prop string) string {
	switch {
	case strings.HasPrefix(prop, "font") || strings.HasPrefix(prop, "text") ||
		strings.HasPrefix(prop, "letter") || strings.HasPrefix(prop, "line") ||
		prop == "color" || prop == "white-space":
		return "typography"
	case strings.HasPrefix(prop, "margin") || strings.HasPrefix(prop, "padding") ||
		strings.HasPrefix(prop, "grid") || strings.HasPrefix(prop, "flex") ||
		prop == "display" || prop == "position" || prop == "gap" ||
		prop == "top" || prop == "right" || prop == "bottom" || prop == "left" ||
		strings.HasPrefix(prop, "width") || strings.HasPrefix(prop, "height") ||
		strings.HasPrefix(prop, "max-") || strings.HasPrefix(prop, "min-") ||
		strings.HasPrefix(prop, "align") || strings.HasPrefix(prop, "justify") ||
		prop == "overflow" || prop == "z-index":
		return "layout"
	case strings.HasPrefix(prop, "background") || strings.HasPrefix(prop, "border") ||
		strings.HasPrefix(prop, "outline") || prop == "box-shadow" || prop == "opacity":
		return "surface"
	case strings.HasPrefix(prop, "animation") || strings.HasPrefix(prop, "transition") ||
		strings.HasPrefix(prop, "transform"):
		return "motion"
	case strings.HasPrefix(prop, "filter") || strings.HasPrefix(prop, "backdrop"):
		return "effects"
	default:
		return "other"
	}
}
