// Package page splits a full page into semantic sections and extracts the
// CSS subset each section needs. Detection works on the raw markup text so
// section slices stay byte-identical to the source; tolerant DOM parsing is
// reserved for the graph builder.
package page

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Section is one detected region of a page. Immutable after detection.
type Section struct {
	ID           string
	Name         string
	Tag          string
	PrimaryClass string
	HTML         string
	ClassNames   []string
	CSS          string
}

// DetectOptions controls section detection.
type DetectOptions struct {
	// MarkerPrefix is the comment marker claiming the next semantic element,
	// as in <!-- ws:section hero -->.
	MarkerPrefix string
	// ImplicitSuffix matches container divs by leading class suffix.
	ImplicitSuffix string
	// ImplicitNames are exact leading-class names treated as sections.
	ImplicitNames []string
	// Implicit enables the container-div pass.
	Implicit bool
}

// DefaultDetectOptions returns the stock detection configuration.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		MarkerPrefix:   "ws:section",
		ImplicitSuffix: "-section",
		ImplicitNames:  []string{"section", "hero", "banner"},
		Implicit:       true,
	}
}

// semanticTags are swept in pass two, in this order.
var semanticTags = []string{"header", "nav", "section", "footer"}

// Detector finds sections in page markup.
type Detector struct {
	log *zap.Logger
}

// NewDetector creates a section detector.
func NewDetector(log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{log: log.Named("section-detector")}
}

var (
	commentPattern   = regexp.MustCompile(`<!--([\s\S]*?)-->`)
	openTagPattern   = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9-]*)((?:\s[^>]*)?)>`)
	classAttrPattern = regexp.MustCompile(`class\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	titlePattern     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// Detect runs the detection passes over page markup. Zero matches in any
// pass is a valid empty result.
func (d *Detector) Detect(pageHTML string, opts DetectOptions) []Section {
	var (
		sections []Section
		claimed  []span
	)

	// Pass one: explicit marker comments claiming the following element.
	for _, m := range commentPattern.FindAllStringSubmatchIndex(pageHTML, -1) {
		comment := strings.TrimSpace(pageHTML[m[2]:m[3]])
		name, ok := markerName(comment, opts.MarkerPrefix)
		if !ok {
			continue
		}
		sec, sp, ok := d.claimNextElement(pageHTML, m[1], name)
		if !ok {
			continue
		}
		sections = append(sections, sec)
		claimed = append(claimed, sp)
		d.log.Debug("Marker section", zap.String("name", name), zap.String("tag", sec.Tag))
	}

	// Pass two: semantic tags not already claimed.
	for _, tag := range semanticTags {
		for _, sp := range d.findElements(pageHTML, tag) {
			if overlaps(sp, claimed) {
				continue
			}
			sec := d.makeSection(pageHTML, sp, "")
			sections = append(sections, sec)
			claimed = append(claimed, sp)
			d.log.Debug("Semantic section", zap.String("tag", tag), zap.String("name", sec.Name))
		}
	}

	// Pass three: container divs whose leading class matches the pattern.
	if opts.Implicit {
		for _, sp := range d.findElements(pageHTML, "div") {
			if overlaps(sp, claimed) {
				continue
			}
			leading := leadingClass(pageHTML[sp.start:sp.end])
			if leading == "" || !implicitMatch(leading, opts) {
				continue
			}
			sec := d.makeSection(pageHTML, sp, "")
			sections = append(sections, sec)
			claimed = append(claimed, sp)
			d.log.Debug("Implicit section", zap.String("class", leading))
		}
	}

	// Reassign ordinal ids in source order.
	sortByStart(sections, claimed)
	for i := range sections {
		sections[i].ID = fmt.Sprintf("section-%d", i+1)
		if sections[i].Name == "" {
			sections[i].Name = defaultName(sections[i], i)
		}
	}
	return sections
}

// Title extracts the page title, empty when absent.
func Title(pageHTML string) string {
	if m := titlePattern.FindStringSubmatch(pageHTML); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// span is a half-open byte range into the page markup.
type span struct {
	start, end int
}

// markerName parses a marker comment body like "ws:section hero" or
// "ws:section: hero".
func markerName(comment, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(comment, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(comment, prefix)
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), ":"))
	if rest == "" {
		return "", false
	}
	return rest, true
}

// claimNextElement claims the first semantic element opening after pos.
func (d *Detector) claimNextElement(pageHTML string, pos int, name string) (Section, span, bool) {
	m := openTagPattern.FindStringSubmatchIndex(pageHTML[pos:])
	if m == nil {
		return Section{}, span{}, false
	}
	tag := strings.ToLower(pageHTML[pos+m[2] : pos+m[3]])
	start := pos + m[0]
	_, end, ok := extractElement(pageHTML, start, tag)
	if !ok {
		d.log.Debug("Skipping unclosed marker element", zap.String("tag", tag), zap.String("name", name))
		return Section{}, span{}, false
	}
	sec := d.makeSection(pageHTML, span{start, end}, name)
	return sec, span{start, end}, true
}

// findElements returns spans of all resolvable elements with the given tag.
func (d *Detector) findElements(pageHTML, tag string) []span {
	var spans []span
	lower := strings.ToLower(pageHTML)
	needle := "<" + tag
	for idx := 0; ; {
		rel := strings.Index(lower[idx:], needle)
		if rel < 0 {
			break
		}
		start := idx + rel
		after := start + len(needle)
		// Reject partial matches like <sectional>.
		if after < len(pageHTML) {
			c := pageHTML[after]
			if c != ' ' && c != '>' && c != '\t' && c != '\n' && c != '\r' && c != '/' {
				idx = after
				continue
			}
		}
		_, end, ok := extractElement(pageHTML, start, tag)
		if !ok {
			// Unresolvable closer: skip the element, never corrupt it.
			d.log.Debug("Skipping unclosed element", zap.String("tag", tag), zap.Int("offset", start))
			idx = after
			continue
		}
		spans = append(spans, span{start, end})
		idx = end
	}
	return spans
}

// extractElement returns the full markup of the element opening at start,
// counting nested same-tag open/close pairs so sections containing
// same-tagged descendants are not truncated at the first closer.
func extractElement(pageHTML string, start int, tag string) (string, int, bool) {
	lower := strings.ToLower(pageHTML)
	openNeedle := "<" + tag
	closeNeedle := "</" + tag

	gt := strings.IndexByte(pageHTML[start:], '>')
	if gt < 0 {
		return "", 0, false
	}
	// Self-closing open tag.
	if strings.HasSuffix(strings.TrimSpace(pageHTML[start:start+gt]), "/") {
		end := start + gt + 1
		return pageHTML[start:end], end, true
	}

	depth := 1
	pos := start + gt + 1
	for depth > 0 {
		nextOpen := indexTag(lower, openNeedle, pos)
		nextClose := indexTag(lower, closeNeedle, pos)
		if nextClose < 0 {
			return "", 0, false
		}
		if nextOpen >= 0 && nextOpen < nextClose {
			depth++
			pos = nextOpen + len(openNeedle)
			continue
		}
		depth--
		cgt := strings.IndexByte(pageHTML[nextClose:], '>')
		if cgt < 0 {
			return "", 0, false
		}
		pos = nextClose + cgt + 1
	}
	return pageHTML[start:pos], pos, true
}

// indexTag finds the next occurrence of needle at pos that is a real tag
// boundary, not a prefix of a longer tag name.
func indexTag(lower, needle string, pos int) int {
	for {
		rel := strings.Index(lower[pos:], needle)
		if rel < 0 {
			return -1
		}
		at := pos + rel
		after := at + len(needle)
		if after >= len(lower) {
			return -1
		}
		switch lower[after] {
		case ' ', '>', '\t', '\n', '\r', '/':
			return at
		}
		pos = after
	}
}

// makeSection builds a Section record from a claimed span.
func (d *Detector) makeSection(pageHTML string, sp span, name string) Section {
	markup := pageHTML[sp.start:sp.end]
	tag := ""
	if m := openTagPattern.FindStringSubmatch(markup); m != nil {
		tag = strings.ToLower(m[1])
	}
	return Section{
		Name:         name,
		Tag:          tag,
		PrimaryClass: leadingClass(markup),
		HTML:         markup,
		ClassNames:   ClassNames(markup),
	}
}

// leadingClass returns the first class of the element's own class attribute.
func leadingClass(markup string) string {
	m := openTagPattern.FindStringSubmatch(markup)
	if m == nil {
		return ""
	}
	cm := classAttrPattern.FindStringSubmatch(m[2])
	if cm == nil {
		return ""
	}
	val := cm[1]
	if val == "" {
		val = cm[2]
	}
	fields := strings.Fields(val)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ClassNames gathers every class referenced anywhere within the markup, in
// first-seen order.
func ClassNames(markup string) []string {
	var (
		names []string
		seen  = map[string]bool{}
	)
	for _, m := range classAttrPattern.FindAllStringSubmatch(markup, -1) {
		val := m[1]
		if val == "" {
			val = m[2]
		}
		for _, c := range strings.Fields(val) {
			if !seen[c] {
				seen[c] = true
				names = append(names, c)
			}
		}
	}
	return names
}

// TagNames gathers every element tag used within the markup.
func TagNames(markup string) map[string]bool {
	tags := map[string]bool{}
	for _, m := range openTagPattern.FindAllStringSubmatch(markup, -1) {
		tags[strings.ToLower(m[1])] = true
	}
	return tags
}

// implicitMatch applies the container-class pattern.
func implicitMatch(class string, opts DetectOptions) bool {
	if opts.ImplicitSuffix != "" && strings.HasSuffix(class, opts.ImplicitSuffix) {
		return true
	}
	for _, n := range opts.ImplicitNames {
		if class == n {
			return true
		}
	}
	return false
}

// overlaps reports whether sp intersects any claimed span.
func overlaps(sp span, claimed []span) bool {
	for _, c := range claimed {
		if sp.start < c.end && c.start < sp.end {
			return true
		}
	}
	return false
}

// sortByStart orders sections by their source position. Spans and sections
// are parallel slices built in the same order.
func sortByStart(sections []Section, spans []span) {
	for i := 1; i < len(sections); i++ {
		for j := i; j > 0 && spans[j-1].start > spans[j].start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
			sections[j-1], sections[j] = sections[j], sections[j-1]
		}
	}
}

// defaultName derives a display name when no marker supplied one.
func defaultName(sec Section, ordinal int) string {
	if sec.PrimaryClass != "" {
		return sec.PrimaryClass
	}
	if sec.Tag != "" {
		return fmt.Sprintf("%s-%d", sec.Tag, ordinal+1)
	}
	return fmt.Sprintf("section-%d", ordinal+1)
}
