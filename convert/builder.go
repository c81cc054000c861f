package convert

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
	"github.com/Maria-the2nd/flow-stach-sub004/page"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

// BuildOptions configures the deterministic graph builder.
type BuildOptions struct {
	// IDPrefix seeds sequential node/style identifiers; empty means uuids.
	IDPrefix  string
	Namespace string
	Vocab     webflow.Vocabulary
	Tracer    TracerOptions
}

// Builder converts one section's markup and CSS into a candidate document.
// The builder never fails: the worst case is a minimal valid document with
// a single empty block.
type Builder struct {
	log    *zap.Logger
	parser *css.Parser
}

// NewBuilder creates a graph builder.
func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{log: log.Named("builder"), parser: css.NewParser(log)}
}

// nodeTypes maps source tags onto consumer node types; anything absent is a
// generic block.
var nodeTypes = map[string]string{
	"h1": webflow.NodeHeading, "h2": webflow.NodeHeading, "h3": webflow.NodeHeading,
	"h4": webflow.NodeHeading, "h5": webflow.NodeHeading, "h6": webflow.NodeHeading,
	"p":  webflow.NodeParagraph,
	"a":  webflow.NodeLink,
	"img": webflow.NodeImage,
	"ul": webflow.NodeList, "ol": webflow.NodeList,
	"li": webflow.NodeListItem,
}

// skippedTags never become nodes.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"meta": true, "link": true, "head": true, "title": true, "iframe": true,
}

// build state for one section.
type buildState struct {
	doc    *webflow.Document
	prefix string
	seq    int
	styles map[string]int // class name -> style index
	embeds []string
	vocab  webflow.Vocabulary
	ns     string
}

// BuildSection converts one section deterministically. Returned fixes list
// the placeholder patches applied by post-generation validation.
func (b *Builder) BuildSection(sec page.Section, opts BuildOptions) (*webflow.Document, []string) {
	st := &buildState{
		doc:    webflow.NewDocument(),
		prefix: opts.IDPrefix,
		styles: map[string]int{},
		vocab:  opts.Vocab,
		ns:     opts.Namespace,
	}

	root := parseFragmentRoot(sec.HTML)
	if root != nil {
		b.walk(root, st)
	}
	if len(st.doc.Payload.Nodes) == 0 {
		// Minimal valid document so the fallback contract always holds.
		st.doc.Payload.Nodes = append(st.doc.Payload.Nodes, webflow.Node{
			ID:   st.nextID(),
			Type: webflow.NodeBlock,
			Tag:  "div",
		})
		b.log.Debug("Section produced no nodes, emitting minimal block", zap.String("section", sec.Name))
	}

	b.buildStyles(sec, st, opts)

	// Node class lists reference style identifiers, not raw class names.
	// Names without a matching style stay put; the safety gate closes that
	// invariant by synthesizing empty styles.
	for i := range st.doc.Payload.Nodes {
		n := &st.doc.Payload.Nodes[i]
		for j, class := range n.Classes {
			if idx, ok := st.styles[class]; ok {
				n.Classes[j] = st.doc.Payload.Styles[idx].ID
			}
		}
	}

	if len(st.embeds) > 0 {
		embedID := st.nextID()
		st.doc.Payload.Nodes = append(st.doc.Payload.Nodes, webflow.Node{
			ID:   embedID,
			Type: webflow.NodeEmbed,
			Tag:  "div",
			Data: &webflow.NodeData{
				Tag:   "div",
				Embed: &webflow.EmbedData{Type: "css", Meta: webflow.EmbedMeta{CSS: strings.Join(st.embeds, "\n")}},
			},
		})
		rootNode := &st.doc.Payload.Nodes[0]
		rootNode.Children = append(rootNode.Children, embedID)
	}

	fixes := ValidateDocument(st.doc)
	b.log.Debug("Built section",
		zap.String("section", sec.Name),
		zap.Int("nodes", len(st.doc.Payload.Nodes)),
		zap.Int("styles", len(st.doc.Payload.Styles)),
		zap.Int("fixes", len(fixes)))
	return st.doc, fixes
}

// parseFragmentRoot parses markup tolerantly and returns the first element
// under body.
func parseFragmentRoot(markup string) *html.Node {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil || len(nodes) == 0 {
		return nil
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n
		}
	}
	return nodes[0]
}

// walk emits the flat node list, returning the created node id ("" when the
// subtree produced nothing).
func (b *Builder) walk(n *html.Node, st *buildState) string {
	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return ""
		}
		id := st.nextID()
		st.doc.Payload.Nodes = append(st.doc.Payload.Nodes, webflow.Node{
			ID:   id,
			Text: true,
			V:    collapseWhitespace(n.Data),
		})
		return id

	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skippedTags[tag] {
			return ""
		}
		id := st.nextID()
		node := webflow.Node{
			ID:   id,
			Type: nodeTypes[tag],
			Tag:  tag,
		}
		if node.Type == "" {
			node.Type = webflow.NodeBlock
		}
		node.Classes = attrClasses(n)
		node.Data = elementData(n, tag)

		// Reserve the slot before descending so parents precede children.
		idx := len(st.doc.Payload.Nodes)
		st.doc.Payload.Nodes = append(st.doc.Payload.Nodes, node)

		var children []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if childID := b.walk(c, st); childID != "" {
				children = append(children, childID)
			}
		}
		st.doc.Payload.Nodes[idx].Children = children
		return id

	default:
		return ""
	}
}

// nextID returns a sequential prefixed id, or a uuid when no prefix is set.
func (st *buildState) nextID() string {
	if st.prefix == "" {
		return uuid.NewString()
	}
	st.seq++
	return fmt.Sprintf("%s-%d", st.prefix, st.seq)
}

// attrClasses returns the element's class list.
func attrClasses(n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

// attrValue returns a named attribute value.
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// elementData populates the element-specific data bag: anchor behavior,
// image attributes and preserved data-/aria-/id attributes.
func elementData(n *html.Node, tag string) *webflow.NodeData {
	data := &webflow.NodeData{Tag: tag}
	used := false

	switch tag {
	case "a":
		href := attrValue(n, "href")
		data.Link = &webflow.LinkData{
			Mode:   linkMode(href),
			URL:    href,
			Target: attrValue(n, "target"),
		}
		used = true
	case "img":
		data.Attr = &webflow.AttrData{
			Src:     attrValue(n, "src"),
			Alt:     attrValue(n, "alt"),
			Loading: attrValue(n, "loading"),
		}
		used = true
	}

	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, "data-") || strings.HasPrefix(a.Key, "aria-") || a.Key == "id" {
			data.XAttr = append(data.XAttr, webflow.XAttr{Name: a.Key, Value: a.Val})
			used = true
		}
	}
	if !used {
		return nil
	}
	return data
}

// linkMode derives the anchor mode from the href shape.
func linkMode(href string) string {
	switch {
	case strings.HasPrefix(href, "mailto:"):
		return "email"
	case strings.HasPrefix(href, "tel:"):
		return "phone"
	case strings.HasPrefix(href, "#"):
		return "inner"
	default:
		return "external"
	}
}

// collapseWhitespace folds whitespace runs in a text value.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// buildStyles parses the section CSS, routes every rule and emits the
// native side as styles, combo modifiers and variants; the embedded side
// accumulates for the embed node.
func (b *Builder) buildStyles(sec page.Section, st *buildState, opts BuildOptions) {
	if strings.TrimSpace(sec.CSS) == "" {
		return
	}
	sheet := b.parser.Parse([]byte(sec.CSS), "section "+sec.Name)
	tracer := NewTracer(opts.Vocab, opts.Tracer, b.log)

	for _, scoped := range sheet.AllRules() {
		trace := tracer.TraceRule(scoped)
		if trace.Embed != "" {
			st.embeds = append(st.embeds, trace.Embed)
		}
		if trace.Destination == DestEmbed || trace.Native == "" {
			continue
		}
		b.applyNative(scoped.Rule, trace, st)
	}
	for _, item := range sheet.Items {
		if item.Keyframes != nil {
			st.embeds = append(st.embeds, item.Keyframes.Text())
		}
	}
}

// applyNative attaches a rule's native snippet to the right style slot:
// base styleLess, combo modifier, or a variant keyed by the vocabulary.
func (b *Builder) applyNative(rule css.Rule, trace RouteTrace, st *buildState) {
	sel := rule.Selector

	// The style the properties land on is the last class in the chain; the
	// leading part decides combo relationships.
	targetClass := ""
	if last := sel.Last(); len(last.Classes) > 0 {
		targetClass = last.Classes[len(last.Classes)-1]
	}
	if targetClass == "" {
		// Bare tag rules have no class to hang a style on.
		st.embeds = append(st.embeds, embedText(sel.Raw, rule.Decls, nil))
		return
	}

	targetIdx := st.ensureStyle(targetClass)

	// Compound selector: last class is a combo/modifier of the base.
	if sel.IsCompound() && sel.BaseClass() != targetClass {
		baseIdx := st.ensureStyle(sel.BaseClass())
		base := &st.doc.Payload.Styles[baseIdx]
		st.doc.Payload.Styles[targetIdx].Comb = st.vocab.CombMarker
		if !contains(base.Children, targetClass) {
			base.Children = append(base.Children, targetClass)
		}
	}
	style := &st.doc.Payload.Styles[targetIdx]

	key := b.variantKey(sel, trace, st)
	switch {
	case key == "":
		style.StyleLess = mergeStyleLess(style.StyleLess, trace.Native)
	default:
		v := style.Variants[key]
		v.StyleLess = mergeStyleLess(v.StyleLess, trace.Native)
		style.Variants[key] = v
	}
}

// variantKey resolves the vocabulary key for a rule's scope: "" for base,
// a breakpoint key, or a hover key.
func (b *Builder) variantKey(sel css.Selector, trace RouteTrace, st *buildState) string {
	bp := ""
	if trace.Breakpoint != nil {
		bp = trace.Breakpoint.Key
	}
	if sel.Pseudo == "hover" {
		if key, ok := st.vocab.HoverKey(bp); ok {
			return key
		}
		// Hover tier missing from an injected vocabulary: drop to base.
		b.log.Debug("No hover key for breakpoint, using base", zap.String("breakpoint", bp))
	}
	return bp
}

// ensureStyle returns the index of the style for a class, creating it on
// first use. Indices stay valid across appends where pointers would not.
func (st *buildState) ensureStyle(class string) int {
	if idx, ok := st.styles[class]; ok {
		return idx
	}
	idx := len(st.doc.Payload.Styles)
	st.styles[class] = idx
	st.doc.Payload.Styles = append(st.doc.Payload.Styles, webflow.NewStyle(st.nextID(), class, st.ns))
	return idx
}

// mergeStyleLess appends properties onto an existing styleLess string.
func mergeStyleLess(existing, extra string) string {
	if existing == "" {
		return extra
	}
	if extra == "" {
		return existing
	}
	return existing + "; " + extra
}

// contains reports membership in a small string slice.
func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// placeholderImage stands in for image nodes whose source was lost.
const placeholderImage = "https://placehold.co/600x400"

// ValidateDocument patches link and image nodes missing their required data
// sub-object with explicit placeholders, recording each patch instead of
// discarding the node.
func ValidateDocument(doc *webflow.Document) []string {
	var fixes []string
	for i := range doc.Payload.Nodes {
		n := &doc.Payload.Nodes[i]
		switch n.Type {
		case webflow.NodeLink:
			if n.Data == nil || n.Data.Link == nil {
				if n.Data == nil {
					n.Data = &webflow.NodeData{Tag: n.Tag}
				}
				n.Data.Link = &webflow.LinkData{Mode: "external", URL: "#"}
				fixes = append(fixes, "link node "+n.ID+" patched with placeholder href")
			}
		case webflow.NodeImage:
			if n.Data == nil || n.Data.Attr == nil || n.Data.Attr.Src == "" {
				if n.Data == nil {
					n.Data = &webflow.NodeData{Tag: n.Tag}
				}
				if n.Data.Attr == nil {
					n.Data.Attr = &webflow.AttrData{}
				}
				if n.Data.Attr.Src == "" {
					n.Data.Attr.Src = placeholderImage
				}
				fixes = append(fixes, "image node "+n.ID+" patched with placeholder source")
			}
		}
	}
	return fixes
}
