// Package webflow defines the clipboard interchange document model: the flat
// node tree, reusable styles and the payload envelope the design tool accepts
// on paste. Everything here is plain data - construction and validation live
// in the convert and safety packages.
package webflow

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// PayloadType is the fixed discriminator the consumer checks before anything else.
const PayloadType = "@webflow/XscpData"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Node types. The consumer treats an absent type as a generic block.
const (
	NodeBlock     = "Block"
	NodeHeading   = "Heading"
	NodeParagraph = "Paragraph"
	NodeLink      = "Link"
	NodeImage     = "Image"
	NodeList      = "List"
	NodeListItem  = "ListItem"
	NodeEmbed     = "HtmlEmbed"
)

// XAttr is one preserved source attribute (data-*, aria-*, id).
type XAttr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LinkData describes anchor behavior.
type LinkData struct {
	Mode   string `json:"mode"`
	URL    string `json:"url"`
	Target string `json:"target,omitempty"`
}

// AttrData carries image attributes.
type AttrData struct {
	Src     string `json:"src,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Loading string `json:"loading,omitempty"`
}

// EmbedData carries raw content the target format cannot express natively.
type EmbedData struct {
	Type string    `json:"type,omitempty"`
	Meta EmbedMeta `json:"meta"`
}

// EmbedMeta splits an embed payload by kind.
type EmbedMeta struct {
	HTML string `json:"html,omitempty"`
	CSS  string `json:"css,omitempty"`
	JS   string `json:"js,omitempty"`
}

// NodeData is the element-specific bag on a node.
type NodeData struct {
	Tag   string     `json:"tag,omitempty"`
	Text  bool       `json:"text,omitempty"`
	XAttr []XAttr    `json:"xattr,omitempty"`
	Link  *LinkData  `json:"link,omitempty"`
	Attr  *AttrData  `json:"attr,omitempty"`
	Embed *EmbedData `json:"embed,omitempty"`
}

// Node is one element or text run. Children hold identifiers, never nested
// objects - the tree is flattened and reconstructed by id lookup.
type Node struct {
	ID       string    `json:"_id"`
	Type     string    `json:"type,omitempty"`
	Tag      string    `json:"tag,omitempty"`
	Classes  []string  `json:"classes,omitempty"`
	Children []string  `json:"children,omitempty"`
	Text     bool      `json:"text,omitempty"`
	V        string    `json:"v,omitempty"`
	Data     *NodeData `json:"data,omitempty"`
}

// Variant is a per-breakpoint or per-pseudo-state override of a style.
type Variant struct {
	StyleLess string `json:"styleLess"`
}

// Style is one named, reusable property set corresponding to an output class.
// Comb carries the combinator marker: empty for base classes, the configured
// marker (usually "&") for combo/modifier classes applied jointly with a base.
type Style struct {
	ID        string             `json:"_id"`
	Fake      bool               `json:"fake"`
	Type      string             `json:"type"`
	Name      string             `json:"name"`
	Namespace string             `json:"namespace"`
	Comb      string             `json:"comb"`
	StyleLess string             `json:"styleLess"`
	Variants  map[string]Variant `json:"variants"`
	Children  []string           `json:"children"`
}

// IX2 is the modern interaction system slot, opaque pass-through here.
type IX2 struct {
	Interactions []any `json:"interactions"`
	Events       []any `json:"events"`
	ActionLists  []any `json:"actionLists"`
}

// Payload is the document body.
type Payload struct {
	Nodes  []Node  `json:"nodes"`
	Styles []Style `json:"styles"`
	Assets []any   `json:"assets"`
	IX1    []any   `json:"ix1"`
	IX2    IX2     `json:"ix2"`
}

// Meta carries consumer-side counters, always present in serialized form.
type Meta struct {
	UnlinkedSymbolCount     int `json:"unlinkedSymbolCount"`
	DroppedLinks            int `json:"droppedLinks"`
	DynBindRemovedCount     int `json:"dynBindRemovedCount"`
	DynListBindRemovedCount int `json:"dynListBindRemovedCount"`
	PaginationRemovedCount  int `json:"paginationRemovedCount"`
}

// Document is the top-level clipboard container.
type Document struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
	Meta    Meta    `json:"meta"`
}

// NewDocument returns an empty document with the fixed discriminator and all
// required arrays non-nil so serialization matches the consumer contract.
func NewDocument() *Document {
	return &Document{
		Type: PayloadType,
		Payload: Payload{
			Nodes:  []Node{},
			Styles: []Style{},
			Assets: []any{},
			IX1:    []any{},
			IX2:    IX2{Interactions: []any{}, Events: []any{}, ActionLists: []any{}},
		},
	}
}

// NewStyle returns a style with the invariant fields set.
func NewStyle(id, name, namespace string) Style {
	return Style{
		ID:        id,
		Type:      "class",
		Name:      name,
		Namespace: namespace,
		Variants:  map[string]Variant{},
		Children:  []string{},
	}
}

// NodeByID returns the node with the given id, or nil.
func (d *Document) NodeByID(id string) *Node {
	for i := range d.Payload.Nodes {
		if d.Payload.Nodes[i].ID == id {
			return &d.Payload.Nodes[i]
		}
	}
	return nil
}

// StyleByID returns the style with the given id, or nil.
func (d *Document) StyleByID(id string) *Style {
	for i := range d.Payload.Styles {
		if d.Payload.Styles[i].ID == id {
			return &d.Payload.Styles[i]
		}
	}
	return nil
}

// StyleByName returns the first style with the given class name, or nil.
func (d *Document) StyleByName(name string) *Style {
	for i := range d.Payload.Styles {
		if d.Payload.Styles[i].Name == name {
			return &d.Payload.Styles[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Pipeline stages never mutate a document in
// place across stage boundaries - each works on its own copy.
func (d *Document) Clone() *Document {
	out := &Document{Type: d.Type, Meta: d.Meta}
	out.Payload.Assets = append([]any{}, d.Payload.Assets...)
	out.Payload.IX1 = append([]any{}, d.Payload.IX1...)
	out.Payload.IX2 = IX2{
		Interactions: append([]any{}, d.Payload.IX2.Interactions...),
		Events:       append([]any{}, d.Payload.IX2.Events...),
		ActionLists:  append([]any{}, d.Payload.IX2.ActionLists...),
	}
	out.Payload.Nodes = make([]Node, len(d.Payload.Nodes))
	for i, n := range d.Payload.Nodes {
		cp := n
		cp.Classes = append([]string(nil), n.Classes...)
		cp.Children = append([]string(nil), n.Children...)
		if n.Data != nil {
			data := *n.Data
			data.XAttr = append([]XAttr(nil), n.Data.XAttr...)
			if n.Data.Link != nil {
				l := *n.Data.Link
				data.Link = &l
			}
			if n.Data.Attr != nil {
				a := *n.Data.Attr
				data.Attr = &a
			}
			if n.Data.Embed != nil {
				e := *n.Data.Embed
				data.Embed = &e
			}
			cp.Data = &data
		}
		out.Payload.Nodes[i] = cp
	}
	out.Payload.Styles = make([]Style, len(d.Payload.Styles))
	for i, s := range d.Payload.Styles {
		cp := s
		cp.Children = append([]string{}, s.Children...)
		cp.Variants = make(map[string]Variant, len(s.Variants))
		for k, v := range s.Variants {
			cp.Variants[k] = v
		}
		out.Payload.Styles[i] = cp
	}
	return out
}

// Encode serializes the document for the clipboard.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Decode parses raw clipboard bytes into a document after a shape check.
func Decode(data []byte) (*Document, error) {
	if err := ShapeCheck(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to decode document: %w", err)
	}
	return &doc, nil
}

// ErrBadShape indicates raw bytes failing the top-level structural check.
var ErrBadShape = errors.New("document shape check failed")

// ShapeCheck validates the top-level structure of raw document bytes: an
// object with the fixed discriminator and a payload carrying nodes and
// styles arrays. Anything else is rejected before any pass runs.
func ShapeCheck(data []byte) error {
	var probe struct {
		Type    string `json:"type"`
		Payload *struct {
			Nodes  *[]jsoniter.RawMessage `json:"nodes"`
			Styles *[]jsoniter.RawMessage `json:"styles"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: not a JSON object: %v", ErrBadShape, err)
	}
	if probe.Type != PayloadType {
		return fmt.Errorf("%w: unexpected type %q", ErrBadShape, probe.Type)
	}
	if probe.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrBadShape)
	}
	if probe.Payload.Nodes == nil {
		return fmt.Errorf("%w: payload.nodes is not an array", ErrBadShape)
	}
	if probe.Payload.Styles == nil {
		return fmt.Errorf("%w: payload.styles is not an array", ErrBadShape)
	}
	return nil
}

// Valid reports whether an in-memory document passes the same structural
// check Decode applies to raw bytes.
func (d *Document) Valid() bool {
	return d != nil && d.Type == PayloadType && d.Payload.Nodes != nil && d.Payload.Styles != nil
}
