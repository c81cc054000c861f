package webflow_test

import (
	"errors"
	"testing"

	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

func TestShapeCheck(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"minimal valid", `{"type":"@webflow/XscpData","payload":{"nodes":[],"styles":[]}}`, true},
		{"not json", `not json at all`, false},
		{"not an object", `[1,2,3]`, false},
		{"wrong type", `{"type":"something-else","payload":{"nodes":[],"styles":[]}}`, false},
		{"missing payload", `{"type":"@webflow/XscpData"}`, false},
		{"nodes not array", `{"type":"@webflow/XscpData","payload":{"nodes":{},"styles":[]}}`, false},
		{"missing styles", `{"type":"@webflow/XscpData","payload":{"nodes":[]}}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := webflow.ShapeCheck([]byte(tc.input))
			if tc.valid && err != nil {
				t.Errorf("ShapeCheck() = %v, want nil", err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatal("ShapeCheck() = nil, want error")
				}
				if !errors.Is(err, webflow.ErrBadShape) {
					t.Errorf("error %v is not ErrBadShape", err)
				}
			}
		})
	}
}

func TestDocument_EncodeDecode(t *testing.T) {
	doc := webflow.NewDocument()
	doc.Payload.Nodes = append(doc.Payload.Nodes, webflow.Node{
		ID: "n1", Type: webflow.NodeBlock, Tag: "div",
		Classes: []string{"s1"}, Children: []string{"n2"},
	}, webflow.Node{
		ID: "n2", Text: true, V: "hello",
	})
	s := webflow.NewStyle("s1", "hero", "site")
	s.StyleLess = "display: flex"
	s.Variants["medium"] = webflow.Variant{StyleLess: "display: block"}
	doc.Payload.Styles = append(doc.Payload.Styles, s)

	raw, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	back, err := webflow.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if back.Type != webflow.PayloadType {
		t.Errorf("type = %q", back.Type)
	}
	if n := back.NodeByID("n2"); n == nil || !n.Text || n.V != "hello" {
		t.Errorf("text node did not survive: %+v", n)
	}
	st := back.StyleByName("hero")
	if st == nil || st.StyleLess != "display: flex" {
		t.Fatalf("style did not survive: %+v", st)
	}
	if st.Variants["medium"].StyleLess != "display: block" {
		t.Errorf("variant did not survive: %+v", st.Variants)
	}
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := webflow.NewDocument()
	doc.Payload.Nodes = append(doc.Payload.Nodes, webflow.Node{
		ID: "n1", Classes: []string{"s1"},
		Data: &webflow.NodeData{Link: &webflow.LinkData{Mode: "external", URL: "https://example.com"}},
	})
	s := webflow.NewStyle("s1", "hero", "")
	s.Variants["medium"] = webflow.Variant{StyleLess: "color: red"}
	doc.Payload.Styles = append(doc.Payload.Styles, s)

	clone := doc.Clone()
	clone.Payload.Nodes[0].Classes[0] = "changed"
	clone.Payload.Nodes[0].Data.Link.URL = "changed"
	clone.Payload.Styles[0].Variants["medium"] = webflow.Variant{StyleLess: "changed"}

	if doc.Payload.Nodes[0].Classes[0] != "s1" {
		t.Error("clone shares node class slice with original")
	}
	if doc.Payload.Nodes[0].Data.Link.URL != "https://example.com" {
		t.Error("clone shares link data with original")
	}
	if doc.Payload.Styles[0].Variants["medium"].StyleLess != "color: red" {
		t.Error("clone shares variant map with original")
	}
}

func TestVocabulary(t *testing.T) {
	v := webflow.DefaultVocabulary()

	for _, key := range []string{"medium", "small", "tiny", "main_hover", "tiny_hover"} {
		if !v.Contains(key) {
			t.Errorf("Contains(%q) = false, want true", key)
		}
	}
	if v.Contains("xxl") {
		t.Error("Contains(xxl) = true, want false")
	}

	if key, ok := v.HoverKey("medium"); !ok || key != "medium_hover" {
		t.Errorf("HoverKey(medium) = %q, %v", key, ok)
	}
	if key, ok := v.HoverKey(""); !ok || key != "main_hover" {
		t.Errorf("HoverKey() = %q, %v, want main_hover", key, ok)
	}
	if _, ok := v.HoverKey("xxl"); ok {
		t.Error("HoverKey(xxl) = ok, want false")
	}
}

func TestVocabulary_NearestBreakpoint(t *testing.T) {
	v := webflow.DefaultVocabulary()
	tests := []struct {
		width   int
		key     string
		rounded bool
		ok      bool
	}{
		{991, "medium", false, true},
		{767, "small", false, true},
		{479, "tiny", false, true},
		{800, "small", true, true},
		{500, "tiny", true, true},
		{320, "tiny", true, true},
		{1400, "medium", true, true},
		{0, "", false, false},
	}
	for _, tc := range tests {
		key, rounded, ok := v.NearestBreakpoint(tc.width)
		if ok != tc.ok || key != tc.key || rounded != tc.rounded {
			t.Errorf("NearestBreakpoint(%d) = (%q, %v, %v), want (%q, %v, %v)",
				tc.width, key, rounded, ok, tc.key, tc.rounded, tc.ok)
		}
	}
}
