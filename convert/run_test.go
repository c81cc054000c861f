package convert_test

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/convert"
	"github.com/Maria-the2nd/flow-stach-sub004/safety"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

const runFixture = `<!DOCTYPE html>
<html>
<head>
<title>Acme Landing</title>
<style>
:root { --brand: #336699; }
.hero-section { display: flex; }
.hero-title { font-size: 48px; color: var(--brand, #000); }
.card { padding: 16px; }
.cta-section { background: #111; }
</style>
</head>
<body>
<section class="hero-section">
  <h1 class="hero-title">Build faster</h1>
  <div class="card">Fast</div>
</section>
<section class="cta-section">
  <div class="card">Start today</div>
</section>
</body>
</html>`

func TestRun_EndToEnd(t *testing.T) {
	res, err := convert.Run(context.Background(), runFixture, convert.DefaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(res.Sections))
	}
	if res.Title != "Acme Landing" {
		t.Errorf("Title = %q", res.Title)
	}
	if !res.Document.Valid() {
		t.Fatal("merged document failed validity check")
	}
	if res.Report == nil || res.Report.Status == safety.StatusBlock {
		t.Fatalf("report = %+v", res.Report)
	}

	// The card class appears in both sections; the merged payload carries it
	// once and both nodes point at the surviving style.
	var cardStyles int
	for _, s := range res.Document.Payload.Styles {
		if s.Name == "card" {
			cardStyles++
		}
	}
	if cardStyles != 1 {
		t.Errorf("card declared %d times after merge, want 1", cardStyles)
	}
	winner := res.Document.StyleByName("card")
	var cardNodes int
	for _, n := range res.Document.Payload.Nodes {
		for _, class := range n.Classes {
			if class == winner.ID {
				cardNodes++
			}
		}
	}
	if cardNodes != 2 {
		t.Errorf("nodes referencing merged card style = %d, want 2", cardNodes)
	}

	if _, ok := res.Manifest.VariableByName("brand"); !ok {
		t.Error("token manifest missing brand variable")
	}
	if len(res.Traces) == 0 {
		t.Error("no routing traces recorded")
	}
}

func TestRun_EmptyPage(t *testing.T) {
	res, err := convert.Run(context.Background(), "<p>nothing sectionable</p>", convert.DefaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sections) != 0 {
		t.Errorf("sections = %d, want 0", len(res.Sections))
	}
	if !res.Document.Valid() {
		t.Error("empty result must still be a valid document")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := convert.Run(ctx, runFixture, convert.DefaultOptions(), zap.NewNop()); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestMerge_FirstDeclarationWins(t *testing.T) {
	a := webflow.NewDocument()
	first := webflow.NewStyle("a-1", "card", "ns")
	first.StyleLess = "padding: 16px"
	a.Payload.Styles = append(a.Payload.Styles, first)
	a.Payload.Nodes = append(a.Payload.Nodes, webflow.Node{ID: "n-1", Type: webflow.NodeBlock, Classes: []string{"a-1"}})

	b := webflow.NewDocument()
	second := webflow.NewStyle("b-1", "card", "ns")
	second.StyleLess = "padding: 32px"
	b.Payload.Styles = append(b.Payload.Styles, second)
	b.Payload.Nodes = append(b.Payload.Nodes, webflow.Node{ID: "n-2", Type: webflow.NodeBlock, Classes: []string{"b-1"}})

	merged := convert.Merge([]*webflow.Document{a, nil, b})

	if len(merged.Payload.Styles) != 1 {
		t.Fatalf("styles = %d, want 1", len(merged.Payload.Styles))
	}
	if got := merged.Payload.Styles[0]; got.ID != "a-1" || !strings.Contains(got.StyleLess, "16px") {
		t.Errorf("surviving style = %+v, want the first declaration", got)
	}
	n2 := merged.NodeByID("n-2")
	if n2 == nil || len(n2.Classes) != 1 || n2.Classes[0] != "a-1" {
		t.Errorf("losing reference not remapped: %+v", n2)
	}
	if len(merged.Payload.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(merged.Payload.Nodes))
	}
}

func TestMerge_DistinctNamesKept(t *testing.T) {
	a := webflow.NewDocument()
	a.Payload.Styles = append(a.Payload.Styles, webflow.NewStyle("a-1", "hero", "ns"))
	b := webflow.NewDocument()
	b.Payload.Styles = append(b.Payload.Styles, webflow.NewStyle("b-1", "footer", "ns"))

	merged := convert.Merge([]*webflow.Document{a, b})
	if len(merged.Payload.Styles) != 2 {
		t.Errorf("styles = %d, want 2", len(merged.Payload.Styles))
	}
}
