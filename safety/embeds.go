package safety

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

// embedPass budgets each embed type independently - types are never summed
// together. Below the soft limit a type passes silently; between soft and
// hard it warns; at or beyond the hard limit it blocks, unless a chunking
// strategy is available, in which case the block downgrades to a
// needs-chunking warning.
func (g *Gate) embedPass(doc *webflow.Document, embeds Embeds, report *Report) {
	sizes := map[string]int{
		"html": len(embeds.HTML),
		"css":  len(embeds.CSS),
		"js":   len(embeds.JS),
	}

	// Embed nodes inside the document count toward their type as well.
	for _, n := range doc.Payload.Nodes {
		if n.Data == nil || n.Data.Embed == nil {
			continue
		}
		sizes["html"] += len(n.Data.Embed.Meta.HTML)
		sizes["css"] += len(n.Data.Embed.Meta.CSS)
		sizes["js"] += len(n.Data.Embed.Meta.JS)
	}

	for _, typ := range []string{"html", "css", "js"} {
		size := sizes[typ]
		switch {
		case size < g.opts.SoftLimit:
			// Within budget.
		case size < g.opts.HardLimit:
			report.EmbedSize.Warnings = append(report.EmbedSize.Warnings,
				fmt.Sprintf("%s embed size %d approaches the %d byte limit", typ, size, g.opts.HardLimit))
		case g.opts.Chunking:
			report.EmbedSize.Warnings = append(report.EmbedSize.Warnings,
				fmt.Sprintf("%s embed size %d exceeds the %d byte limit and needs chunking", typ, size, g.opts.HardLimit))
		default:
			report.EmbedSize.Errors = append(report.EmbedSize.Errors,
				fmt.Sprintf("%s embed size %d exceeds the %d byte limit", typ, size, g.opts.HardLimit))
		}
		if size > 0 {
			g.log.Debug("Embed budget", zap.String("type", typ), zap.Int("bytes", size))
		}
	}
}
