package convert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
	"github.com/Maria-the2nd/flow-stach-sub004/page"
	"github.com/Maria-the2nd/flow-stach-sub004/safety"
	"github.com/Maria-the2nd/flow-stach-sub004/tokens"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

// Options configures the full conversion pipeline.
type Options struct {
	Detect         page.DetectOptions
	Extract        page.ExtractOptions
	Tokens         tokens.Options
	Tracer         TracerOptions
	Vocab          webflow.Vocabulary
	Gate           safety.Options
	IDPrefix       string
	ServiceURL     string
	ServiceToken   string
	ServiceTimeout time.Duration
	Parallelism    int
}

// DefaultOptions returns the stock pipeline configuration.
func DefaultOptions() Options {
	return Options{
		Detect:      page.DefaultDetectOptions(),
		Extract:     page.DefaultExtractOptions(),
		Tokens:      tokens.DefaultOptions(),
		Tracer:      DefaultTracerOptions(),
		Vocab:       webflow.DefaultVocabulary(),
		Gate:        safety.DefaultOptions(),
		IDPrefix:    "ws",
		Parallelism: 4,
	}
}

// Result is the pipeline output.
type Result struct {
	Document *webflow.Document
	Manifest *tokens.Manifest
	Fonts    []tokens.FontRef
	Sections []page.Section
	Traces   []RouteTrace
	Fixes    []string
	Report   *safety.Report
	Title    string
}

// Run executes the full pipeline: detect sections, extract tokens, convert
// sections (in parallel, reassembled in source order), merge, sanitize.
// Sections are independent, so the only coordination is the errgroup.
func Run(ctx context.Context, pageHTML string, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("convert")

	split := page.Split(pageHTML, opts.Detect, opts.Extract, log)
	log.Info("Detected sections", zap.Int("count", len(split.Sections)))

	// Token extraction is an independent branch off the full stylesheet.
	sheet := css.NewParser(log).Parse([]byte(split.Stylesheet), "tokens")
	tokenExtractor := tokens.NewExtractor(log)
	manifest := tokenExtractor.ExtractVariables(sheet, split.Title, opts.Tokens)
	fonts := tokenExtractor.ExtractFonts(sheet)

	// Routing trace over the full stylesheet for diagnostics.
	tracer := NewTracer(opts.Vocab, opts.Tracer, log)
	traces := tracer.Trace(sheet.AllRules())

	// Convert sections in parallel, preserving input order on reassembly.
	builder := NewBuilder(log)
	client := NewClient(opts.ServiceURL, opts.ServiceToken, opts.ServiceTimeout, log)

	docs := make([]*webflow.Document, len(split.Sections))
	fixes := make([][]string, len(split.Sections))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i, sec := range split.Sections {
		i, sec := i, sec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buildOpts := BuildOptions{
				IDPrefix:  sectionPrefix(opts.IDPrefix, i),
				Namespace: manifest.Namespace,
				Vocab:     opts.Vocab,
				Tracer:    opts.Tracer,
			}
			docs[i], fixes[i] = ConvertSection(gctx, sec, client, builder, buildOpts, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("section conversion interrupted: %w", err)
	}

	merged := Merge(docs)
	var allFixes []string
	for _, f := range fixes {
		allFixes = append(allFixes, f...)
	}

	gate := safety.NewGate(opts.Vocab, opts.Gate, log)
	sanitized, report, _ := gate.Check(merged, safety.Embeds{})

	log.Info("Conversion finished",
		zap.Int("nodes", len(sanitized.Payload.Nodes)),
		zap.Int("styles", len(sanitized.Payload.Styles)),
		zap.String("status", string(report.Status)))

	return &Result{
		Document: sanitized,
		Manifest: manifest,
		Fonts:    fonts,
		Sections: split.Sections,
		Traces:   traces,
		Fixes:    allFixes,
		Report:   report,
		Title:    split.Title,
	}, nil
}

// sectionPrefix derives a per-section id namespace.
func sectionPrefix(base string, ordinal int) string {
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s-s%d", base, ordinal+1)
}

// Merge combines per-section documents into one candidate payload. Styles
// are deduplicated by class name - the first declaration wins and later
// references are rewritten onto it, mirroring the destination's own
// existing-wins collision rule.
func Merge(docs []*webflow.Document) *webflow.Document {
	out := webflow.NewDocument()
	styleByName := map[string]string{} // class name -> winning style id
	remap := map[string]string{}       // losing style id -> winning style id

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, s := range doc.Payload.Styles {
			if winner, ok := styleByName[s.Name]; ok {
				remap[s.ID] = winner
				continue
			}
			styleByName[s.Name] = s.ID
			out.Payload.Styles = append(out.Payload.Styles, s)
		}
		out.Payload.Nodes = append(out.Payload.Nodes, doc.Payload.Nodes...)
		out.Payload.Assets = append(out.Payload.Assets, doc.Payload.Assets...)
		out.Payload.IX1 = append(out.Payload.IX1, doc.Payload.IX1...)
		out.Payload.IX2.Interactions = append(out.Payload.IX2.Interactions, doc.Payload.IX2.Interactions...)
		out.Payload.IX2.Events = append(out.Payload.IX2.Events, doc.Payload.IX2.Events...)
		out.Payload.IX2.ActionLists = append(out.Payload.IX2.ActionLists, doc.Payload.IX2.ActionLists...)
	}

	if len(remap) > 0 {
		// Node class lists reference style ids; style children reference
		// names, which dedupe-by-name keeps valid on its own.
		for i := range out.Payload.Nodes {
			n := &out.Payload.Nodes[i]
			for j, class := range n.Classes {
				if winner, ok := remap[class]; ok {
					n.Classes[j] = winner
				}
			}
		}
	}
	return out
}
