// Package safety validates and auto-repairs candidate documents before they
// reach any consumer. The gate runs a fixed sequence of idempotent passes
// over its own working copy, records every mutation in the report, and only
// blocks on conditions the consumer is known to reject outright.
package safety

import (
	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

// Status is the overall gate verdict.
type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusBlock Status = "block"
)

// EmbedSize holds per-type size findings.
type EmbedSize struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Report is the gate output for one invocation.
type Report struct {
	Status      Status    `json:"status"`
	FatalIssues []string  `json:"fatalIssues"`
	AutoFixes   []string  `json:"autoFixes"`
	Warnings    []string  `json:"warnings"`
	EmbedSize   EmbedSize `json:"embedSize"`
}

// fatal records an issue that must block export.
func (r *Report) fatal(msg string) {
	r.FatalIssues = append(r.FatalIssues, msg)
}

// fix records an applied auto-repair.
func (r *Report) fix(msg string) {
	r.AutoFixes = append(r.AutoFixes, msg)
}

// warn records a non-mutating finding.
func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// finalize derives the status: any fatal issue blocks; any auto-fix or
// size warning without a fatal issue warns; otherwise ok.
func (r *Report) finalize() {
	switch {
	case len(r.FatalIssues) > 0 || len(r.EmbedSize.Errors) > 0:
		r.Status = StatusBlock
	case len(r.AutoFixes) > 0 || len(r.Warnings) > 0 || len(r.EmbedSize.Warnings) > 0:
		r.Status = StatusWarn
	default:
		r.Status = StatusOK
	}
}

// Embeds are the optional raw embed strings checked alongside the document.
type Embeds struct {
	HTML string
	CSS  string
	JS   string
}

// Options configures the gate.
type Options struct {
	// ReservedPrefix marks identifiers owned by the consumer; payload ids
	// colliding with it are rewritten.
	ReservedPrefix string
	// SoftDepth and HardDepth bound element nesting; excess beyond
	// SoftDepth is tolerated silently, beyond HardDepth it warns.
	SoftDepth int
	HardDepth int
	// SynthesizeMissing creates an empty style for a dangling class
	// reference instead of dropping the reference.
	SynthesizeMissing bool
	// SoftLimit and HardLimit bound each embed type independently, in bytes.
	SoftLimit int
	HardLimit int
	// Chunking downgrades a hard-limit block to a needs-chunking warning.
	Chunking bool
}

// DefaultOptions returns the stock gate configuration.
func DefaultOptions() Options {
	return Options{
		ReservedPrefix:    "webflow-",
		SoftDepth:         20,
		HardDepth:         30,
		SynthesizeMissing: true,
		SoftLimit:         40960,
		HardLimit:         51200,
	}
}

// Gate runs the sanitization passes.
type Gate struct {
	log   *zap.Logger
	vocab webflow.Vocabulary
	opts  Options
}

// NewGate creates a safety gate.
func NewGate(vocab webflow.Vocabulary, opts Options, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{log: log.Named("safety"), vocab: vocab, opts: opts}
}

// Check sanitizes a candidate document. It returns the (possibly mutated)
// working copy, the report, and whether any sanitization was applied. The
// input document is never touched; repeated application to the same input
// yields the same result.
func (g *Gate) Check(doc *webflow.Document, embeds Embeds) (*webflow.Document, *Report, bool) {
	report := &Report{}
	work := doc.Clone()

	g.structuralPass(work, report)
	g.identityPass(work, report)
	g.depthPass(work, report)
	g.referentialPass(work, report)
	g.embedPass(work, embeds, report)

	report.finalize()
	g.log.Debug("Safety gate finished",
		zap.String("status", string(report.Status)),
		zap.Int("fatal", len(report.FatalIssues)),
		zap.Int("fixes", len(report.AutoFixes)),
		zap.Int("warnings", len(report.Warnings)))
	return work, report, len(report.AutoFixes) > 0
}

// CheckRaw validates raw document bytes. A failing shape check is reported
// as a fatal issue without running any pass, leaving the abort-or-continue
// decision to the caller.
func (g *Gate) CheckRaw(raw []byte, embeds Embeds) (*webflow.Document, *Report, bool) {
	if err := webflow.ShapeCheck(raw); err != nil {
		report := &Report{}
		report.fatal(err.Error())
		report.finalize()
		return nil, report, false
	}
	doc, err := webflow.Decode(raw)
	if err != nil {
		report := &Report{}
		report.fatal(err.Error())
		report.finalize()
		return nil, report, false
	}
	return g.Check(doc, embeds)
}
