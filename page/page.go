package page

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/css"
)

var stylePattern = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)

// StylesheetText concatenates the contents of every embedded <style> block.
func StylesheetText(pageHTML string) string {
	var parts []string
	for _, m := range stylePattern.FindAllStringSubmatch(pageHTML, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n")
}

// Result is the combined detection output.
type Result struct {
	Sections   []Section
	Stylesheet string
	Title      string
}

// Split runs the full detection pass: pull embedded stylesheets, detect
// sections and attach each section's matching CSS subset.
func Split(pageHTML string, detectOpts DetectOptions, extractOpts ExtractOptions, log *zap.Logger) *Result {
	if log == nil {
		log = zap.NewNop()
	}

	stylesheet := StylesheetText(pageHTML)
	sheet := css.NewParser(log).Parse([]byte(stylesheet), "page")

	detector := NewDetector(log)
	extractor := NewExtractor(log)

	sections := detector.Detect(pageHTML, detectOpts)
	for i := range sections {
		sections[i].CSS = extractor.ExtractCSS(sections[i], sheet, extractOpts)
	}

	log.Debug("Page split",
		zap.Int("sections", len(sections)),
		zap.Int("stylesheetBytes", len(stylesheet)))

	return &Result{
		Sections:   sections,
		Stylesheet: stylesheet,
		Title:      Title(pageHTML),
	}
}
