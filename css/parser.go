package css

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS text into structured stylesheets.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Parsing is total: malformed
// fragments are skipped with a warning and everything else survives.
// The optional source parameter identifies what is being parsed for debug
// logging.
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{
		Items:    make([]StylesheetItem, 0),
		Warnings: make([]string, 0),
	}

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	input := parse.NewInput(bytes.NewReader(data))
	parser := css.NewParser(input, false)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if parser.Err() != nil && parser.Err().Error() != "EOF" {
				p.log.Debug("CSS parse error", zap.Error(parser.Err()))
			}
			return sheet

		case css.BeginAtRuleGrammar:
			atRule := string(data)
			switch atRule {
			case "@media":
				query := parseMediaQuery(tokensText(parser.Values()))
				rules := p.parseNestedRules(parser, sheet)
				p.log.Debug("Parsed @media block", zap.String("query", query.Raw), zap.Int("rules", len(rules)))
				sheet.Items = append(sheet.Items, StylesheetItem{
					Media: &MediaBlock{Query: query, Rules: rules},
				})
			case "@font-face":
				ff := p.parseFontFace(parser)
				sheet.Items = append(sheet.Items, StylesheetItem{FontFace: &ff})
			case "@keyframes", "@-webkit-keyframes":
				kf := p.parseKeyframes(parser)
				if kf.Name != "" {
					sheet.Items = append(sheet.Items, StylesheetItem{Keyframes: &kf})
				}
			default:
				p.skipAtRuleBlock(parser)
				p.log.Debug("Skipping @-rule", zap.String("rule", atRule))
			}

		case css.AtRuleGrammar:
			atRule := string(data)
			if atRule == "@import" {
				if url := extractImportURL(parser.Values()); url != "" {
					sheet.Items = append(sheet.Items, StylesheetItem{Import: &url})
					p.log.Debug("Parsed @import", zap.String("url", url))
				}
			} else {
				p.log.Debug("Skipping @-rule", zap.String("rule", atRule))
			}

		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			selectors := splitSelectors(data, parser.Values())
			decls, custom := p.parseDeclarations(parser)
			for _, rule := range p.makeRules(selectors, decls, custom, sheet) {
				r := rule
				sheet.Items = append(sheet.Items, StylesheetItem{Rule: &r})
			}
		}
	}
}

// makeRules fans grouped selectors out into one rule per selector, cloning
// the declaration lists so rules stay independent.
func (p *Parser) makeRules(selectors []string, decls, custom []Decl, sheet *Stylesheet) []Rule {
	var rules []Rule
	for _, selStr := range selectors {
		sel := p.parseSelector(selStr, sheet)
		rules = append(rules, Rule{
			Selector: sel,
			Decls:    append([]Decl(nil), decls...),
			Custom:   append([]Decl(nil), custom...),
		})
	}
	return rules
}

// parseNestedRules parses rulesets inside an @media block until the block
// closes.
func (p *Parser) parseNestedRules(parser *css.Parser, sheet *Stylesheet) []Rule {
	var rules []Rule
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, css.EndAtRuleGrammar:
			return rules

		case css.BeginRulesetGrammar:
			selectors := splitSelectors(data, parser.Values())
			decls, custom := p.parseDeclarations(parser)
			rules = append(rules, p.makeRules(selectors, decls, custom, sheet)...)
		}
	}
}

// parseDeclarations collects declarations until the ruleset closes,
// separating custom properties from regular declarations.
func (p *Parser) parseDeclarations(parser *css.Parser) (decls, custom []Decl) {
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return decls, custom

		case css.DeclarationGrammar:
			name := strings.ToLower(string(data))
			if value := tokensText(parser.Values()); value != "" {
				decls = append(decls, Decl{Prop: name, Value: value})
			}

		case css.CustomPropertyGrammar:
			name := string(data)
			if value := tokensText(parser.Values()); value != "" {
				custom = append(custom, Decl{Prop: name, Value: value})
			}
		}
	}
}

// parseFontFace parses an @font-face block.
func (p *Parser) parseFontFace(parser *css.Parser) FontFace {
	var ff FontFace
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, css.EndAtRuleGrammar:
			return ff

		case css.DeclarationGrammar:
			value := tokensText(parser.Values())
			switch strings.ToLower(string(data)) {
			case "font-family":
				ff.Family = unquote(value)
			case "src":
				ff.Src = value
			case "font-style":
				ff.Style = value
			case "font-weight":
				ff.Weight = value
			}
		}
	}
}

// parseKeyframes reconstructs an @keyframes block as raw text. The consumer
// cannot express keyframes natively, so the body is only ever carried
// verbatim and structural parsing would be wasted.
func (p *Parser) parseKeyframes(parser *css.Parser) Keyframes {
	kf := Keyframes{Name: strings.TrimSpace(tokensText(parser.Values()))}

	var sb strings.Builder
	depth := 1
	for depth > 0 {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			depth = 0
		case css.BeginAtRuleGrammar:
			depth++
		case css.EndAtRuleGrammar:
			depth--
		case css.BeginRulesetGrammar:
			sb.WriteString(selectorText(data, parser.Values()))
			sb.WriteString(" { ")
		case css.DeclarationGrammar:
			sb.WriteString(string(data))
			sb.WriteString(": ")
			sb.WriteString(tokensText(parser.Values()))
			sb.WriteString("; ")
		case css.EndRulesetGrammar:
			sb.WriteString("} ")
		}
	}
	kf.Body = strings.TrimSpace(sb.String())
	return kf
}

// skipAtRuleBlock skips tokens until the matching end of an @-rule block.
func (p *Parser) skipAtRuleBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// parseSelector parses one selector string. Selectors outside the supported
// shape are kept raw and marked complex so routing can still account for
// them.
func (p *Parser) parseSelector(selStr string, sheet *Stylesheet) Selector {
	selStr = strings.TrimSpace(selStr)
	sel := Selector{Raw: selStr}

	if strings.ContainsAny(selStr, ">+~[") {
		sel.Complex = true
		sheet.Warnings = append(sheet.Warnings, "complex selector kept for embed routing: "+selStr)
		p.log.Debug("Complex selector", zap.String("selector", selStr))
		return sel
	}

	fields := strings.Fields(selStr)
	for i, field := range fields {
		part, pseudo, ok := parseSelectorPart(field)
		if !ok {
			sel.Parts = nil
			sel.Complex = true
			sheet.Warnings = append(sheet.Warnings, "unparsable selector kept for embed routing: "+selStr)
			return sel
		}
		if pseudo != "" && i != len(fields)-1 {
			// Pseudo states on ancestors cannot map onto a single class.
			sel.Parts = nil
			sel.Complex = true
			sheet.Warnings = append(sheet.Warnings, "ancestor pseudo kept for embed routing: "+selStr)
			return sel
		}
		sel.Parts = append(sel.Parts, part)
		sel.Pseudo = pseudo
	}
	return sel
}

// parseSelectorPart parses one compound step like "div.card.dark:hover".
func parseSelectorPart(s string) (part SelectorPart, pseudo string, ok bool) {
	if s == "" {
		return part, "", false
	}
	if s == ":root" {
		return SelectorPart{Element: ":root"}, "", true
	}
	if strings.HasPrefix(s, "#") {
		// ID selectors have no class counterpart in the consumer model.
		return part, "", false
	}

	if base, rest, found := strings.Cut(s, ":"); found {
		s = base
		pseudo = strings.ToLower(strings.TrimPrefix(rest, ":"))
		if s == "" {
			return part, "", false
		}
	}

	pieces := strings.Split(s, ".")
	if pieces[0] != "" {
		part.Element = strings.ToLower(pieces[0])
	}
	for _, c := range pieces[1:] {
		if c == "" {
			return part, "", false
		}
		part.Classes = append(part.Classes, c)
	}
	if part.Element == "" && len(part.Classes) == 0 {
		return part, "", false
	}
	return part, pseudo, true
}

// widthPattern pulls pixel width bounds out of a media query.
var widthPattern = regexp.MustCompile(`(min|max)-width\s*:\s*(\d+)(?:\.\d+)?px`)

// parseMediaQuery interprets pixel width bounds; anything else stays raw.
func parseMediaQuery(raw string) MediaQuery {
	mq := MediaQuery{Raw: strings.TrimSpace(raw)}
	for _, m := range widthPattern.FindAllStringSubmatch(mq.Raw, -1) {
		width, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		switch m[1] {
		case "min":
			mq.MinWidth = width
		case "max":
			mq.MaxWidth = width
		}
	}
	return mq
}

// splitSelectors builds selector strings from ruleset tokens, splitting
// grouped selectors on commas.
func splitSelectors(data []byte, values []css.Token) []string {
	full := selectorText(data, values)

	var selectors []string
	for _, s := range strings.Split(full, ",") {
		if s = strings.TrimSpace(s); s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// selectorText joins ruleset token data into the raw selector string.
func selectorText(data []byte, values []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// tokensText joins value tokens into raw value text with collapsed
// whitespace.
func tokensText(tokens []css.Token) string {
	var parts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			parts = append(parts, string(t.Data))
		} else if len(parts) > 0 && !strings.HasSuffix(parts[len(parts)-1], " ") {
			parts = append(parts, " ")
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

// extractImportURL extracts the URL from @import tokens. Handles quoted
// strings and url() forms.
func extractImportURL(tokens []css.Token) string {
	for _, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			s := string(t.Data)
			s = strings.TrimPrefix(s, "url(")
			s = strings.TrimSuffix(s, ")")
			return unquote(strings.TrimSpace(s))
		}
	}
	return ""
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
