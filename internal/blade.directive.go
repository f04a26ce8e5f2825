package internal

import (
	"strings"

	"go.uber.org/zap"
)

// MatchDirectives expands every @name occurrence of the given directives in
// order. Each directive scans the document produced by the ones before it;
// occurrences inside fragments are ignored.
func MatchDirectives(text string, directives []Directive, host interface{}, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(LogMsgDirectivePassStart,
		zap.Int(LogFieldLength, len(text)),
		zap.Int(LogFieldCount, len(directives)))

	text = EscapeDirectives(text)

	for _, d := range directives {
		var err error
		text, err = applyDirective(text, d, host, logger)
		if err != nil {
			return text, err
		}
	}

	logger.Debug(LogMsgDirectivePassEnd, zap.Int(LogFieldLength, len(text)))
	return text, nil
}

// directiveOccurrence is one located @name match.
type directiveOccurrence struct {
	span       Range
	expression string
}

func applyDirective(text string, d Directive, host interface{}, logger *zap.Logger) (string, error) {
	var sb strings.Builder
	last := 0
	pos := 0
	changed := false
	spans := FragmentSpans(text)
	lines := newLineIndex(text)

	for {
		occ, ok := findDirective(text, d, pos, spans)
		if !ok {
			break
		}
		m := DirectiveMatch{Name: d.Name, Line: lines.lineAt(occ.span.Start)}
		if d.Arity >= ArityExpression {
			m.Expression = occ.expression
		}
		if d.Arity == ArityContent {
			m.Content = text
		}

		out, err := d.Handler(host, m)
		if err != nil {
			return text, err
		}

		logger.Debug(LogMsgDirectiveMatched,
			zap.String(LogFieldName, d.Name),
			zap.Int(LogFieldLine, m.Line),
			zap.Int(LogFieldStart, occ.span.Start))

		if d.ReplaceWhole {
			logger.Debug(LogMsgDirectiveReplaced, zap.String(LogFieldName, d.Name))
			return out, nil
		}

		sb.WriteString(text[last:occ.span.Start])
		sb.WriteString(out)
		last = occ.span.End
		pos = occ.span.End
		changed = true
	}

	if !changed {
		return text, nil
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

// findDirective locates the next occurrence of d at or after pos.
func findDirective(text string, d Directive, pos int, fragments []Range) (directiveOccurrence, bool) {
	marker := string(CharAt) + d.Name
	for pos < len(text) {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			return directiveOccurrence{}, false
		}
		start := pos + idx
		nameEnd := start + len(marker)
		pos = start + 1

		if inRanges(fragments, start) {
			continue
		}
		if start > 0 && (isWordChar(text[start-1]) || text[start-1] == CharAt) {
			continue
		}
		if nameEnd < len(text) && isWordChar(text[nameEnd]) {
			continue
		}

		if !d.Parameterized() {
			return directiveOccurrence{span: Range{Start: start, End: nameEnd}}, true
		}

		open := skipInlineSpace(text, nameEnd)
		if open >= len(text) || text[open] != CharOpenParen {
			if d.BareForm {
				return directiveOccurrence{span: Range{Start: start, End: nameEnd}}, true
			}
			continue
		}
		closeIdx, ok := FindBalanced(text, open)
		if !ok {
			continue
		}
		return directiveOccurrence{
			span:       Range{Start: start, End: closeIdx + 1},
			expression: strings.TrimSpace(text[open+1 : closeIdx]),
		}, true
	}
	return directiveOccurrence{}, false
}

// RemoveDirective removes the first @name(...) (or bare @name) occurrence from
// text. Content handlers use it to strip their own marker.
func RemoveDirective(text, name string) string {
	d := Directive{Name: name, Arity: ArityExpression}
	occ, ok := findDirective(text, d, 0, FragmentSpans(text))
	if !ok {
		d.Arity = ArityNone
		occ, ok = findDirective(text, d, 0, FragmentSpans(text))
		if !ok {
			return text
		}
	}
	return text[:occ.span.Start] + text[occ.span.End:]
}

// EscapeDirectives turns every "@@name" outside fragments into a literal
// "@name" text fragment.
func EscapeDirectives(text string) string {
	if !strings.Contains(text, "@@") {
		return text
	}
	spans := FragmentSpans(text)
	var sb strings.Builder
	last := 0
	pos := 0
	for pos < len(text) {
		idx := strings.Index(text[pos:], "@@")
		if idx < 0 {
			break
		}
		start := pos + idx
		nameStart := start + 2
		nameEnd := nameStart
		for nameEnd < len(text) && isWordChar(text[nameEnd]) {
			nameEnd++
		}
		if nameEnd == nameStart || inRanges(spans, start) || (start > 0 && isWordChar(text[start-1])) {
			pos = start + 1
			continue
		}
		sb.WriteString(text[last:start])
		sb.WriteString(TextFragment(text[start+1 : nameEnd]))
		last = nameEnd
		pos = nameEnd
	}
	if last == 0 {
		return text
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// FindBalanced returns the index of the ")" matching the "(" at text[open].
// Parentheses inside single- or double-quoted strings are ignored.
func FindBalanced(text string, open int) (int, bool) {
	if open >= len(text) || text[open] != CharOpenParen {
		return 0, false
	}
	depth := 0
	var quote byte
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch c {
			case CharBackslash:
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case CharSingleQ, CharDoubleQ:
			quote = c
		case CharOpenParen:
			depth++
		case CharCloseParen:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func inRanges(ranges []Range, pos int) bool {
	for _, r := range ranges {
		if r.Contains(pos) {
			return true
		}
	}
	return false
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
