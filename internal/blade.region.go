package internal

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Range is a half-open byte span [Start, End) of a scanned text.
type Range struct {
	Start int
	End   int
}

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Contains reports whether pos lies inside r.
func (r Range) Contains(pos int) bool {
	return pos >= r.Start && pos < r.End
}

type regionSub struct {
	span   Range
	output string
}

// MatchRegions replaces every prefix...suffix region of text with its wrapper's
// handler output. Wrappers are tried in the given order; matches are located in
// the original text and a candidate that intersects an already accepted range is
// skipped. All substitutions are spliced in a single pass at the end, so handler
// output is never re-scanned. Positions inside existing fragments never start or
// end a region. The accepted ranges are returned in ascending order.
func MatchRegions(text string, wrappers []Wrapper, host interface{}, logger *zap.Logger) (string, []Range, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(LogMsgRegionPassStart,
		zap.Int(LogFieldLength, len(text)),
		zap.Int(LogFieldCount, len(wrappers)))

	fragments := FragmentSpans(text)
	var accepted []Range
	var subs []regionSub

	blocked := func(r Range) bool {
		for _, a := range accepted {
			if a.Overlaps(r) {
				return true
			}
		}
		for _, f := range fragments {
			if f.Contains(r.Start) || f.Contains(r.End-1) {
				return true
			}
		}
		return false
	}

	lines := newLineIndex(text)

	for _, w := range wrappers {
		pos := 0
		for pos < len(text) {
			idx := strings.Index(text[pos:], w.Prefix)
			if idx < 0 {
				break
			}
			start := pos + idx
			bodyStart := start + len(w.Prefix)
			param := StringValueEmpty

			if w.RequiresParams {
				open := skipInlineSpace(text, bodyStart)
				if open >= len(text) || text[open] != CharOpenParen {
					pos = bodyStart
					continue
				}
				closeIdx, ok := FindBalanced(text, open)
				if !ok {
					pos = bodyStart
					continue
				}
				param = strings.TrimSpace(text[open+1 : closeIdx])
				bodyStart = closeIdx + 1
			}

			sufIdx := strings.Index(text[bodyStart:], w.Suffix)
			if sufIdx < 0 {
				// no suffix anywhere after this prefix; later prefixes cannot close either
				break
			}
			bodyEnd := bodyStart + sufIdx
			span := Range{Start: start, End: bodyEnd + len(w.Suffix)}

			if blocked(span) {
				logger.Debug(LogMsgRegionSkipped,
					zap.String(LogFieldPrefix, w.Prefix),
					zap.Int(LogFieldStart, span.Start),
					zap.Int(LogFieldEnd, span.End))
				pos = start + len(w.Prefix)
				continue
			}

			body := text[bodyStart:bodyEnd]
			lead := len(body) - len(strings.TrimLeftFunc(body, unicode.IsSpace))
			m := RegionMatch{
				Expression: strings.TrimSpace(body),
				Body:       body,
				Param:      param,
				Line:       lines.lineAt(bodyStart + lead),
			}
			out, err := w.Handler(host, m)
			if err != nil {
				return text, nil, err
			}
			out += LinePadding(strings.Count(text[span.Start:span.End], "\n") - strings.Count(out, "\n"))

			logger.Debug(LogMsgRegionMatched,
				zap.String(LogFieldPrefix, w.Prefix),
				zap.String(LogFieldSuffix, w.Suffix),
				zap.Int(LogFieldStart, span.Start),
				zap.Int(LogFieldEnd, span.End))

			accepted = append(accepted, span)
			subs = append(subs, regionSub{span: span, output: out})
			pos = span.End
		}
	}

	if len(subs) == 0 {
		logger.Debug(LogMsgRegionPassEnd, zap.Int(LogFieldCount, 0))
		return text, nil, nil
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].span.Start < subs[j].span.Start })

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	ranges := make([]Range, 0, len(subs))
	for _, s := range subs {
		sb.WriteString(text[last:s.span.Start])
		sb.WriteString(s.output)
		last = s.span.End
		ranges = append(ranges, s.span)
	}
	sb.WriteString(text[last:])

	logger.Debug(LogMsgRegionPassEnd, zap.Int(LogFieldCount, len(subs)))
	return sb.String(), ranges, nil
}

// lineIndex maps byte offsets of a text to 1-based line numbers.
type lineIndex struct {
	starts []int
}

func newLineIndex(text string) lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == CharNewline {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts}
}

func (l lineIndex) lineAt(pos int) int {
	return sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > pos })
}

// LineAt returns the 1-based line of text that holds byte offset pos.
func LineAt(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	return strings.Count(text[:pos], "\n") + 1
}

func skipInlineSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i
}
