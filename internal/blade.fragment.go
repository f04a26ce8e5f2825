package internal

import (
	"strconv"
	"strings"
)

// FragmentToken is one parsed <?blade ... ?> instruction.
type FragmentToken struct {
	Keyword string
	Args    []string
	Start   int // byte offset of "<?blade"
	End     int // byte offset just past "?>"
}

// Arg returns the i-th argument or an empty string.
func (f FragmentToken) Arg(i int) string {
	if i < 0 || i >= len(f.Args) {
		return StringValueEmpty
	}
	return f.Args[i]
}

// Quote encodes s as a fragment argument. Raw newlines are kept so that the
// physical line layout of the compiled document follows the source.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(FragmentQuote)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case FragmentEscape:
			sb.WriteString(`\\`)
		case FragmentQuote:
			sb.WriteString(`\"`)
		default:
			sb.WriteByte(s[i])
		}
	}
	sb.WriteByte(FragmentQuote)
	return sb.String()
}

// QuoteInline encodes s as a single-line fragment argument.
func QuoteInline(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(FragmentQuote)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case FragmentEscape:
			sb.WriteString(`\\`)
		case FragmentQuote:
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(s[i])
		}
	}
	sb.WriteByte(FragmentQuote)
	return sb.String()
}

// Fragment builds an instruction with line-preserving arguments.
func Fragment(keyword string, args ...string) string {
	return buildFragment(keyword, args, Quote)
}

// InlineFragment builds an instruction that always occupies a single line.
func InlineFragment(keyword string, args ...string) string {
	return buildFragment(keyword, args, QuoteInline)
}

func buildFragment(keyword string, args []string, quote func(string) string) string {
	var sb strings.Builder
	sb.WriteString(FragmentOpen)
	sb.WriteString(FragmentSeparator)
	sb.WriteString(keyword)
	for _, a := range args {
		sb.WriteString(FragmentSeparator)
		sb.WriteString(quote(a))
	}
	sb.WriteString(FragmentSeparator)
	sb.WriteString(FragmentClose)
	return sb.String()
}

// TextFragment emits s as literal output on a single physical line.
func TextFragment(s string) string {
	if s == "" {
		return ""
	}
	return InlineFragment(KeywordText, s)
}

// TextLines emits s as literal output while keeping its physical lines.
func TextLines(s string) string {
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		parts[i] = TextFragment(p)
	}
	return strings.Join(parts, "\n")
}

// LinePadding returns an output-free fragment spanning n physical lines, used
// when a substitution is shorter than the text it replaced.
func LinePadding(n int) string {
	if n <= 0 {
		return StringValueEmpty
	}
	return Fragment(KeywordComment, strings.Repeat("\n", n))
}

// OpenMarker starts a spliced sub-document of the given kind (include,
// section, layout, ...). line is the logical line of path that the first
// spliced line corresponds to; with is an optional data expression.
func OpenMarker(kind, path string, line int, with string) string {
	return InlineFragment(KeywordOpen, path, strconv.Itoa(line), with, kind) + "\n"
}

// CloseMarker ends a spliced sub-document.
func CloseMarker() string {
	return "\n" + InlineFragment(KeywordClose)
}

// WrapBlock wraps body in an open/close marker pair.
func WrapBlock(kind, path string, line int, with, body string) string {
	return OpenMarker(kind, path, line, with) + body + CloseMarker()
}

// ScanFragment parses the fragment that starts at text[pos].
// ok is false when text[pos:] does not hold a complete, well-formed fragment.
func ScanFragment(text string, pos int) (FragmentToken, bool) {
	tok := FragmentToken{Start: pos}
	if !strings.HasPrefix(text[pos:], FragmentOpen) {
		return tok, false
	}
	i := pos + len(FragmentOpen)
	n := len(text)

	// keyword must follow a separator
	if i >= n || !isFragmentSpace(text[i]) {
		return tok, false
	}
	i = skipFragmentSpace(text, i)
	kwStart := i
	for i < n && isKeywordChar(text[i]) {
		i++
	}
	if i == kwStart {
		return tok, false
	}
	tok.Keyword = text[kwStart:i]

	for {
		i = skipFragmentSpace(text, i)
		if i >= n {
			return tok, false
		}
		if strings.HasPrefix(text[i:], FragmentClose) {
			tok.End = i + len(FragmentClose)
			return tok, true
		}
		if text[i] != FragmentQuote {
			return tok, false
		}
		arg, next, ok := unquoteAt(text, i)
		if !ok {
			return tok, false
		}
		tok.Args = append(tok.Args, arg)
		i = next
	}
}

// unquoteAt decodes the quoted argument starting at text[pos] (which is '"').
func unquoteAt(text string, pos int) (string, int, bool) {
	var sb strings.Builder
	i := pos + 1
	for i < len(text) {
		c := text[i]
		switch c {
		case FragmentQuote:
			return sb.String(), i + 1, true
		case FragmentEscape:
			if i+1 >= len(text) {
				return "", 0, false
			}
			switch text[i+1] {
			case FragmentEscape:
				sb.WriteByte(FragmentEscape)
			case FragmentQuote:
				sb.WriteByte(FragmentQuote)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(c)
				sb.WriteByte(text[i+1])
			}
			i += 2
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, false
}

// FragmentSpans returns the spans of all well-formed fragments in text.
func FragmentSpans(text string) []Range {
	var spans []Range
	pos := 0
	for pos < len(text) {
		idx := strings.Index(text[pos:], FragmentOpen)
		if idx < 0 {
			break
		}
		start := pos + idx
		tok, ok := ScanFragment(text, start)
		if !ok {
			pos = start + len(FragmentOpen)
			continue
		}
		spans = append(spans, Range{Start: start, End: tok.End})
		pos = tok.End
	}
	return spans
}

// Fragment masking placeholders
const (
	maskDelim = '\x1a'
)

// MaskFragments swaps every fragment for a short placeholder so that markup
// scanners never look inside compiled instructions.
func MaskFragments(text string) (string, []string) {
	spans := FragmentSpans(text)
	if len(spans) == 0 {
		return text, nil
	}
	frags := make([]string, 0, len(spans))
	var sb strings.Builder
	last := 0
	for _, sp := range spans {
		sb.WriteString(text[last:sp.Start])
		sb.WriteByte(maskDelim)
		sb.WriteString(strconv.Itoa(len(frags)))
		sb.WriteByte(maskDelim)
		frags = append(frags, text[sp.Start:sp.End])
		last = sp.End
	}
	sb.WriteString(text[last:])
	return sb.String(), frags
}

// UnmaskFragments restores placeholders produced by MaskFragments.
func UnmaskFragments(masked string, frags []string) string {
	if len(frags) == 0 {
		return masked
	}
	var sb strings.Builder
	i := 0
	for i < len(masked) {
		if masked[i] != maskDelim {
			sb.WriteByte(masked[i])
			i++
			continue
		}
		end := strings.IndexByte(masked[i+1:], maskDelim)
		if end < 0 {
			sb.WriteString(masked[i:])
			break
		}
		idx, err := strconv.Atoi(masked[i+1 : i+1+end])
		if err != nil || idx < 0 || idx >= len(frags) {
			sb.WriteString(masked[i : i+2+end])
		} else {
			sb.WriteString(frags[idx])
		}
		i += end + 2
	}
	return sb.String()
}

// ContainsFragment reports whether text holds at least one fragment.
func ContainsFragment(text string) bool {
	return len(FragmentSpans(text)) > 0
}

// Neutralize turns any literal "<?blade" or mask delimiter in raw template
// source into a text fragment so source text can never forge an instruction
// or a masked placeholder.
func Neutralize(source string) string {
	if strings.Contains(source, FragmentOpen) {
		source = strings.ReplaceAll(source, FragmentOpen, TextFragment(FragmentOpen))
	}
	if strings.IndexByte(source, maskDelim) >= 0 {
		source = strings.ReplaceAll(source, string(maskDelim), TextFragment(string(maskDelim)))
	}
	return source
}

func isFragmentSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func skipFragmentSpace(text string, i int) int {
	for i < len(text) && isFragmentSpace(text[i]) {
		i++
	}
	return i
}

func isKeywordChar(c byte) bool {
	return c >= 'a' && c <= 'z'
}
