package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragment_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		arg  string
	}{
		{"plain", "hello"},
		{"quotes", `say "hi"`},
		{"backslash", `a\b\\c`},
		{"newline", "line1\nline2"},
		{"carriage return", "a\r\nb"},
		{"empty", ""},
		{"fragment lookalike", `<?blade echo "x" ?>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, build := range []func(string, ...string) string{Fragment, InlineFragment} {
				frag := build(KeywordEcho, tt.arg, "second")
				tok, ok := ScanFragment(frag, 0)
				require.True(t, ok, frag)
				assert.Equal(t, KeywordEcho, tok.Keyword)
				assert.Equal(t, []string{tt.arg, "second"}, tok.Args)
				assert.Equal(t, len(frag), tok.End)
			}
		})
	}
}

func TestFragment_InlineIsSingleLine(t *testing.T) {
	frag := InlineFragment(KeywordText, "a\nb\nc")
	assert.NotContains(t, frag, "\n")

	preserving := Fragment(KeywordText, "a\nb\nc")
	assert.Equal(t, 2, strings.Count(preserving, "\n"))
}

func TestFragment_Arg(t *testing.T) {
	tok := FragmentToken{Args: []string{"a"}}
	assert.Equal(t, "a", tok.Arg(0))
	assert.Equal(t, "", tok.Arg(1))
	assert.Equal(t, "", tok.Arg(-1))
}

func TestScanFragment_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no keyword", `<?blade ?>`},
		{"no separator", `<?bladeecho ?>`},
		{"unterminated", `<?blade echo "x"`},
		{"unterminated arg", `<?blade echo "x ?>`},
		{"bare word arg", `<?blade echo x ?>`},
		{"not a fragment", `hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ScanFragment(tt.input, 0)
			assert.False(t, ok)
		})
	}
}

func TestFragmentSpans(t *testing.T) {
	a := Fragment(KeywordEcho, "$x")
	b := Fragment(KeywordText, "?> tricky")
	text := "start " + a + " middle <?blade broken " + b + " end"

	spans := FragmentSpans(text)
	require.Len(t, spans, 2)
	assert.Equal(t, a, text[spans[0].Start:spans[0].End])
	assert.Equal(t, b, text[spans[1].Start:spans[1].End])
	assert.True(t, ContainsFragment(text))
	assert.False(t, ContainsFragment("plain text"))
}

func TestMaskFragments(t *testing.T) {
	text := "a " + Fragment(KeywordEcho, "$x") + " b " + Fragment(KeywordRaw, "<x-foo>") + " c"

	masked, frags := MaskFragments(text)
	require.Len(t, frags, 2)
	assert.NotContains(t, masked, FragmentOpen)
	assert.NotContains(t, masked, "<x-foo>")
	assert.Equal(t, text, UnmaskFragments(masked, frags))

	t.Run("no fragments", func(t *testing.T) {
		masked, frags := MaskFragments("plain")
		assert.Equal(t, "plain", masked)
		assert.Nil(t, frags)
		assert.Equal(t, "plain", UnmaskFragments(masked, frags))
	})
}

func TestNeutralize(t *testing.T) {
	source := `hello <?blade echo "$secret" ?> world`
	out := Neutralize(source)

	for _, sp := range FragmentSpans(out) {
		tok, ok := ScanFragment(out, sp.Start)
		require.True(t, ok)
		assert.Equal(t, KeywordText, tok.Keyword)
	}
	assert.Equal(t, "plain", Neutralize("plain"))
}

func TestNeutralize_MaskDelimiter(t *testing.T) {
	frag := Fragment(KeywordEcho, "$x")
	source := "a " + maskPlaceholder(0) + " b"
	out := Neutralize(source)

	assert.NotContains(t, stripFragments(out), string(maskDelim))
	masked, frags := MaskFragments(out + frag)
	require.Len(t, frags, 3)

	// the source placeholder comes back as its literal text, never as the echo
	restored := UnmaskFragments(masked, frags)
	assert.Equal(t, out+frag, restored)
	for _, sp := range FragmentSpans(out) {
		tok, ok := ScanFragment(out, sp.Start)
		require.True(t, ok)
		assert.Equal(t, KeywordText, tok.Keyword)
		assert.Equal(t, string(maskDelim), tok.Arg(0))
	}
}

// stripFragments removes every well-formed fragment from text.
func stripFragments(text string) string {
	var sb strings.Builder
	last := 0
	for _, sp := range FragmentSpans(text) {
		sb.WriteString(text[last:sp.Start])
		last = sp.End
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func TestTextLines(t *testing.T) {
	out := TextLines("one\n\nthree")
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Len(t, FragmentSpans(out), 2)
	assert.Equal(t, "", TextFragment(""))
}

func TestWrapBlock(t *testing.T) {
	block := WrapBlock("include", "partials/nav", 1, "", "body")
	lines := strings.Split(block, "\n")
	require.Len(t, lines, 3)

	open, ok := ScanFragment(lines[0], 0)
	require.True(t, ok)
	assert.Equal(t, KeywordOpen, open.Keyword)
	assert.Equal(t, "partials/nav", open.Arg(0))
	assert.Equal(t, "1", open.Arg(1))
	assert.Equal(t, "include", open.Arg(3))

	assert.Equal(t, "body", lines[1])

	closeTok, ok := ScanFragment(lines[2], 0)
	require.True(t, ok)
	assert.Equal(t, KeywordClose, closeTok.Keyword)
}
