package internal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponentHost renders components as "[name|k=v,...|slot]".
type fakeComponentHost struct {
	vars     map[string]interface{}
	interp   *Interpreter
	renderer *ComponentRenderer
	// nested, when set, is the body each component expands to
	nested string
	calls  []string
}

func newFakeComponentHost(vars map[string]interface{}) *fakeComponentHost {
	return &fakeComponentHost{vars: vars, interp: NewInterpreter(nil, 0, nil)}
}

func (h *fakeComponentHost) Lookup(path string) (interface{}, bool) {
	var cur interface{} = h.vars
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (h *fakeComponentHost) Evaluate(ctx context.Context, compiled string) (string, error) {
	prog, err := ParseDocument(compiled)
	if err != nil {
		return "", err
	}
	scope := NewScope(nil)
	for k, v := range h.vars {
		scope.Define(k, v)
	}
	var sb strings.Builder
	if err := h.interp.Execute(ctx, prog, scope, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (h *fakeComponentHost) RenderComponent(ctx context.Context, name string, attrs map[string]interface{}, depth int) (string, error) {
	h.calls = append(h.calls, name)
	if h.nested != "" {
		return h.renderer.Render(ctx, h.nested, h, depth)
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != ComponentSlotKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return fmt.Sprintf("[%s|%s|%s]", name, strings.Join(parts, ","), attrs[ComponentSlotKey]), nil
}

func renderToText(t *testing.T, host *fakeComponentHost, doc string) string {
	t.Helper()
	r := NewComponentRenderer(0, 0, nil)
	host.renderer = r
	out, err := r.Render(context.Background(), doc, host, 0)
	require.NoError(t, err)
	text, err := host.Evaluate(context.Background(), out)
	require.NoError(t, err)
	return text
}

func TestComponentRenderer_NoTagsUnchanged(t *testing.T) {
	r := NewComponentRenderer(0, 0, nil)
	host := newFakeComponentHost(nil)

	docs := []string{
		"plain text",
		"a < x - b",
		Fragment(KeywordText, "<x-inside-fragment/>") + " tail",
	}
	for _, doc := range docs {
		out, err := r.Render(context.Background(), doc, host, 0)
		require.NoError(t, err)
		assert.Equal(t, doc, out)
	}
	assert.Empty(t, host.calls)
}

func TestComponentRenderer_SelfClosing(t *testing.T) {
	host := newFakeComponentHost(map[string]interface{}{
		"message": "hi",
		"user":    map[string]interface{}{"name": "ada"},
	})

	text := renderToText(t, host, `before <x-alert type="error" :msg="$message" :who=user.name disabled/> after`)
	assert.Equal(t, "before [alert|disabled=true,msg=hi,type=error,who=ada|] after", text)
}

func TestComponentRenderer_UnresolvedBindingKeepsLiteral(t *testing.T) {
	host := newFakeComponentHost(map[string]interface{}{})
	text := renderToText(t, host, `<x-badge :count="$missing" />`)
	assert.Equal(t, "[badge|count=$missing|]", text)
}

func TestComponentRenderer_PairedAndNested(t *testing.T) {
	host := newFakeComponentHost(nil)

	text := renderToText(t, host, `<x-box title='outer'><x-box>in</x-box>!</x-box>`)
	assert.Equal(t, "[box|title=outer|[box||in]!]", text)
	assert.Equal(t, []string{"box", "box"}, host.calls)
}

func TestComponentRenderer_SlotEvaluatesFragments(t *testing.T) {
	host := newFakeComponentHost(map[string]interface{}{"name": "<b>"})

	doc := "<x-card>Hello " + Fragment(KeywordEcho, "$name") + "</x-card>"
	assert.Equal(t, "[card||Hello &lt;b&gt;]", renderToText(t, host, doc))
}

func TestComponentRenderer_AttributeWithFragment(t *testing.T) {
	host := newFakeComponentHost(map[string]interface{}{"n": 3})

	doc := `<x-pill label="n=` + Fragment(KeywordEcho, "$n") + `"/>`
	assert.Equal(t, "[pill|label=n=3|]", renderToText(t, host, doc))
}

func TestComponentRenderer_UnmatchedPairedTag(t *testing.T) {
	host := newFakeComponentHost(nil)
	assert.Equal(t, "[card||] rest", renderToText(t, host, "<x-card> rest"))
}

func TestComponentRenderer_DottedNames(t *testing.T) {
	host := newFakeComponentHost(nil)
	assert.Equal(t, "[forms.input||] [forms/select||]", renderToText(t, host, "<x-forms.input/> <x-forms/select/>"))
	assert.Equal(t, "forms/input", ComponentPath("forms.input"))
	assert.Equal(t, "forms/input", ComponentPath(`forms\input`))
}

func TestComponentRenderer_PreservesLineCount(t *testing.T) {
	r := NewComponentRenderer(0, 0, nil)
	host := newFakeComponentHost(nil)
	host.renderer = r

	doc := "a\n<x-panel>\nline\nline\n</x-panel>\nb"
	out, err := r.Render(context.Background(), doc, host, 0)
	require.NoError(t, err)
	assert.Equal(t, strings.Count(doc, "\n"), strings.Count(out, "\n"))
}

func TestComponentRenderer_DepthLimit(t *testing.T) {
	r := NewComponentRenderer(4, 0, nil)
	host := newFakeComponentHost(nil)
	host.renderer = r
	host.nested = "<x-self/>"

	_, err := r.Render(context.Background(), "<x-self/>", host, 0)
	require.Error(t, err)
	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 4, limitErr.Limit)
	assert.Contains(t, err.Error(), ErrMsgComponentDepth)
}

func TestComponentRenderer_IterationLimit(t *testing.T) {
	r := NewComponentRenderer(0, 2, nil)
	host := newFakeComponentHost(nil)
	host.renderer = r

	_, err := r.Render(context.Background(), "<x-a/><x-b/><x-c/>", host, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgComponentIterations)
}

func TestParseAttributes(t *testing.T) {
	tokens := ParseAttributes(`type="error" class='a b' size=lg :msg="$message" required data-id=7`)
	assert.Equal(t, []AttributeToken{
		{Key: "type", Value: "error"},
		{Key: "class", Value: "a b"},
		{Key: "size", Value: "lg"},
		{Key: "msg", Value: "$message", Bound: true},
		{Key: "required", Value: ComponentBoolValue, Bare: true},
		{Key: "data-id", Value: "7"},
	}, tokens)

	assert.Empty(t, ParseAttributes(""))
}

func TestComponentRenderer_ParseAttributesIdempotent(t *testing.T) {
	r := NewComponentRenderer(0, 0, nil)
	raw := `a="1" :b=$c flag`

	first := r.ParseAttributes(raw)
	second := r.ParseAttributes(raw)
	assert.Equal(t, first, second)
	assert.Equal(t, ParseAttributes(raw), first)
}

func TestFindComponent(t *testing.T) {
	t.Run("nested same name", func(t *testing.T) {
		text := `<x-list a="1"><x-list>x</x-list><x-list/></x-list> tail`
		tag, ok := FindComponent(text, 0)
		require.True(t, ok)
		assert.Equal(t, "list", tag.Name)
		assert.Equal(t, `a="1"`, tag.RawAttrs)
		assert.True(t, tag.HasInner)
		assert.Equal(t, `<x-list>x</x-list><x-list/>`, tag.Inner)
		assert.Equal(t, " tail", text[tag.End:])
	})

	t.Run("quoted gt in attribute", func(t *testing.T) {
		tag, ok := FindComponent(`<x-a title="1 > 0"/>`, 0)
		require.True(t, ok)
		assert.True(t, tag.SelfClosing)
		assert.Equal(t, `title="1 > 0"`, tag.RawAttrs)
	})

	t.Run("prefix of other name", func(t *testing.T) {
		tag, ok := FindComponent(`<x-btn><x-btn-group/></x-btn>`, 0)
		require.True(t, ok)
		assert.Equal(t, "<x-btn-group/>", tag.Inner)
	})

	t.Run("none", func(t *testing.T) {
		_, ok := FindComponent("<x- >", 0)
		assert.False(t, ok)
	})
}
