package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLogicalLine_BlockCollapses(t *testing.T) {
	// physical lines:
	// 1 a
	// 2 b <open>
	// 3..5 injected
	// 6 <close> rest of line 2
	// 7..10 c d e fail
	doc := "a\nb " + WrapBlock("include", "partial", 1, "", "x1\nx2\nx3") + " rest\nc\nd\ne\nfail"
	require.Equal(t, 10, strings.Count(doc, "\n")+1)

	info := ResolveLogicalLine(doc, 10)
	assert.Equal(t, "", info.Path)
	assert.Equal(t, 6, info.Line)
	assert.Less(t, info.Line, 10)
	assert.Empty(t, info.Chain)
}

func TestResolveLogicalLine_InsideBlock(t *testing.T) {
	doc := "a\nb " + WrapBlock("include", "partial", 1, "", "x1\nx2\nx3") + "\nc"

	info := ResolveLogicalLine(doc, 4)
	assert.Equal(t, "partial", info.Path)
	assert.Equal(t, 2, info.Line)
	require.Len(t, info.Chain, 1)
	assert.Equal(t, BlockFrame{Kind: "include", Path: "partial", Parent: "", ParentLine: 2}, info.Chain[0])

	t.Run("open line belongs to parent", func(t *testing.T) {
		info := ResolveLogicalLine(doc, 2)
		assert.Equal(t, "", info.Path)
		assert.Equal(t, 2, info.Line)
	})

	t.Run("close line belongs to parent", func(t *testing.T) {
		info := ResolveLogicalLine(doc, 6)
		assert.Equal(t, "", info.Path)
		assert.Equal(t, 2, info.Line)
	})

	t.Run("after block", func(t *testing.T) {
		info := ResolveLogicalLine(doc, 7)
		assert.Equal(t, 3, info.Line)
	})
}

func TestResolveLogicalLine_StartOffset(t *testing.T) {
	// a section body that started on line 5 of the child template
	doc := WrapBlock("section", "child", 5, "", "s1\ns2")
	info := ResolveLogicalLine(doc, 3)
	assert.Equal(t, "child", info.Path)
	assert.Equal(t, 6, info.Line)
}

func TestResolveLogicalLine_Nested(t *testing.T) {
	inner := WrapBlock("include", "inner", 1, "", "i1\ni2")
	outer := WrapBlock("include", "outer", 1, "", "o1\n"+inner+"\no3")
	doc := "top\n" + outer + "\nbottom"

	// lines: 1 top, 2 <open outer>, 3 o1, 4 <open inner>, 5 i1, 6 i2,
	// 7 <close inner>, 8 o3, 9 <close outer>, 10 bottom
	info := ResolveLogicalLine(doc, 6)
	assert.Equal(t, "inner", info.Path)
	assert.Equal(t, 2, info.Line)
	require.Len(t, info.Chain, 2)
	assert.Equal(t, "outer", info.Chain[0].Path)
	assert.Equal(t, 2, info.Chain[0].ParentLine)
	assert.Equal(t, "outer", info.Chain[1].Parent)
	assert.Equal(t, 2, info.Chain[1].ParentLine)

	info = ResolveLogicalLine(doc, 8)
	assert.Equal(t, "outer", info.Path)
	assert.Equal(t, 3, info.Line)

	info = ResolveLogicalLine(doc, 10)
	assert.Equal(t, "", info.Path)
	assert.Equal(t, 3, info.Line)
}

func TestResolveLogicalLine_NoMarkers(t *testing.T) {
	info := ResolveLogicalLine("a\nb\nc", 3)
	assert.Equal(t, 3, info.Line)
	assert.Equal(t, 3, info.Physical)

	assert.Equal(t, 0, ResolveLogicalLine("a", 0).Line)
}
