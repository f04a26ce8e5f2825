package internal

// BlockFrame is one spliced sub-document enclosing a line.
type BlockFrame struct {
	Kind       string
	Path       string // path of the block
	Parent     string // path of the enclosing document ("" for the root)
	ParentLine int    // logical line of Parent the block occupies
}

// LineInfo is the result of mapping a physical line of a compiled document
// back to the template that produced it.
type LineInfo struct {
	Physical int
	Path     string // innermost block path, "" for the root document
	Line     int    // logical line within Path
	Chain    []BlockFrame
}

type markerEvent struct {
	line    int
	atStart bool
	open    bool
	kind    string
	path    string
	from    int
}

type lineFrame struct {
	kind       string
	path       string
	counter    int
	parent     string
	parentLine int
}

// ResolveLogicalLine maps physical (1-based) to a logical line. A block
// delimited by open/close markers counts as a single line of the enclosing
// document; a line inside a block is reported against the block's path.
func ResolveLogicalLine(compiled string, physical int) LineInfo {
	info := LineInfo{Physical: physical}
	if physical < 1 {
		return info
	}

	lines := newLineIndex(compiled)
	var events []markerEvent
	for _, sp := range FragmentSpans(compiled) {
		tok, _ := ScanFragment(compiled, sp.Start)
		if tok.Keyword != KeywordOpen && tok.Keyword != KeywordClose {
			continue
		}
		line := lines.lineAt(sp.Start)
		if line > physical {
			break
		}
		ev := markerEvent{
			line:    line,
			atStart: sp.Start == lines.starts[line-1],
			open:    tok.Keyword == KeywordOpen,
		}
		if ev.open {
			ev.path = tok.Arg(0)
			ev.from = atoiDefault(tok.Arg(1), 1)
			ev.kind = tok.Arg(3)
		}
		events = append(events, ev)
	}

	stack := []lineFrame{{}}
	next := 0
	for l := 1; l <= physical; l++ {
		lineEvents := next
		for next < len(events) && events[next].line == l {
			next++
		}
		onLine := events[lineEvents:next]

		startsWithClose := len(onLine) > 0 && onLine[0].atStart && !onLine[0].open
		if startsWithClose {
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			onLine = onLine[1:]
		} else {
			stack[len(stack)-1].counter++
		}
		if l == physical {
			break
		}

		for _, ev := range onLine {
			top := stack[len(stack)-1]
			if ev.open {
				stack = append(stack, lineFrame{
					kind:       ev.kind,
					path:       ev.path,
					counter:    ev.from - 1,
					parent:     top.path,
					parentLine: top.counter,
				})
				continue
			}
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	top := stack[len(stack)-1]
	info.Path = top.path
	info.Line = top.counter
	for _, f := range stack[1:] {
		info.Chain = append(info.Chain, BlockFrame{
			Kind:       f.kind,
			Path:       f.path,
			Parent:     f.parent,
			ParentLine: f.parentLine,
		})
	}
	return info
}
