package internal

import (
	"strconv"
	"strings"
)

// irToken is either a literal text run or a fragment.
type irToken struct {
	frag   FragmentToken
	text   string
	isText bool
	line   int
}

func (t irToken) keyword() string {
	if t.isText {
		return KeywordText
	}
	return t.frag.Keyword
}

// ParseDocument parses a compiled document into a Program.
func ParseDocument(compiled string) (*Program, error) {
	p := &irParser{toks: tokenizeDocument(compiled)}
	nodes, stop, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, NewInterpreterError(ErrMsgUnexpectedKeyword, stop.keyword(), stop.line, nil)
	}
	return &Program{Nodes: nodes, Lines: strings.Count(compiled, "\n") + 1}, nil
}

func tokenizeDocument(text string) []irToken {
	lines := newLineIndex(text)
	var toks []irToken
	last := 0
	for _, sp := range FragmentSpans(text) {
		if sp.Start > last {
			toks = append(toks, irToken{text: text[last:sp.Start], isText: true, line: lines.lineAt(last)})
		}
		frag, _ := ScanFragment(text, sp.Start)
		toks = append(toks, irToken{frag: frag, line: lines.lineAt(sp.Start)})
		last = sp.End
	}
	if last < len(text) {
		toks = append(toks, irToken{text: text[last:], isText: true, line: lines.lineAt(last)})
	}
	return toks
}

type irParser struct {
	toks []irToken
	pos  int
}

func (p *irParser) next() (irToken, bool) {
	if p.pos >= len(p.toks) {
		return irToken{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

// parseUntil collects nodes until one of the stop keywords is reached. The
// stop token is returned; nil means the input ended.
func (p *irParser) parseUntil(stop ...string) ([]Node, *irToken, error) {
	var nodes []Node
	for {
		tok, ok := p.next()
		if !ok {
			return nodes, nil, nil
		}
		if tok.isText {
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{line: tok.line, keyword: KeywordText}, Text: tok.text})
			continue
		}

		kw := tok.frag.Keyword
		for _, s := range stop {
			if kw == s {
				return nodes, &tok, nil
			}
		}

		node, err := p.parseFragment(tok)
		if err != nil {
			return nil, nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
}

// parseBody parses until one of stop and fails when the input ends first.
func (p *irParser) parseBody(open irToken, stop ...string) ([]Node, irToken, error) {
	body, end, err := p.parseUntil(stop...)
	if err != nil {
		return nil, irToken{}, err
	}
	if end == nil {
		return nil, irToken{}, NewInterpreterError(ErrMsgUnclosedBlock, open.frag.Keyword, open.line, nil)
	}
	return body, *end, nil
}

func (p *irParser) parseFragment(tok irToken) (Node, error) {
	base := nodeBase{line: tok.line, keyword: tok.frag.Keyword}
	switch tok.frag.Keyword {
	case KeywordText:
		return &TextNode{nodeBase: base, Text: tok.frag.Arg(0)}, nil
	case KeywordEcho:
		return &EchoNode{nodeBase: base, Expr: tok.frag.Arg(0)}, nil
	case KeywordRaw:
		return &EchoNode{nodeBase: base, Expr: tok.frag.Arg(0), Raw: true}, nil
	case KeywordComment:
		return &CommentNode{nodeBase: base, Text: tok.frag.Arg(0)}, nil
	case KeywordBreak:
		return &BreakNode{nodeBase: base, Cond: tok.frag.Arg(0)}, nil
	case KeywordContinue:
		return &ContinueNode{nodeBase: base, Cond: tok.frag.Arg(0)}, nil
	case KeywordPhp:
		return &PhpNode{nodeBase: base, Statements: SplitStatements(tok.frag.Arg(0), CharSemicolon)}, nil
	case KeywordIf:
		return p.parseIf(tok, base)
	case KeywordSwitch:
		return p.parseSwitch(tok, base)
	case KeywordForeach:
		coll, key, value, err := ParseForeachExpression(tok.frag.Arg(0))
		if err != nil {
			return nil, NewInterpreterError(ErrMsgInvalidForeach, tok.frag.Keyword, tok.line, err)
		}
		body, _, err := p.parseBody(tok, KeywordEndForeach)
		if err != nil {
			return nil, err
		}
		return &ForeachNode{nodeBase: base, Collection: coll, Key: key, Value: value, Body: body}, nil
	case KeywordFor:
		parts := SplitStatements(tok.frag.Arg(0), CharSemicolon)
		if len(parts) == 2 {
			parts = append(parts, StringValueEmpty)
		}
		if len(parts) != 3 {
			return nil, NewInterpreterError(ErrMsgInvalidFor, tok.frag.Keyword, tok.line, nil)
		}
		body, _, err := p.parseBody(tok, KeywordEndFor)
		if err != nil {
			return nil, err
		}
		return &ForNode{nodeBase: base, Init: parts[0], Cond: parts[1], Step: parts[2], Body: body}, nil
	case KeywordWhile:
		body, _, err := p.parseBody(tok, KeywordEndWhile)
		if err != nil {
			return nil, err
		}
		return &WhileNode{nodeBase: base, Cond: tok.frag.Arg(0), Body: body}, nil
	case KeywordDo:
		body, end, err := p.parseBody(tok, KeywordEndDo)
		if err != nil {
			return nil, err
		}
		return &DoWhileNode{nodeBase: base, Cond: end.frag.Arg(0), CondLine: end.line, Body: body}, nil
	case KeywordOpen:
		body, _, err := p.parseBody(tok, KeywordClose)
		if err != nil {
			return nil, err
		}
		return &BlockNode{
			nodeBase: base,
			Kind:     tok.frag.Arg(3),
			Path:     tok.frag.Arg(0),
			From:     atoiDefault(tok.frag.Arg(1), 1),
			With:     tok.frag.Arg(2),
			Body:     trimMarkerNewlines(body),
		}, nil
	}
	return nil, NewInterpreterError(ErrMsgUnexpectedKeyword, tok.frag.Keyword, tok.line, nil)
}

func (p *irParser) parseIf(tok irToken, base nodeBase) (Node, error) {
	node := &IfNode{nodeBase: base}
	cond := tok.frag.Arg(0)
	condLine := tok.line
	for {
		body, end, err := p.parseBody(tok, KeywordElseIf, KeywordElse, KeywordEndIf)
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, IfBranch{Cond: cond, Line: condLine, Body: body})
		switch end.frag.Keyword {
		case KeywordElseIf:
			cond = end.frag.Arg(0)
			condLine = end.line
			continue
		case KeywordElse:
			elseBody, _, err := p.parseBody(tok, KeywordEndIf)
			if err != nil {
				return nil, err
			}
			node.Else = elseBody
			node.HasElse = true
		}
		return node, nil
	}
}

func (p *irParser) parseSwitch(tok irToken, base nodeBase) (Node, error) {
	node := &SwitchNode{nodeBase: base, Subject: tok.frag.Arg(0)}

	// anything before the first case must be whitespace
	var end irToken
scan:
	for {
		t, ok := p.next()
		if !ok {
			return nil, NewInterpreterError(ErrMsgUnclosedBlock, tok.frag.Keyword, tok.line, nil)
		}
		if t.isText {
			if strings.TrimSpace(t.text) != StringValueEmpty {
				return nil, NewInterpreterError(ErrMsgSwitchContent, tok.frag.Keyword, t.line, nil)
			}
			continue
		}
		switch t.frag.Keyword {
		case KeywordCase, KeywordDefault, KeywordEndSwitch:
			end = t
			break scan
		default:
			return nil, NewInterpreterError(ErrMsgSwitchContent, t.frag.Keyword, t.line, nil)
		}
	}

	for end.frag.Keyword != KeywordEndSwitch {
		c := SwitchCase{Value: end.frag.Arg(0), Default: end.frag.Keyword == KeywordDefault, Line: end.line}
		body, next, err := p.parseBody(tok, KeywordCase, KeywordDefault, KeywordEndSwitch)
		if err != nil {
			return nil, err
		}
		c.Body = body
		node.Cases = append(node.Cases, c)
		end = next
	}
	return node, nil
}

// trimMarkerNewlines drops the newline that follows an open marker and the one
// that precedes its close marker; both belong to the markers, not the body.
func trimMarkerNewlines(body []Node) []Node {
	if len(body) == 0 {
		return body
	}
	if first, ok := body[0].(*TextNode); ok && first.Keyword() == KeywordText {
		first.Text = strings.TrimPrefix(first.Text, "\n")
	}
	if last, ok := body[len(body)-1].(*TextNode); ok && last.Keyword() == KeywordText {
		last.Text = strings.TrimSuffix(last.Text, "\n")
	}
	return body
}

// ParseForeachExpression splits "coll as $v" or "coll as $k => $v".
func ParseForeachExpression(expression string) (string, string, string, error) {
	idx := lastIndexOutsideQuotes(expression, " as ")
	if idx < 0 {
		return "", "", "", NewInterpreterError(ErrMsgForeachAs, KeywordForeach, 0, nil)
	}
	coll := strings.TrimSpace(expression[:idx])
	target := strings.TrimSpace(expression[idx+len(" as "):])
	key := StringValueEmpty
	value := target
	if arrow := strings.Index(target, "=>"); arrow >= 0 {
		key = trimSigil(target[:arrow])
		value = target[arrow+2:]
	}
	value = trimSigil(value)
	if coll == StringValueEmpty || value == StringValueEmpty {
		return "", "", "", NewInterpreterError(ErrMsgForeachAs, KeywordForeach, 0, nil)
	}
	return coll, key, value, nil
}

// SplitStatements splits s at sep outside quotes and parentheses. Empty
// trailing statements are dropped.
func SplitStatements(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == CharBackslash {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case CharSingleQ, CharDoubleQ:
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[last:]); tail != StringValueEmpty {
		parts = append(parts, tail)
	}
	return parts
}

func lastIndexOutsideQuotes(s, sub string) int {
	found := -1
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == CharBackslash {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == CharSingleQ || c == CharDoubleQ {
			quote = c
			continue
		}
		if strings.HasPrefix(s[i:], sub) {
			found = i
		}
	}
	return found
}

func trimSigil(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), string(CharDollar))
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
