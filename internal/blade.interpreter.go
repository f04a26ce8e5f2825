package internal

import (
	"context"
	"fmt"
	"html"
	"io"
	"reflect"
	"regexp"
	"sort"

	"go.uber.org/zap"
)

// Scope is a variable table with an optional parent.
type Scope struct {
	vars   map[string]interface{}
	parent *Scope
}

// NewScope creates a scope below parent (which may be nil).
func NewScope(parent *Scope) *Scope {
	return &Scope{vars: make(map[string]interface{}), parent: parent}
}

// Get looks name up in this scope and its parents.
func (s *Scope) Get(name string) (interface{}, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set assigns to the nearest scope that defines name, or to this scope.
func (s *Scope) Set(name string, value interface{}) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = value
			return
		}
	}
	s.vars[name] = value
}

// Define creates or overwrites name in this scope only.
func (s *Scope) Define(name string, value interface{}) {
	s.vars[name] = value
}

// Env flattens the scope chain into an expression environment; inner scopes
// shadow outer ones.
func (s *Scope) Env() map[string]interface{} {
	var chain []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	env := make(map[string]interface{})
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].vars {
			env[k] = v
		}
	}
	return env
}

type control int

const (
	controlNone control = iota
	controlBreak
	controlContinue
)

var (
	incrementPattern  = regexp.MustCompile(`^\$?([A-Za-z_]\w*)\s*(\+\+|--)$`)
	preIncrPattern    = regexp.MustCompile(`^(\+\+|--)\s*\$?([A-Za-z_]\w*)$`)
	assignmentPattern = regexp.MustCompile(`^\$?([A-Za-z_]\w*)\s*([+\-*/.]?=)([^=][\s\S]*)$`)
)

// Interpreter executes parsed programs.
type Interpreter struct {
	eval    *Evaluator
	maxLoop int
	logger  *zap.Logger
}

// NewInterpreter creates an interpreter. A non-positive maxLoop uses the default.
func NewInterpreter(eval *Evaluator, maxLoop int, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eval == nil {
		eval = NewEvaluator(logger)
	}
	if maxLoop <= 0 {
		maxLoop = DefaultMaxLoopIterations
	}
	return &Interpreter{eval: eval, maxLoop: maxLoop, logger: logger}
}

// Evaluator returns the expression evaluator the interpreter uses.
func (in *Interpreter) Evaluator() *Evaluator {
	return in.eval
}

// Execute runs prog against scope, writing output to w.
func (in *Interpreter) Execute(ctx context.Context, prog *Program, scope *Scope, w io.Writer) error {
	in.logger.Debug(LogMsgInterpreterStart, zap.Int(LogFieldNodes, len(prog.Nodes)))
	_, err := in.run(ctx, prog.Nodes, scope, w, 0)
	if err != nil {
		return err
	}
	in.logger.Debug(LogMsgInterpreterEnd)
	return nil
}

func (in *Interpreter) run(ctx context.Context, nodes []Node, scope *Scope, w io.Writer, loopDepth int) (control, error) {
	for _, n := range nodes {
		ctl, err := in.runNode(ctx, n, scope, w, loopDepth)
		if err != nil {
			return controlNone, err
		}
		if ctl != controlNone {
			return ctl, nil
		}
	}
	return controlNone, nil
}

func (in *Interpreter) runNode(ctx context.Context, n Node, scope *Scope, w io.Writer, loopDepth int) (control, error) {
	switch node := n.(type) {
	case *TextNode:
		return controlNone, in.write(w, node, node.Text)
	case *CommentNode:
		return controlNone, nil
	case *EchoNode:
		v, err := in.evalAt(node.Expr, scope, node, node.Line())
		if err != nil {
			return controlNone, err
		}
		s := Stringify(v)
		if !node.Raw {
			s = html.EscapeString(s)
		}
		return controlNone, in.write(w, node, s)
	case *IfNode:
		for _, br := range node.Branches {
			v, err := in.evalAt(br.Cond, scope, node, br.Line)
			if err != nil {
				return controlNone, err
			}
			if Truthy(v) {
				return in.run(ctx, br.Body, scope, w, loopDepth)
			}
		}
		if node.HasElse {
			return in.run(ctx, node.Else, scope, w, loopDepth)
		}
		return controlNone, nil
	case *ForeachNode:
		return controlNone, in.runForeach(ctx, node, scope, w, loopDepth)
	case *ForNode:
		return controlNone, in.runFor(ctx, node, scope, w, loopDepth)
	case *WhileNode:
		return controlNone, in.runWhile(ctx, node, scope, w, loopDepth)
	case *DoWhileNode:
		return controlNone, in.runDoWhile(ctx, node, scope, w, loopDepth)
	case *SwitchNode:
		return in.runSwitch(ctx, node, scope, w, loopDepth)
	case *BreakNode:
		return in.conditional(node.Cond, scope, node, controlBreak)
	case *ContinueNode:
		return in.conditional(node.Cond, scope, node, controlContinue)
	case *PhpNode:
		for _, stmt := range node.Statements {
			if err := in.ExecStatement(stmt, scope); err != nil {
				return controlNone, wrapNodeError(err, node, node.Line())
			}
		}
		return controlNone, nil
	case *BlockNode:
		inner := scope
		if node.With != StringValueEmpty {
			v, err := in.evalAt(node.With, scope, node, node.Line())
			if err != nil {
				return controlNone, err
			}
			data, ok := v.(map[string]interface{})
			if !ok && v != nil {
				return controlNone, NewInterpreterError(ErrMsgBlockData, node.Keyword(), node.Line(), nil)
			}
			inner = NewScope(scope)
			for k, val := range data {
				inner.Define(k, val)
			}
		}
		return in.run(ctx, node.Body, inner, w, loopDepth)
	}
	return controlNone, NewInterpreterError(ErrMsgUnexpectedKeyword, n.Keyword(), n.Line(), nil)
}

func (in *Interpreter) conditional(cond string, scope *Scope, n Node, ctl control) (control, error) {
	if cond == StringValueEmpty {
		return ctl, nil
	}
	v, err := in.evalAt(cond, scope, n, n.Line())
	if err != nil {
		return controlNone, err
	}
	if Truthy(v) {
		return ctl, nil
	}
	return controlNone, nil
}

// loopGuard counts iterations of one loop.
type loopGuard struct {
	in    *Interpreter
	ctx   context.Context
	node  Node
	count int
}

func (g *loopGuard) tick() error {
	if err := g.ctx.Err(); err != nil {
		return NewInterpreterError(ErrMsgCanceled, g.node.Keyword(), g.node.Line(), err)
	}
	g.count++
	if g.count > g.in.maxLoop {
		g.in.logger.Warn(LogMsgLoopLimit,
			zap.String(LogFieldKeyword, g.node.Keyword()),
			zap.Int(LogFieldLine, g.node.Line()),
			zap.Int(LogFieldCount, g.in.maxLoop))
		return NewInterpreterError(fmt.Sprintf(ErrFmtWithLimit, ErrMsgLoopLimit, g.in.maxLoop), g.node.Keyword(), g.node.Line(), nil)
	}
	return nil
}

type iterItem struct {
	key   interface{}
	value interface{}
}

func (in *Interpreter) runForeach(ctx context.Context, node *ForeachNode, scope *Scope, w io.Writer, loopDepth int) error {
	coll, err := in.evalAt(node.Collection, scope, node, node.Line())
	if err != nil {
		return err
	}
	items, err := iterate(coll)
	if err != nil {
		return NewInterpreterError(ErrMsgNotIterable, node.Keyword(), node.Line(), err)
	}

	parent, hadParent := scope.Get(LoopVarName)
	defer func() {
		if hadParent {
			scope.Set(LoopVarName, parent)
		} else {
			delete(scope.vars, LoopVarName)
		}
	}()

	guard := &loopGuard{in: in, ctx: ctx, node: node}
	total := len(items)
	for i, item := range items {
		if err := guard.tick(); err != nil {
			return err
		}
		scope.Set(LoopVarName, map[string]interface{}{
			"index":     i,
			"iteration": i + 1,
			"first":     i == 0,
			"last":      i == total-1,
			"count":     total,
			"remaining": total - i - 1,
			"depth":     loopDepth + 1,
			"parent":    parent,
		})
		if node.Key != StringValueEmpty {
			scope.Set(node.Key, item.key)
		}
		scope.Set(node.Value, item.value)

		ctl, err := in.run(ctx, node.Body, scope, w, loopDepth+1)
		if err != nil {
			return err
		}
		if ctl == controlBreak {
			break
		}
	}
	return nil
}

func (in *Interpreter) runFor(ctx context.Context, node *ForNode, scope *Scope, w io.Writer, loopDepth int) error {
	if node.Init != StringValueEmpty {
		for _, stmt := range SplitStatements(node.Init, CharComma) {
			if err := in.ExecStatement(stmt, scope); err != nil {
				return wrapNodeError(err, node, node.Line())
			}
		}
	}
	guard := &loopGuard{in: in, ctx: ctx, node: node}
	for {
		if node.Cond != StringValueEmpty {
			v, err := in.evalAt(node.Cond, scope, node, node.Line())
			if err != nil {
				return err
			}
			if !Truthy(v) {
				return nil
			}
		}
		if err := guard.tick(); err != nil {
			return err
		}
		ctl, err := in.run(ctx, node.Body, scope, w, loopDepth+1)
		if err != nil {
			return err
		}
		if ctl == controlBreak {
			return nil
		}
		if node.Step != StringValueEmpty {
			for _, stmt := range SplitStatements(node.Step, CharComma) {
				if err := in.ExecStatement(stmt, scope); err != nil {
					return wrapNodeError(err, node, node.Line())
				}
			}
		}
	}
}

func (in *Interpreter) runWhile(ctx context.Context, node *WhileNode, scope *Scope, w io.Writer, loopDepth int) error {
	guard := &loopGuard{in: in, ctx: ctx, node: node}
	for {
		v, err := in.evalAt(node.Cond, scope, node, node.Line())
		if err != nil {
			return err
		}
		if !Truthy(v) {
			return nil
		}
		if err := guard.tick(); err != nil {
			return err
		}
		ctl, err := in.run(ctx, node.Body, scope, w, loopDepth+1)
		if err != nil {
			return err
		}
		if ctl == controlBreak {
			return nil
		}
	}
}

func (in *Interpreter) runDoWhile(ctx context.Context, node *DoWhileNode, scope *Scope, w io.Writer, loopDepth int) error {
	guard := &loopGuard{in: in, ctx: ctx, node: node}
	for {
		if err := guard.tick(); err != nil {
			return err
		}
		ctl, err := in.run(ctx, node.Body, scope, w, loopDepth+1)
		if err != nil {
			return err
		}
		if ctl == controlBreak {
			return nil
		}
		v, err := in.evalAt(node.Cond, scope, node, node.CondLine)
		if err != nil {
			return err
		}
		if !Truthy(v) {
			return nil
		}
	}
}

func (in *Interpreter) runSwitch(ctx context.Context, node *SwitchNode, scope *Scope, w io.Writer, loopDepth int) (control, error) {
	subject, err := in.evalAt(node.Subject, scope, node, node.Line())
	if err != nil {
		return controlNone, err
	}

	start := -1
	for i, c := range node.Cases {
		if c.Default {
			continue
		}
		v, err := in.evalAt(c.Value, scope, node, c.Line)
		if err != nil {
			return controlNone, err
		}
		if LooseEqual(subject, v) {
			start = i
			break
		}
	}
	if start < 0 {
		for i, c := range node.Cases {
			if c.Default {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return controlNone, nil
	}

	for _, c := range node.Cases[start:] {
		ctl, err := in.run(ctx, c.Body, scope, w, loopDepth)
		if err != nil {
			return controlNone, err
		}
		switch ctl {
		case controlBreak:
			return controlNone, nil
		case controlContinue:
			return controlContinue, nil
		}
	}
	return controlNone, nil
}

// ExecStatement runs one assignment, increment or bare expression.
func (in *Interpreter) ExecStatement(stmt string, scope *Scope) error {
	if stmt == StringValueEmpty {
		return nil
	}
	if m := incrementPattern.FindStringSubmatch(stmt); m != nil {
		return in.applyOp(scope, m[1], m[2][:1]+"=", "1")
	}
	if m := preIncrPattern.FindStringSubmatch(stmt); m != nil {
		return in.applyOp(scope, m[2], m[1][:1]+"=", "1")
	}
	if m := assignmentPattern.FindStringSubmatch(stmt); m != nil {
		return in.applyOp(scope, m[1], m[2], m[3])
	}
	_, err := in.eval.Eval(stmt, scope.Env())
	if err != nil {
		return NewExpressionError(ErrMsgExpressionRun, stmt, err)
	}
	return nil
}

func (in *Interpreter) applyOp(scope *Scope, name, op, rhs string) error {
	value, err := in.eval.Eval(rhs, scope.Env())
	if err != nil {
		return NewExpressionError(ErrMsgExpressionRun, rhs, err)
	}
	if op == "=" {
		scope.Set(name, value)
		return nil
	}
	current, _ := scope.Get(name)
	if op == ".=" {
		scope.Set(name, Stringify(current)+Stringify(value))
		return nil
	}
	if current == nil {
		current = 0
	}
	combined, err := in.eval.Eval("__l "+op[:1]+" __r", map[string]interface{}{"__l": current, "__r": value})
	if err != nil {
		return NewExpressionError(ErrMsgExpressionRun, name+" "+op+" "+rhs, err)
	}
	scope.Set(name, combined)
	return nil
}

func (in *Interpreter) evalAt(source string, scope *Scope, n Node, line int) (interface{}, error) {
	v, err := in.eval.Eval(source, scope.Env())
	if err != nil {
		return nil, wrapNodeError(NewExpressionError(ErrMsgExpressionRun, source, err), n, line)
	}
	return v, nil
}

func (in *Interpreter) write(w io.Writer, n Node, s string) error {
	if s == StringValueEmpty {
		return nil
	}
	if _, err := io.WriteString(w, s); err != nil {
		return NewInterpreterError(ErrMsgWriteFailed, n.Keyword(), n.Line(), err)
	}
	return nil
}

// iterate lists the items of a collection. Map keys are visited in sorted order.
func iterate(coll interface{}) ([]iterItem, error) {
	if coll == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(coll)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]iterItem, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = iterItem{key: i, value: rv.Index(i).Interface()}
		}
		return items, nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		items := make([]iterItem, len(keys))
		for i, k := range keys {
			items[i] = iterItem{key: k.Interface(), value: rv.MapIndex(k).Interface()}
		}
		return items, nil
	case reflect.String:
		runes := []rune(rv.String())
		items := make([]iterItem, len(runes))
		for i, r := range runes {
			items[i] = iterItem{key: i, value: string(r)}
		}
		return items, nil
	}
	return nil, fmt.Errorf(ErrFmtNotIterable, coll)
}

// LooseEqual compares two template values the way switch/case does: equal
// values, or values that print the same.
func LooseEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return Stringify(a) == Stringify(b)
}

func wrapNodeError(err error, n Node, line int) error {
	if ie, ok := err.(*InterpreterError); ok {
		return ie
	}
	return NewInterpreterError(ErrMsgEvaluation, n.Keyword(), line, err)
}

// InterpreterError is a failure while parsing or running a compiled document.
type InterpreterError struct {
	Message string
	Keyword string
	Line    int // physical line in the compiled document
	Cause   error
}

// NewInterpreterError creates a new interpreter error
func NewInterpreterError(message, keyword string, line int, cause error) *InterpreterError {
	return &InterpreterError{Message: message, Keyword: keyword, Line: line, Cause: cause}
}

// Error implements the error interface
func (e *InterpreterError) Error() string {
	msg := fmt.Sprintf(ErrFmtKeywordAtLine, e.Message, e.Keyword, e.Line)
	if e.Cause != nil {
		return fmt.Sprintf(ErrFmtWithCause, msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *InterpreterError) Unwrap() error {
	return e.Cause
}

// Interpreter error message constants
const (
	ErrMsgUnexpectedKeyword = "unexpected keyword"
	ErrMsgUnclosedBlock     = "block is never closed"
	ErrMsgSwitchContent     = "only case or default may follow switch"
	ErrMsgInvalidForeach    = "invalid foreach expression"
	ErrMsgForeachAs         = "foreach expression needs 'collection as $value'"
	ErrMsgInvalidFor        = "for expression needs 'init; condition; step'"
	ErrMsgNotIterable       = "value is not iterable"
	ErrMsgLoopLimit         = "loop exceeded maximum iterations"
	ErrMsgCanceled          = "execution canceled"
	ErrMsgEvaluation        = "evaluation failed"
	ErrMsgBlockData         = "include data must be a map"
	ErrMsgWriteFailed       = "failed to write output"
	ErrFmtNotIterable       = "cannot iterate over %T"
)
