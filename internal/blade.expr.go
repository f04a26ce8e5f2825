package internal

import (
	"encoding/json"
	"fmt"
	"html"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"
)

// Built-in template function names
const (
	FuncIsset   = "isset"
	FuncEmpty   = "empty"
	FuncCount   = "count"
	FuncJSON    = "json"
	FuncEscape  = "e"
	FuncDefault = "default"
)

// Evaluator compiles and runs template expressions with expr-lang.
// Compiled programs are cached per source string.
type Evaluator struct {
	programs sync.Map // normalized source -> *vm.Program
	options  []expr.Option
	logger   *zap.Logger
}

// NewEvaluator creates an evaluator with the built-in template functions.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		options: []expr.Option{
			expr.AllowUndefinedVariables(),
			expr.Function(FuncIsset, fnIsset),
			expr.Function(FuncEmpty, fnEmpty),
			expr.DisableBuiltin(FuncCount),
			expr.Function(FuncCount, fnCount),
			expr.Function(FuncJSON, fnJSON),
			expr.Function(FuncEscape, fnEscape),
			expr.Function(FuncDefault, fnDefault),
		},
		logger: logger,
	}
}

// Eval evaluates source against env.
func (e *Evaluator) Eval(source string, env map[string]interface{}) (interface{}, error) {
	program, err := e.Program(source)
	if err != nil {
		return nil, err
	}
	return vm.Run(program, env)
}

// Program returns the compiled program for source, compiling it on first use.
func (e *Evaluator) Program(source string) (*vm.Program, error) {
	normalized := NormalizeExpression(source)
	if cached, ok := e.programs.Load(normalized); ok {
		return cached.(*vm.Program), nil
	}
	opts := make([]expr.Option, 0, len(e.options)+1)
	opts = append(opts, e.options...)
	opts = append(opts, expr.Patch(&nilSafeMembers{chains: make(map[*ast.ChainNode]bool)}))
	program, err := expr.Compile(normalized, opts...)
	if err != nil {
		return nil, NewExpressionError(ErrMsgExpressionCompile, source, err)
	}
	actual, _ := e.programs.LoadOrStore(normalized, program)
	e.logger.Debug(LogMsgExpressionCompiled, zap.String(LogFieldExpression, normalized))
	return actual.(*vm.Program), nil
}

// nilSafeMembers turns every member access into an optional one, so that
// $user->name on an undefined $user yields nil like any other undefined
// value. Method callees keep plain access.
type nilSafeMembers struct {
	chains map[*ast.ChainNode]bool
}

func (v *nilSafeMembers) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.MemberNode:
		if n.Optional {
			return
		}
		n.Optional = true
		chain := &ast.ChainNode{Node: n}
		v.chains[chain] = true
		ast.Patch(node, chain)
	case *ast.CallNode:
		if chain, ok := n.Callee.(*ast.ChainNode); ok && v.chains[chain] {
			if member, ok := chain.Node.(*ast.MemberNode); ok {
				member.Optional = false
				n.Callee = member
			}
		}
	}
}

// NormalizeExpression rewrites template expression syntax into expr-lang
// syntax: $ sigils are dropped, "->" becomes ".", "===" and "!==" become "=="
// and "!=", and "null" becomes "nil". String literals are left untouched.
func NormalizeExpression(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	var quote byte
	n := len(source)
	for i := 0; i < n; i++ {
		c := source[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == CharBackslash && i+1 < n {
				i++
				sb.WriteByte(source[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == CharSingleQ || c == CharDoubleQ || c == '`':
			quote = c
			sb.WriteByte(c)
		case c == CharDollar && i+1 < n && isIdentStart(source[i+1]):
			// drop sigil
		case c == '-' && i+1 < n && source[i+1] == '>':
			sb.WriteByte('.')
			i++
		case (c == '=' || c == '!') && strings.HasPrefix(source[i:], string(c)+"=="):
			sb.WriteByte(c)
			sb.WriteString("=")
			i += 2
		case isIdentStart(c) && (i == 0 || !isWordChar(source[i-1])):
			j := i
			for j < n && isWordChar(source[j]) {
				j++
			}
			word := source[i:j]
			if strings.EqualFold(word, "null") {
				word = "nil"
			}
			sb.WriteString(word)
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Truthy reports the boolean value of a template value. nil, false, zero
// numbers, "" and "0" and empty collections are false.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}

// Stringify renders a template value as output text. nil and false print
// nothing, true prints "1".
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return StringValueEmpty
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return StringValueEmpty
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

func fnIsset(params ...interface{}) (interface{}, error) {
	for _, p := range params {
		if p == nil {
			return false, nil
		}
	}
	return len(params) > 0, nil
}

func fnEmpty(params ...interface{}) (interface{}, error) {
	if len(params) == 0 {
		return true, nil
	}
	return !Truthy(params[0]), nil
}

func fnCount(params ...interface{}) (interface{}, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf(ErrFmtArgCount, FuncCount, 1, len(params))
	}
	if params[0] == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(params[0])
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len(), nil
	}
	return 1, nil
}

func fnJSON(params ...interface{}) (interface{}, error) {
	if len(params) == 0 {
		return "null", nil
	}
	b, err := json.Marshal(params[0])
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func fnEscape(params ...interface{}) (interface{}, error) {
	if len(params) == 0 {
		return StringValueEmpty, nil
	}
	return html.EscapeString(Stringify(params[0])), nil
}

func fnDefault(params ...interface{}) (interface{}, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf(ErrFmtArgCount, FuncDefault, 2, len(params))
	}
	if Truthy(params[0]) {
		return params[0], nil
	}
	return params[1], nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ExpressionError reports an expression that failed to compile or run.
type ExpressionError struct {
	Message    string
	Expression string
	Cause      error
}

// NewExpressionError creates a new expression error
func NewExpressionError(message, expression string, cause error) *ExpressionError {
	return &ExpressionError{Message: message, Expression: expression, Cause: cause}
}

// Error implements the error interface
func (e *ExpressionError) Error() string {
	msg := fmt.Sprintf(ErrFmtWithName, e.Message, e.Expression)
	if e.Cause != nil {
		return fmt.Sprintf(ErrFmtWithCause, msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ExpressionError) Unwrap() error {
	return e.Cause
}

// Expression error message constants
const (
	ErrMsgExpressionCompile = "failed to compile expression"
	ErrMsgExpressionRun     = "failed to evaluate expression"
	ErrFmtArgCount          = "%s expects %d argument(s), got %d"
)
