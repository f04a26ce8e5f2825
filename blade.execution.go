package blade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/itsatony/go-blade/internal"
	"github.com/itsatony/go-cuserr"
	"go.uber.org/zap"
)

// Frame is one entry of an error trace, innermost first.
type Frame struct {
	Call string // fragment keyword, block kind or component tag
	File string // execution unit, template path or parent template
	Line int
}

// ErrorTrace describes a failed render in terms of the original templates.
type ErrorTrace struct {
	Path         string // most specific template path
	Message      string
	Code         int
	Line         int // logical line within Path
	PhysicalLine int // line within the compiled document
	Unit         string
	Frames       []Frame
}

// String renders the trace as "path:line: message" followed by its frames.
func (t *ErrorTrace) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d: %s", t.Path, t.Line, t.Message)
	for _, f := range t.Frames {
		fmt.Fprintf(&sb, "\n\tat %s (%s:%d)", f.Call, f.File, f.Line)
	}
	return sb.String()
}

// Location is a physical line of a compiled document mapped back to the
// template that produced it.
type Location struct {
	Path     string // innermost template, "" for the root document
	Line     int
	Physical int
	Frames   []Frame // enclosing blocks, innermost first
}

// Locate maps a 1-based physical line of a compiled document to its logical
// line. Frames of blocks spliced into the root document carry an empty File.
func Locate(compiled string, physical int) Location {
	info := internal.ResolveLogicalLine(compiled, physical)
	loc := Location{Path: info.Path, Line: info.Line, Physical: physical}
	for i := len(info.Chain) - 1; i >= 0; i-- {
		block := info.Chain[i]
		loc.Frames = append(loc.Frames, Frame{Call: block.Kind, File: block.Parent, Line: block.ParentLine})
	}
	return loc
}

// ErrorHandler receives the trace of a failed render. When an engine has one,
// the failing render returns empty output and a nil error.
type ErrorHandler func(trace *ErrorTrace)

// ExecutionError is returned by a failed render when no ErrorHandler is set.
type ExecutionError struct {
	Trace *ErrorTrace
	err   error
}

func newExecutionError(trace *ErrorTrace, cause error) *ExecutionError {
	err := cuserr.WrapStdError(withCause(ErrExecution, cause), ErrCodeExec, ErrMsgExecutionFailed).
		WithMetadata(MetaKeyPath, trace.Path).
		WithMetadata(MetaKeyLine, strconv.Itoa(trace.Line)).
		WithMetadata(MetaKeyUnit, trace.Unit)
	return &ExecutionError{Trace: trace, err: err}
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s:%d: %s", ErrMsgExecutionFailed, e.Trace.Path, e.Trace.Line, e.Trace.Message)
}

// Unwrap returns the categorized error
func (e *ExecutionError) Unwrap() error {
	return e.err
}

// renderState is shared by one top-level render and every nested render it
// triggers. The first failure is recorded and reported once.
type renderState struct {
	reported bool
	err      *ExecutionError
	stack    []Frame

	// bound is set once compiled output embeds values of the bindings, which
	// makes the compiled document specific to this render.
	bound bool
	// returnOnly reports failures through the returned error alone and
	// bypasses the error handler.
	returnOnly bool
}

func newRenderState() *renderState {
	return &renderState{}
}

func (s *renderState) push(f Frame) {
	s.stack = append(s.stack, f)
}

func (s *renderState) pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// Unit is the isolated environment of one execution: a root scope holding
// the bindings, an output buffer and an optional dump of the compiled text.
type Unit struct {
	Name     string
	DumpPath string

	scope  *internal.Scope
	out    strings.Builder
	keep   bool
	logger *zap.Logger
}

// newUnit prepares an execution unit. Globals sit in the parent scope so
// bindings shadow them; reserved names are skipped in both.
func (e *Engine) newUnit(compiled string, bindings map[string]any, path string) *Unit {
	seq := e.unitSeq.Add(1)
	u := &Unit{
		Name:   fmt.Sprintf("%s-%d-%s", DefaultUnitPrefix, seq, CompileKey(path, compiled)[:8]),
		keep:   e.config.mode == ModeDevelopment && e.config.keepCompiled,
		logger: e.logger,
	}

	globals := internal.NewScope(nil)
	e.inject(globals, e.config.globals, u.Name)
	u.scope = internal.NewScope(globals)
	e.inject(u.scope, bindings, u.Name)
	u.scope.Define(ReservedVarPath, path)
	u.scope.Define(ReservedVarUnit, u.Name)
	u.scope.Define(ReservedVarEnv, string(e.config.mode))
	u.scope.Define(ReservedVarData, bindings)

	if e.config.dumpDir != "" {
		u.dump(e.config.dumpDir, compiled)
	}

	e.logger.Debug(LogMsgUnitCreated,
		zap.String(LogFieldUnit, u.Name),
		zap.String(LogFieldPath, path),
		zap.String(LogFieldDump, u.DumpPath))
	return u
}

func (e *Engine) inject(scope *internal.Scope, vars map[string]any, unit string) {
	for name, value := range vars {
		if isReserved(name) {
			e.logger.Debug(LogMsgReservedBinding,
				zap.String(LogFieldName, name),
				zap.String(LogFieldUnit, unit))
			continue
		}
		scope.Define(name, value)
	}
}

func isReserved(name string) bool {
	switch name {
	case ReservedVarPath, ReservedVarUnit, ReservedVarEnv, ReservedVarData:
		return true
	}
	return false
}

func (u *Unit) dump(dir, compiled string) {
	f, err := os.CreateTemp(dir, DefaultDumpPattern)
	if err != nil {
		u.logger.Warn(LogMsgUnitDumpFailed, zap.String(LogFieldUnit, u.Name), zap.Error(err))
		return
	}
	u.DumpPath = f.Name()
	if _, err := f.WriteString(compiled); err != nil {
		u.logger.Warn(LogMsgUnitDumpFailed, zap.String(LogFieldUnit, u.Name), zap.Error(err))
	}
	f.Close()
}

// Close removes the dump file unless the unit was configured to keep it.
func (u *Unit) Close() error {
	if u.DumpPath == "" {
		return nil
	}
	if u.keep {
		u.logger.Debug(LogMsgUnitKept, zap.String(LogFieldUnit, u.Name), zap.String(LogFieldDump, u.DumpPath))
		return nil
	}
	err := os.Remove(u.DumpPath)
	u.logger.Debug(LogMsgUnitClosed, zap.String(LogFieldUnit, u.Name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// execute runs a compiled document in a fresh unit.
func (e *Engine) execute(ctx context.Context, compiled string, bindings map[string]any, path string, state *renderState) (string, error) {
	unit := e.newUnit(compiled, bindings, path)
	defer unit.Close()

	prog, err := internal.ParseDocument(compiled)
	if err != nil {
		return "", e.fail(state, unit, compiled, path, err, TraceCodeStructure)
	}
	if err := e.interp.Execute(ctx, prog, unit.scope, &unit.out); err != nil {
		code := TraceCodeEvaluation
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = TraceCodeCanceled
		}
		return "", e.fail(state, unit, compiled, path, err, code)
	}
	return unit.out.String(), nil
}

// fail converts an interpreter failure into the render's single
// ExecutionError. Later failures of the same render return the first one.
func (e *Engine) fail(state *renderState, unit *Unit, compiled, path string, err error, code int) error {
	if state.reported {
		return state.err
	}

	trace := &ErrorTrace{Message: err.Error(), Code: code, Unit: unit.Name}
	keyword := ""
	var ie *internal.InterpreterError
	if errors.As(err, &ie) {
		trace.PhysicalLine = ie.Line
		keyword = ie.Keyword
		trace.Message = ie.Message
		if ie.Cause != nil {
			trace.Message = fmt.Sprintf("%s: %v", ie.Message, ie.Cause)
		}
	}

	loc := Locate(compiled, trace.PhysicalLine)
	trace.Line = loc.Line
	trace.Path = loc.Path
	if trace.Path == "" {
		trace.Path = path
	}
	if trace.Path == "" {
		trace.Path = unit.Name
	}

	trace.Frames = append(trace.Frames, Frame{Call: keyword, File: unit.Name, Line: trace.PhysicalLine})
	for _, f := range loc.Frames {
		if f.File == "" {
			f.File = path
		}
		trace.Frames = append(trace.Frames, f)
	}
	for i := len(state.stack) - 1; i >= 0; i-- {
		trace.Frames = append(trace.Frames, state.stack[i])
	}

	state.reported = true
	state.err = newExecutionError(trace, err)

	fields := []zap.Field{
		zap.String(LogFieldPath, trace.Path),
		zap.Int(LogFieldLine, trace.Line),
		zap.Int(LogFieldPhysical, trace.PhysicalLine),
		zap.String(LogFieldUnit, trace.Unit),
		zap.String(LogFieldError, trace.Message),
	}
	if e.config.errorHandler != nil && !state.returnOnly {
		e.logger.Debug(LogMsgErrorReported, fields...)
		e.config.errorHandler(trace)
	} else {
		e.logger.Error(LogMsgExecutionFailed, fields...)
	}
	return state.err
}

// finish applies the error handler contract to the outcome of a top-level
// render: a reported execution failure yields empty output and no error.
func (e *Engine) finish(out string, err error) (string, error) {
	if err == nil {
		return out, nil
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) && e.config.errorHandler != nil {
		return "", nil
	}
	return "", err
}
