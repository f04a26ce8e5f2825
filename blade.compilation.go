package blade

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/itsatony/go-blade/internal"
	"github.com/itsatony/go-cuserr"
	"go.uber.org/zap"
)

// Compilation is the state of one compile pass. Directive and wrapper
// handlers receive it to inspect the template being compiled, read and store
// sections, and compile nested documents.
type Compilation struct {
	engine   *Engine
	ctx      context.Context
	path     string
	bindings map[string]any
	state    *renderState
	shared   *compileShared

	depth          int // include and extends nesting
	componentDepth int
	offset         int // logical line of path preceding the first line of the text
	line           int // line of the current match within the text
	body           string
}

// compileShared is shared by a document, its includes and its layouts.
type compileShared struct {
	sections map[string]section
}

type section struct {
	compiled string
	depth    int
}

func newCompileShared() *compileShared {
	return &compileShared{sections: make(map[string]section)}
}

func (e *Engine) newCompilation(ctx context.Context, path string, bindings map[string]any, state *renderState) *Compilation {
	if bindings == nil {
		bindings = map[string]any{}
	}
	return &Compilation{
		engine:   e,
		ctx:      ctx,
		path:     path,
		bindings: bindings,
		state:    state,
		shared:   newCompileShared(),
	}
}

// Context returns the context of the compile call.
func (c *Compilation) Context() context.Context {
	return c.ctx
}

// Path returns the logical path of the template being compiled, or "" for an
// anonymous string.
func (c *Compilation) Path() string {
	return c.path
}

// Line returns the logical line of the occurrence being handled.
func (c *Compilation) Line() int {
	return c.offset + c.line
}

// RegionBody returns the untrimmed text of the wrapper region being handled.
func (c *Compilation) RegionBody() string {
	return c.body
}

// Depth returns the include and extends nesting depth.
func (c *Compilation) Depth() int {
	return c.depth
}

// Development reports whether the engine runs in development mode.
func (c *Compilation) Development() bool {
	return c.engine.config.mode == ModeDevelopment
}

// Bindings returns the compile-time bindings. The map must not be modified.
// Output of a document whose handlers read the bindings is not cached.
func (c *Compilation) Bindings() map[string]any {
	c.state.bound = true
	return c.bindings
}

// Section returns a stored section.
func (c *Compilation) Section(name string) (string, bool) {
	s, ok := c.shared.sections[name]
	return s.compiled, ok
}

// SetSection stores compiled content under name. Sections are visible to the
// layouts and includes of the same document. A section defined closer to the
// rendered template is never replaced by one from its layouts.
func (c *Compilation) SetSection(name, compiled string) {
	if existing, ok := c.shared.sections[name]; ok && existing.depth < c.depth {
		return
	}
	c.shared.sections[name] = section{compiled: compiled, depth: c.depth}
	c.engine.logger.Debug(LogMsgSectionStored,
		zap.String(LogFieldName, name),
		zap.String(LogFieldPath, c.path),
		zap.Int(LogFieldLine, c.Line()))
}

// CompileString compiles source as a part of the current template that starts
// at the current line.
func (c *Compilation) CompileString(source string) (string, error) {
	nested := *c
	nested.offset = c.Line() - 1
	nested.line = 0
	return nested.compileSource(source)
}

// Include compiles the named template as a boundary marker block. with is an
// optional data expression evaluated when the block runs. A missing
// template yields the mode-dependent substitute.
func (c *Compilation) Include(name, with string) (string, error) {
	name = NormalizeTemplateName(name, c.engine.config.extensions)
	if c.depth+1 > c.engine.config.maxDepth {
		return "", NewRecursionLimitError(ErrMsgIncludeDepth, name, c.engine.config.maxDepth)
	}
	src, err := c.load(c.ctx, name)
	if err != nil {
		if IsTemplateNotFound(err) {
			return c.missing(DiagFmtTemplateMissing, name, name, err, true)
		}
		return "", err
	}
	compiled, err := c.descend(src.Name).compileSource(src.Content)
	if err != nil {
		return "", err
	}
	return internal.WrapBlock(BlockKindInclude, src.Name, 1, with, compiled), nil
}

// descend returns a compilation for a template included by c.
func (c *Compilation) descend(path string) *Compilation {
	child := *c
	child.path = path
	child.depth = c.depth + 1
	child.offset = 0
	child.line = 0
	return &child
}

func (c *Compilation) load(ctx context.Context, name string) (*Source, error) {
	e := c.engine
	if name == "" {
		return nil, NewTemplateNotFoundError(name, nil)
	}
	if e.config.loader == nil {
		return nil, NewTemplateNotFoundError(name, CandidateNames(name, e.config.extensions))
	}
	src, err := e.config.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	e.logger.Debug(LogMsgTemplateLoaded,
		zap.String(LogFieldName, src.Name),
		zap.String(LogFieldPath, src.Path),
		zap.Int(LogFieldVersion, src.Version))
	return src, nil
}

// missing produces the substitute for an unresolvable template: nothing in
// production, a diagnostic comment in development. fragment selects a text
// fragment instead of plain text.
func (c *Compilation) missing(format, name, resolved string, cause error, fragment bool) (string, error) {
	e := c.engine
	candidates := ""
	var customErr *cuserr.CustomError
	if errors.As(cause, &customErr) {
		candidates, _ = customErr.GetMetadata(MetaKeyCandidates)
	}

	msg := LogMsgTemplateMissing
	if format == DiagFmtComponentMissing {
		msg = LogMsgComponentMissing
	}
	if !c.Development() {
		e.logger.Warn(msg, zap.String(LogFieldName, name))
		return "", nil
	}
	e.logger.Debug(msg,
		zap.String(LogFieldName, name),
		zap.String(LogFieldCandidates, candidates))

	diag := fmt.Sprintf(format, name, resolved, candidates)
	if e.config.loader != nil {
		if names, err := e.config.loader.List(c.ctx); err == nil {
			if hint := internal.FormatSuggestions(internal.SuggestTemplates(resolved, names, internal.DefaultMaxSuggestions)); hint != "" {
				diag += fmt.Sprintf(DiagFmtSuggestion, hint)
			}
		}
	}
	if fragment {
		return internal.TextFragment(diag), nil
	}
	return diag, nil
}

// compileTop compiles a public entry document, consulting the compile cache.
// Documents that rendered a component, directly or through an include or
// layout, depend on their bindings and are never cached.
func (c *Compilation) compileTop(source string) (string, error) {
	e := c.engine
	e.logger.Debug(LogMsgCompileStart,
		zap.String(LogFieldPath, c.path),
		zap.Int(LogFieldLength, len(source)))

	cache := e.config.compileCache
	cacheable := cache != nil && !strings.Contains(source, internal.ComponentTagOpen)
	if cacheable {
		if compiled, ok := cache.Get(c.path, source); ok {
			e.logger.Debug(LogMsgCompileCacheHit, zap.String(LogFieldPath, c.path))
			return compiled, nil
		}
	}

	compiled, err := c.compileSource(source)
	if err != nil {
		return "", wrapCompileError(c.path, err)
	}

	if cacheable && !c.state.bound {
		cache.Put(c.path, source, compiled)
		e.logger.Debug(LogMsgCompileCacheStore, zap.String(LogFieldPath, c.path))
	}
	e.logger.Debug(LogMsgCompileEnd,
		zap.String(LogFieldPath, c.path),
		zap.Int(LogFieldLength, len(compiled)))
	return compiled, nil
}

// wrapCompileError leaves categorized errors alone and wraps anything a
// custom handler returned.
func wrapCompileError(path string, err error) error {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	var customErr *cuserr.CustomError
	if errors.As(err, &customErr) {
		return err
	}
	return NewCompileError(path, err)
}

func (c *Compilation) compileSource(source string) (string, error) {
	return c.run(internal.Neutralize(source))
}

// run applies the region, directive and component passes to text.
func (c *Compilation) run(text string) (string, error) {
	if err := c.ctx.Err(); err != nil {
		return "", err
	}
	e := c.engine
	e.registry.Freeze()

	out, _, err := internal.MatchRegions(text, e.registry.Wrappers(), c, e.logger)
	if err != nil {
		return "", err
	}
	out, err = internal.MatchDirectives(out, e.registry.Directives(), c, e.logger)
	if err != nil {
		return "", err
	}
	out, err = e.components.Render(c.ctx, out, c, c.componentDepth)
	if err != nil {
		var limitErr *internal.LimitError
		if errors.As(err, &limitErr) {
			msg := ErrMsgComponentDepth
			if limitErr.Message == internal.ErrMsgComponentIterations {
				msg = ErrMsgComponentLoop
			}
			return "", NewRecursionLimitError(msg, c.path, limitErr.Limit)
		}
		return "", err
	}
	return out, nil
}

// Lookup resolves a dotted binding path against the compile bindings and then
// the engine globals.
func (c *Compilation) Lookup(path string) (interface{}, bool) {
	c.state.bound = true
	if v, ok := lookupPath(c.bindings, path); ok {
		return v, true
	}
	return lookupPath(c.engine.config.globals, path)
}

// Evaluate executes a compiled snippet against the compile bindings.
func (c *Compilation) Evaluate(ctx context.Context, compiled string) (string, error) {
	c.state.bound = true
	return c.engine.execute(ctx, compiled, c.bindings, c.path, c.state)
}

// RenderComponent loads, compiles and executes the component template for
// name with attrs as its bindings.
func (c *Compilation) RenderComponent(ctx context.Context, name string, attrs map[string]interface{}, depth int) (string, error) {
	e := c.engine
	c.state.bound = true
	target := path.Join(e.config.componentsDir, internal.ComponentPath(name))
	src, err := c.load(ctx, target)
	if err != nil {
		if IsTemplateNotFound(err) {
			return c.missing(DiagFmtComponentMissing, name, target, err, false)
		}
		return "", err
	}
	e.logger.Debug(LogMsgComponentResolved,
		zap.String(LogFieldName, name),
		zap.String(LogFieldPath, src.Name),
		zap.Int(LogFieldDepth, depth))

	child := &Compilation{
		engine:         e,
		ctx:            ctx,
		path:           src.Name,
		bindings:       attrs,
		state:          c.state,
		shared:         newCompileShared(),
		depth:          c.depth,
		componentDepth: depth,
	}
	compiled, err := child.compileSource(src.Content)
	if err != nil {
		return "", err
	}

	c.state.push(Frame{Call: strings.TrimPrefix(internal.ComponentTagOpen, "<") + name, File: c.path})
	defer c.state.pop()
	return e.execute(ctx, compiled, attrs, src.Name, c.state)
}

// lookupPath resolves "a.b.c" (or "a->b") through nested maps.
func lookupPath(data map[string]any, path string) (any, bool) {
	path = strings.ReplaceAll(strings.TrimSpace(path), "->", ".")
	if path == "" || data == nil {
		return nil, false
	}

	var current any = data
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		case map[string]string:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		default:
			return nil, false
		}
	}
	return current, true
}
