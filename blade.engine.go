package blade

import (
	"context"
	"sync/atomic"

	"github.com/itsatony/go-blade/internal"
	"go.uber.org/zap"
)

// Directive arities
const (
	ArityNone       = internal.ArityNone       // @name
	ArityExpression = internal.ArityExpression // @name(expr)
	ArityContent    = internal.ArityContent    // @name(expr) with the whole document
)

// DirectiveHandler expands one directive occurrence into compiled text.
// content is only set for ArityContent directives and holds the document
// before the occurrence was removed.
type DirectiveHandler func(c *Compilation, expression, content string) (string, error)

// WrapperHandler expands one prefix...suffix region. param is only set for
// wrappers that require a parameter list.
type WrapperHandler func(c *Compilation, expression, param string) (string, error)

// Engine is the main entry point for compiling and rendering templates.
// It is safe for concurrent use once configured; the directive registry is
// frozen by the first compile.
type Engine struct {
	registry   *internal.Registry
	components *internal.ComponentRenderer
	interp     *internal.Interpreter
	config     *engineConfig
	logger     *zap.Logger
	unitSeq    atomic.Uint64
}

// New creates an Engine with the built-in directives and the given options.
func New(opts ...Option) (*Engine, error) {
	config := defaultEngineConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	logger := config.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		registry:   internal.NewRegistry(logger),
		components: internal.NewComponentRenderer(config.maxComponentDepth, internal.DefaultMaxIterations, logger),
		interp:     internal.NewInterpreter(internal.NewEvaluator(logger), config.maxLoopIterations, logger),
		config:     config,
		logger:     logger,
	}

	if err := registerBuiltinDirectives(e); err != nil {
		return nil, err
	}
	for _, setup := range config.setups {
		if err := setup(e); err != nil {
			return nil, NewConfigurationError(ErrMsgDirectiveSetup, "", err)
		}
	}

	logger.Debug(LogMsgEngineCreated,
		zap.String(LogFieldMode, string(config.mode)),
		zap.Int(LogFieldDirectives, e.registry.Count()),
		zap.Int(LogFieldWrappers, e.registry.WrapperCount()))
	return e, nil
}

// MustNew creates a new Engine and panics if there's an error.
func MustNew(opts ...Option) *Engine {
	engine, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return engine
}

func (c *engineConfig) validate() error {
	if !c.mode.Valid() {
		return NewConfigurationError(ErrMsgInvalidMode, "mode", nil)
	}
	limits := []struct {
		field string
		value int
	}{
		{"max_depth", c.maxDepth},
		{"max_component_depth", c.maxComponentDepth},
		{"max_loop_iterations", c.maxLoopIterations},
	}
	for _, l := range limits {
		if l.value < 0 {
			return NewConfigurationError(ErrMsgNegativeLimit, l.field, nil)
		}
	}
	return nil
}

// Mode returns the engine mode.
func (e *Engine) Mode() Mode {
	return e.config.mode
}

// Loader returns the configured loader, or nil.
func (e *Engine) Loader() Loader {
	return e.config.loader
}

// RegisterDirective adds or replaces a directive. Registering an existing
// name overwrites it.
func (e *Engine) RegisterDirective(name string, handler DirectiveHandler, arity, sequence int, replaceWhole bool) error {
	if handler == nil {
		return NewRegistrationError(name, "", internal.NewRegistryError(internal.ErrMsgNilHandler, name))
	}
	fn := func(host interface{}, m internal.DirectiveMatch) (string, error) {
		c := host.(*Compilation)
		c.line = m.Line
		return handler(c, m.Expression, m.Content)
	}
	if err := e.registry.RegisterDirective(name, fn, arity, sequence, replaceWhole); err != nil {
		return NewRegistrationError(name, "", err)
	}
	return nil
}

// RegisterWrapper adds or replaces a prefix...suffix region definition.
func (e *Engine) RegisterWrapper(prefix, suffix string, handler WrapperHandler, requiresParams bool) error {
	if handler == nil {
		return NewRegistrationError("", prefix, internal.NewRegistryError(internal.ErrMsgNilHandler, prefix))
	}
	fn := func(host interface{}, m internal.RegionMatch) (string, error) {
		c := host.(*Compilation)
		c.line = m.Line
		c.body = m.Body
		return handler(c, m.Expression, m.Param)
	}
	if err := e.registry.RegisterWrapper(prefix, suffix, fn, requiresParams); err != nil {
		return NewRegistrationError("", prefix, err)
	}
	return nil
}

// HasDirective reports whether a directive is registered under name.
func (e *Engine) HasDirective(name string) bool {
	return e.registry.Has(name)
}

// Directives lists the registered directive names, sorted.
func (e *Engine) Directives() []string {
	return e.registry.List()
}

// Compile turns template source into a compiled document. Failures while
// rendering components are returned and never passed to the error handler.
func (e *Engine) Compile(ctx context.Context, content string, opts ...CompileOption) (string, error) {
	cfg := &compileConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	state := newRenderState()
	state.returnOnly = true
	c := e.newCompilation(ctx, cfg.path, cfg.bindings, state)
	return c.compileTop(content)
}

// Render loads the named template, compiles it and executes it with bindings.
// A missing template is returned as an error.
func (e *Engine) Render(ctx context.Context, name string, bindings map[string]any) (string, error) {
	if e.config.loader == nil {
		return "", NewConfigurationError(ErrMsgNoLoader, "loader", nil)
	}
	name = NormalizeTemplateName(name, e.config.extensions)
	if name == "" {
		return "", NewConfigurationError(ErrMsgEmptyTemplate, MetaKeyName, nil)
	}

	state := newRenderState()
	c := e.newCompilation(ctx, name, bindings, state)
	src, err := c.load(ctx, name)
	if err != nil {
		return "", err
	}
	c.path = src.Name

	compiled, err := c.compileTop(src.Content)
	if err != nil {
		return e.finish("", err)
	}
	return e.finish(e.execute(ctx, compiled, bindings, src.Name, state))
}

// RenderString compiles and executes anonymous template source.
func (e *Engine) RenderString(ctx context.Context, source string, bindings map[string]any) (string, error) {
	state := newRenderState()
	c := e.newCompilation(ctx, "", bindings, state)
	compiled, err := c.compileTop(source)
	if err != nil {
		return e.finish("", err)
	}
	return e.finish(e.execute(ctx, compiled, bindings, "", state))
}

// ExecuteDocument executes an already compiled document.
func (e *Engine) ExecuteDocument(ctx context.Context, compiled string, bindings map[string]any) (string, error) {
	return e.finish(e.execute(ctx, compiled, bindings, "", newRenderState()))
}
