package blade

import (
	"go.uber.org/zap"
)

// Mode selects production or development behavior.
type Mode string

// Engine modes
const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeProduction || m == ModeDevelopment
}

// Option is a functional option for configuring the Engine.
type Option func(*engineConfig)

// engineConfig holds the internal configuration for an Engine.
type engineConfig struct {
	loader            Loader
	mode              Mode
	logger            *zap.Logger
	maxDepth          int
	maxComponentDepth int
	maxLoopIterations int
	globals           map[string]any
	errorHandler      ErrorHandler
	dumpDir           string
	keepCompiled      bool
	compileCache      *CompileCache
	extensions        []string
	componentsDir     string
	setups            []func(*Engine) error
}

// defaultEngineConfig returns the default engine configuration.
func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		mode:              ModeProduction,
		maxDepth:          DefaultMaxDepth,
		maxComponentDepth: DefaultMaxComponentDepth,
		maxLoopIterations: DefaultMaxLoopIterations,
		extensions:        DefaultExtensions(),
		componentsDir:     DefaultComponentsDir,
	}
}

// WithLoader sets the loader that resolves template names for Render,
// @include, @extends and components.
func WithLoader(loader Loader) Option {
	return func(c *engineConfig) {
		c.loader = loader
	}
}

// WithMode sets production or development mode.
// Default: ModeProduction
func WithMode(mode Mode) Option {
	return func(c *engineConfig) {
		c.mode = mode
	}
}

// WithLogger sets the logger for the engine.
// Default: nil (no logging)
func WithLogger(logger *zap.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithMaxDepth sets the maximum include and extends nesting depth.
// Default: 32
func WithMaxDepth(depth int) Option {
	return func(c *engineConfig) {
		c.maxDepth = depth
	}
}

// WithMaxComponentDepth sets the maximum component nesting depth.
// Default: 32
func WithMaxComponentDepth(depth int) Option {
	return func(c *engineConfig) {
		c.maxComponentDepth = depth
	}
}

// WithMaxLoopIterations caps the iterations of every template loop.
// Default: 10000
func WithMaxLoopIterations(n int) Option {
	return func(c *engineConfig) {
		c.maxLoopIterations = n
	}
}

// WithGlobals sets the global binding table. It is consulted after the
// render bindings and is never mutated.
func WithGlobals(globals map[string]any) Option {
	return func(c *engineConfig) {
		c.globals = globals
	}
}

// WithErrorHandler installs a handler that receives the trace of a failed
// render. When set, failing renders return empty output and a nil error.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *engineConfig) {
		c.errorHandler = handler
	}
}

// WithCompiledDump writes each executed document to a temporary file in dir
// for inspection. The file is removed when the execution ends.
func WithCompiledDump(dir string) Option {
	return func(c *engineConfig) {
		c.dumpDir = dir
	}
}

// WithKeepCompiled keeps compiled dumps after execution in development mode.
func WithKeepCompiled(keep bool) Option {
	return func(c *engineConfig) {
		c.keepCompiled = keep
	}
}

// WithCompileCache sets a cache for compiled documents.
func WithCompileCache(cache *CompileCache) Option {
	return func(c *engineConfig) {
		c.compileCache = cache
	}
}

// WithExtensions sets the candidate file extensions tried when resolving a
// template name, in order.
// Default: .blade.html, .blade.php, .html, .php
func WithExtensions(exts ...string) Option {
	return func(c *engineConfig) {
		if len(exts) > 0 {
			c.extensions = append([]string(nil), exts...)
		}
	}
}

// WithComponentsDir sets the directory component names resolve under.
// Default: "components"
func WithComponentsDir(dir string) Option {
	return func(c *engineConfig) {
		c.componentsDir = dir
	}
}

// WithDirectives registers custom directives once the built-ins are in place.
func WithDirectives(setup func(*Engine) error) Option {
	return func(c *engineConfig) {
		if setup != nil {
			c.setups = append(c.setups, setup)
		}
	}
}

// CompileOption configures a single Compile call.
type CompileOption func(*compileConfig)

type compileConfig struct {
	path     string
	bindings map[string]any
}

// WithPath names the template being compiled. It is used for diagnostics and
// as the root path of error traces.
func WithPath(path string) CompileOption {
	return func(c *compileConfig) {
		c.path = path
	}
}

// WithBindings sets the compile-time bindings that component attributes
// resolve against.
func WithBindings(bindings map[string]any) CompileOption {
	return func(c *compileConfig) {
		c.bindings = bindings
	}
}
