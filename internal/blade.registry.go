package internal

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DirectiveMatch describes one directive occurrence handed to a DirectiveFunc.
// Which of Expression and Content are populated depends on the directive arity.
type DirectiveMatch struct {
	Name       string
	Expression string // argument text inside the balanced parentheses
	Content    string // whole document before the occurrence was removed (arity 2)
	Line       int    // 1-based line of the "@" in the scanned text
}

// RegionMatch describes one accepted wrapper region.
type RegionMatch struct {
	Expression string // trimmed text between prefix (or parameter list) and suffix
	Body       string // the same text, untrimmed
	Param      string // parameter list text, only for wrappers that require one
	Line       int    // 1-based line where Expression starts in the scanned text
}

// DirectiveFunc expands one directive occurrence.
// host is whatever the caller passed to MatchDirectives; the root package passes
// its *Compilation.
type DirectiveFunc func(host interface{}, m DirectiveMatch) (string, error)

// WrapperFunc expands one wrapper region.
type WrapperFunc func(host interface{}, m RegionMatch) (string, error)

// Directive arities
const (
	ArityNone       = 0 // @name
	ArityExpression = 1 // @name(expr)
	ArityContent    = 2 // @name(expr) + remaining document
)

// Directive is a named @marker definition.
type Directive struct {
	Name         string
	Handler      DirectiveFunc
	Arity        int
	Sequence     int
	ReplaceWhole bool
	// BareForm lets a parameterized directive also match a bare @name, with
	// an empty expression.
	BareForm bool
	order    int
}

// Parameterized reports whether the directive matches the @name(...) form.
func (d Directive) Parameterized() bool {
	return d.Arity > ArityNone
}

// Wrapper is a prefix...suffix region definition.
type Wrapper struct {
	Prefix         string
	Suffix         string
	Handler        WrapperFunc
	RequiresParams bool
	order          int
}

// Registry stores directive and wrapper definitions.
// Registrations are last-writer-wins; the overwritten definition keeps its
// original registration slot so ordering stays stable.
// It is thread-safe and can be frozen once configuration is complete.
type Registry struct {
	directives map[string]*Directive
	wrappers   map[string]*Wrapper
	nextOrder  int
	frozen     bool
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(LogMsgRegistryCreated)
	return &Registry{
		directives: make(map[string]*Directive),
		wrappers:   make(map[string]*Wrapper),
		logger:     logger,
	}
}

// RegisterDirective adds or replaces a directive definition.
func (r *Registry) RegisterDirective(name string, handler DirectiveFunc, arity, sequence int, replaceWhole bool) error {
	if name == "" {
		return NewRegistryError(ErrMsgEmptyDirectiveName, "")
	}
	if handler == nil {
		return NewRegistryError(ErrMsgNilHandler, name)
	}
	if arity < ArityNone || arity > ArityContent {
		return NewRegistryError(ErrMsgInvalidArity, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewRegistryError(ErrMsgRegistryFrozen, name)
	}

	d := &Directive{
		Name:         name,
		Handler:      handler,
		Arity:        arity,
		Sequence:     sequence,
		ReplaceWhole: replaceWhole,
	}

	if existing, ok := r.directives[name]; ok {
		d.order = existing.order
		r.logger.Debug(LogMsgDirectiveOverwritten,
			zap.String(LogFieldName, name),
			zap.Int(LogFieldArity, existing.Arity),
		)
	} else {
		d.order = r.nextOrder
		r.nextOrder++
	}

	r.directives[name] = d
	r.logger.Debug(LogMsgDirectiveRegistered,
		zap.String(LogFieldName, name),
		zap.Int(LogFieldArity, arity),
		zap.Int(LogFieldSequence, sequence),
		zap.Bool(LogFieldReplace, replaceWhole),
	)
	return nil
}

// RegisterWrapper adds or replaces a wrapper definition keyed by prefix and suffix.
func (r *Registry) RegisterWrapper(prefix, suffix string, handler WrapperFunc, requiresParams bool) error {
	if prefix == "" || suffix == "" {
		return NewRegistryError(ErrMsgEmptyDelimiter, prefix+suffix)
	}
	if handler == nil {
		return NewRegistryError(ErrMsgNilHandler, prefix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewRegistryError(ErrMsgRegistryFrozen, prefix)
	}

	key := prefix + "\x00" + suffix
	w := &Wrapper{
		Prefix:         prefix,
		Suffix:         suffix,
		Handler:        handler,
		RequiresParams: requiresParams,
	}

	if existing, ok := r.wrappers[key]; ok {
		w.order = existing.order
		r.logger.Debug(LogMsgWrapperOverwritten,
			zap.String(LogFieldPrefix, prefix),
			zap.String(LogFieldSuffix, suffix),
		)
	} else {
		w.order = r.nextOrder
		r.nextOrder++
	}

	r.wrappers[key] = w
	r.logger.Debug(LogMsgWrapperRegistered,
		zap.String(LogFieldPrefix, prefix),
		zap.String(LogFieldSuffix, suffix),
	)
	return nil
}

// AllowBareForm makes the parenthesized argument of a registered
// expression directive optional.
func (r *Registry) AllowBareForm(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewRegistryError(ErrMsgRegistryFrozen, name)
	}
	d, ok := r.directives[name]
	if !ok {
		return NewRegistryError(ErrMsgUnknownDirective, name)
	}
	if d.Arity != ArityExpression {
		return NewRegistryError(ErrMsgInvalidArity, name)
	}
	d.BareForm = true
	return nil
}

// Freeze makes the registry read-only. Later registrations fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.frozen {
		r.frozen = true
		r.logger.Debug(LogMsgRegistryFrozen,
			zap.Int(LogFieldCount, len(r.directives)+len(r.wrappers)))
	}
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Directives returns a copy of all directives in processing order:
// sequence ascending, then name length descending, then registration order.
func (r *Registry) Directives() []Directive {
	r.mu.RLock()
	list := make([]Directive, 0, len(r.directives))
	for _, d := range r.directives {
		list = append(list, *d)
	}
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		if len(a.Name) != len(b.Name) {
			return len(a.Name) > len(b.Name)
		}
		return a.order < b.order
	})
	return list
}

// Wrappers returns a copy of all wrappers ordered by prefix length descending,
// then registration order.
func (r *Registry) Wrappers() []Wrapper {
	r.mu.RLock()
	list := make([]Wrapper, 0, len(r.wrappers))
	for _, w := range r.wrappers {
		list = append(list, *w)
	}
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if len(a.Prefix) != len(b.Prefix) {
			return len(a.Prefix) > len(b.Prefix)
		}
		return a.order < b.order
	})
	return list
}

// Directive retrieves a directive by name.
func (r *Registry) Directive(name string) (Directive, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.directives[name]
	if !ok {
		return Directive{}, false
	}
	return *d, true
}

// Has checks if a directive is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.directives[name]
	return ok
}

// List returns all directive names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.directives))
	for name := range r.directives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered directives.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.directives)
}

// WrapperCount returns the number of registered wrappers.
func (r *Registry) WrapperCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.wrappers)
}

// RegistryError represents a registry operation error
type RegistryError struct {
	Message string
	Name    string
}

// NewRegistryError creates a new registry error
func NewRegistryError(message, name string) *RegistryError {
	return &RegistryError{
		Message: message,
		Name:    name,
	}
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Name != StringValueEmpty {
		return fmt.Sprintf(ErrFmtWithName, e.Message, e.Name)
	}
	return e.Message
}

// Registry error message constants
const (
	ErrMsgEmptyDirectiveName = "directive name is required"
	ErrMsgEmptyDelimiter     = "wrapper requires both prefix and suffix"
	ErrMsgNilHandler         = "handler cannot be nil"
	ErrMsgInvalidArity       = "directive arity must be 0, 1 or 2"
	ErrMsgRegistryFrozen     = "registry is frozen"
	ErrMsgUnknownDirective   = "directive is not registered"
)
