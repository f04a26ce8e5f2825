package blade

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/itsatony/go-cuserr"
)

// Error message constants
const (
	// Configuration errors
	ErrMsgInvalidRegistration = "invalid directive registration"
	ErrMsgInvalidConfig       = "invalid configuration"
	ErrMsgConfigRead          = "failed to read configuration file"
	ErrMsgConfigFormat        = "unsupported configuration format"
	ErrMsgConfigDecode        = "failed to decode configuration"
	ErrMsgInvalidMode         = "unknown engine mode"
	ErrMsgNegativeLimit       = "limit must not be negative"
	ErrMsgNoLoader            = "no template loader configured"
	ErrMsgDirectiveSetup      = "directive setup failed"

	// Resolution errors
	ErrMsgTemplateNotFound = "template not found"
	ErrMsgEmptyTemplate    = "template name cannot be empty"
	ErrMsgLoaderFailed     = "template loader failed"
	ErrMsgLoaderClosed     = "template loader is closed"

	// Recursion errors
	ErrMsgIncludeDepth   = "include nesting depth exceeded"
	ErrMsgComponentDepth = "component nesting depth exceeded"
	ErrMsgComponentLoop  = "component expansion did not converge"

	// Execution errors
	ErrMsgExecutionFailed = "template execution failed"
	ErrMsgCompileFailed   = "template compilation failed"

	// Storage errors
	ErrMsgPostgresEmptyConnString  = "PostgreSQL connection string is empty"
	ErrMsgPostgresConnectionFailed = "failed to connect to PostgreSQL"
	ErrMsgPostgresQueryFailed      = "PostgreSQL query failed"
	ErrMsgPostgresMigrationFailed  = "PostgreSQL migration failed"
	ErrMsgPostgresAlreadyClosed    = "PostgreSQL loader is already closed"
	ErrMsgDiskCacheDir             = "failed to prepare disk cache directory"
)

// Error code constants for categorization
const (
	ErrCodeConfig    = "BLADE_CONFIG"
	ErrCodeNotFound  = "BLADE_NOT_FOUND"
	ErrCodeRecursion = "BLADE_RECURSION"
	ErrCodeExec      = "BLADE_EXEC"
	ErrCodeLoader    = "BLADE_LOADER"
)

// Sentinel errors for errors.Is checks
var (
	ErrConfiguration    = errors.New("blade: configuration error")
	ErrTemplateNotFound = errors.New("blade: template not found")
	ErrRecursionLimit   = errors.New("blade: recursion limit exceeded")
	ErrExecution        = errors.New("blade: execution failed")
	ErrLoader           = errors.New("blade: loader failure")
)

// withCause ties a sentinel to an underlying cause so both match errors.Is.
func withCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// NewConfigurationError creates a configuration error. field names the
// offending setting or registration and may be empty.
func NewConfigurationError(msg, field string, cause error) error {
	err := cuserr.WrapStdError(withCause(ErrConfiguration, cause), ErrCodeConfig, msg)
	if field != "" {
		err = err.WithMetadata(MetaKeyField, field)
	}
	return err
}

// NewRegistrationError creates a configuration error for a rejected directive
// or wrapper registration.
func NewRegistrationError(name, prefix string, cause error) error {
	return cuserr.WrapStdError(withCause(ErrConfiguration, cause), ErrCodeConfig, ErrMsgInvalidRegistration).
		WithMetadata(MetaKeyName, name).
		WithMetadata(MetaKeyPrefix, prefix)
}

// NewTemplateNotFoundError creates an error for a template that no loader
// candidate resolved.
func NewTemplateNotFoundError(name string, candidates []string) error {
	return cuserr.WrapStdError(ErrTemplateNotFound, ErrCodeNotFound, ErrMsgTemplateNotFound).
		WithMetadata(MetaKeyTemplateName, name).
		WithMetadata(MetaKeyCandidates, strings.Join(candidates, DiagSeparator))
}

// NewRecursionLimitError creates an error for include, extends or component
// nesting beyond the configured bound.
func NewRecursionLimitError(msg, name string, maxDepth int) error {
	return cuserr.WrapStdError(ErrRecursionLimit, ErrCodeRecursion, msg).
		WithMetadata(MetaKeyTemplateName, name).
		WithMetadata(MetaKeyMaxDepth, strconv.Itoa(maxDepth))
}

// NewLoaderError creates an error for a loader backend failure.
func NewLoaderError(msg, name string, cause error) error {
	return cuserr.WrapStdError(withCause(ErrLoader, cause), ErrCodeLoader, msg).
		WithMetadata(MetaKeyTemplateName, name)
}

// NewCompileError wraps a handler failure raised while compiling path.
func NewCompileError(path string, cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeExec, ErrMsgCompileFailed).
		WithMetadata(MetaKeyPath, path)
}

// IsTemplateNotFound reports whether err is a missing template error.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsRecursionLimit reports whether err is a recursion limit error.
func IsRecursionLimit(err error) bool {
	return errors.Is(err, ErrRecursionLimit)
}
