package blade

import "time"

// Built-in directive names
const (
	DirectiveIf         = "if"
	DirectiveElseIf     = "elseif"
	DirectiveElse       = "else"
	DirectiveEndIf      = "endif"
	DirectiveUnless     = "unless"
	DirectiveEndUnless  = "endunless"
	DirectiveIsset      = "isset"
	DirectiveEndIsset   = "endisset"
	DirectiveEmpty      = "empty"
	DirectiveEndEmpty   = "endempty"
	DirectiveSwitch     = "switch"
	DirectiveCase       = "case"
	DirectiveDefault    = "default"
	DirectiveEndSwitch  = "endswitch"
	DirectiveFor        = "for"
	DirectiveEndFor     = "endfor"
	DirectiveForeach    = "foreach"
	DirectiveEndForeach = "endforeach"
	DirectiveWhile      = "while"
	DirectiveEndWhile   = "endwhile"
	DirectiveDo         = "do"
	DirectiveEndDo      = "enddo"
	DirectiveBreak      = "break"
	DirectiveContinue   = "continue"
	DirectiveJSON       = "json"
	DirectiveInclude    = "include"
	DirectiveYield      = "yield"
	DirectiveExtends    = "extends"
	DirectiveTemplate   = "template"
)

// PageContentMarker is replaced by the child document in @template layouts.
const PageContentMarker = "@pageContent"

// Built-in wrapper delimiters
const (
	WrapperVerbatimOpen  = "@verbatim"
	WrapperVerbatimClose = "@endverbatim"
	WrapperCommentOpen   = "{{--"
	WrapperCommentClose  = "--}}"
	WrapperSectionOpen   = "@section"
	WrapperSectionClose  = "@endsection"
	WrapperPhpOpen       = "@php"
	WrapperPhpClose      = "@endphp"
	WrapperRawOpen       = "{!!"
	WrapperRawClose      = "!!}"
	WrapperEchoOpen      = "{{"
	WrapperEchoClose     = "}}"
)

// Directive sequences; lower runs first
const (
	SequenceLayout  = -10
	SequenceDefault = 0
)

// Block kinds carried by boundary markers
const (
	BlockKindInclude = "include"
	BlockKindSection = "section"
	BlockKindLayout  = "layout"
	BlockKindYield   = "yield"
)

// Default configuration values
const (
	DefaultMaxDepth          = 32
	DefaultMaxComponentDepth = 32
	DefaultMaxLoopIterations = 10000
	DefaultComponentsDir     = "components"
	DefaultUnitPrefix        = "blade-unit"
	DefaultDumpPattern       = "blade-*.compiled"
)

// Storage configuration constants
const (
	PostgresTablePrefix            = "blade_"
	PostgresDefaultMaxOpenConns    = 25
	PostgresDefaultMaxIdleConns    = 5
	PostgresDefaultConnMaxLifetime = 5 * time.Minute
	PostgresDefaultConnMaxIdleTime = 5 * time.Minute
	PostgresDefaultQueryTimeout    = 30 * time.Second

	LoaderCacheDefaultTTL         = 5 * time.Minute
	LoaderCacheDefaultNegativeTTL = 30 * time.Second
	LoaderCacheDefaultMaxEntries  = 1000

	DiskCacheSchemaVersion = 1
	DiskCacheFileExt       = ".bladec"
	DiskCacheTempPattern   = "blade-cache-*.tmp"
	FilesystemDirPerms     = 0o755
)

// Template file extensions, tried in order
const (
	ExtBladeHTML = ".blade.html"
	ExtBladePHP  = ".blade.php"
	ExtHTML      = ".html"
	ExtPHP       = ".php"
)

// DefaultExtensions returns the candidate extensions used when none are configured.
func DefaultExtensions() []string {
	return []string{ExtBladeHTML, ExtBladePHP, ExtHTML, ExtPHP}
}

// Config file extensions
const (
	ConfigExtYAML = ".yaml"
	ConfigExtYML  = ".yml"
	ConfigExtTOML = ".toml"
)

// Diagnostic comment formats (development mode only)
const (
	DiagFmtTemplateMissing  = "<!-- blade: template '%s' not found (%s; tried %s) -->"
	DiagFmtComponentMissing = "<!-- blade: component '%s' not found (%s; tried %s) -->"
	DiagFmtSuggestion       = " <!-- %s -->"
	DiagSeparator           = ", "
)

// Error trace codes
const (
	TraceCodeEvaluation = 1
	TraceCodeStructure  = 2
	TraceCodeCanceled   = 3
)

// Log message constants
const (
	LogMsgEngineCreated       = "engine created"
	LogMsgCompileStart        = "compiling template"
	LogMsgCompileEnd          = "compilation complete"
	LogMsgCompileCacheHit     = "compiled document served from cache"
	LogMsgCompileCacheStore   = "compiled document cached"
	LogMsgTemplateLoaded      = "template loaded"
	LogMsgTemplateMissing     = "template not found - substituting diagnostic"
	LogMsgComponentResolved   = "component resolved"
	LogMsgComponentMissing    = "component not found - substituting diagnostic"
	LogMsgSectionStored       = "section stored"
	LogMsgUnitCreated         = "execution unit created"
	LogMsgUnitClosed          = "execution unit closed"
	LogMsgUnitKept            = "execution unit dump kept"
	LogMsgUnitDumpFailed      = "failed to dump compiled document"
	LogMsgReservedBinding     = "binding skipped - reserved variable"
	LogMsgExecutionFailed     = "template execution failed"
	LogMsgErrorReported       = "execution failure passed to error handler"
	LogMsgLoaderCacheHit      = "loader cache hit"
	LogMsgLoaderCacheMiss     = "loader cache miss"
	LogMsgDiskCacheReadFailed = "disk cache entry unreadable - ignoring"
	LogMsgDiskCacheWriteFail  = "disk cache write failed"
	LogMsgMigrationApplied    = "template schema migration applied"
)

// Log field names
const (
	LogFieldName       = "name"
	LogFieldPath       = "path"
	LogFieldUnit       = "unit"
	LogFieldLine       = "line"
	LogFieldPhysical   = "physical_line"
	LogFieldDepth      = "depth"
	LogFieldMode       = "mode"
	LogFieldError      = "error"
	LogFieldCandidates = "candidates"
	LogFieldDirectives = "directives"
	LogFieldWrappers   = "wrappers"
	LogFieldDump       = "dump"
	LogFieldLength     = "length"
	LogFieldVersion    = "version"
	LogFieldKey        = "key"
)

// Metadata keys attached to errors
const (
	MetaKeyName         = "name"
	MetaKeyPrefix       = "prefix"
	MetaKeyTemplateName = "template_name"
	MetaKeyCandidates   = "candidates"
	MetaKeyMaxDepth     = "max_depth"
	MetaKeyLine         = "line"
	MetaKeyPath         = "path"
	MetaKeyField        = "field"
	MetaKeyUnit         = "unit"
	MetaKeyLoader       = "loader"
)

// Reserved binding names
const (
	ReservedVarPath = "__path"
	ReservedVarUnit = "__unit"
	ReservedVarEnv  = "__env"
	ReservedVarData = "__data"
)
