package main

// CLI identity
const (
	CLIName        = "blade"
	CLIDescription = "Blade-style template compiler and renderer"
)

// Command names
const (
	CmdNameRender  = "render"
	CmdNameCompile = "compile"
	CmdNameTrace   = "trace"
	CmdNameVersion = "version"
)

// Flag names - long form
const (
	FlagViews    = "views"
	FlagData     = "data"
	FlagDataFile = "data-file"
	FlagConfig   = "config"
	FlagDev      = "dev"
	FlagOut      = "out"
	FlagFormat   = "format"
	FlagVerbose  = "verbose"
	FlagParallel = "parallel"
)

// Flag names - short form
const (
	FlagDataShort     = "d"
	FlagDataFileShort = "f"
	FlagConfigShort   = "c"
	FlagOutShort      = "o"
	FlagFormatShort   = "F"
)

// Flag default values
const (
	FlagDefaultFormat = "text"
)

// Output formats
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

// Exit codes
const (
	ExitCodeSuccess     = 0
	ExitCodeError       = 1
	ExitCodeUsageError  = 2
	ExitCodeRenderError = 3
	ExitCodeInputError  = 4
)

// Input source indicators
const (
	InputSourceStdin = "-"
)

// Output file naming
const (
	OutputFileExt   = ".html"
	FilePermissions = 0644
	DirPermissions  = 0755
)

// Error messages - ALL must be constants
const (
	ErrMsgInvalidJSON       = "invalid JSON data"
	ErrMsgInvalidYAML       = "invalid YAML data"
	ErrMsgReadFileFailed    = "failed to read file"
	ErrMsgWriteOutputFailed = "failed to write output"
	ErrMsgEngineFailed      = "failed to configure engine"
	ErrMsgRenderFailed      = "render failed"
	ErrMsgCompileFailed     = "compile failed"
	ErrMsgInvalidFormat     = "invalid output format"
	ErrMsgInvalidLine       = "line must be a positive integer"
	ErrMsgLoggerFailed      = "failed to create logger"
)

// Help text
const (
	HelpRootShort    = "Compile and render Blade templates"
	HelpRenderShort  = "Render one or more templates"
	HelpRenderLong   = `Render one or more templates from a views directory.

Templates are named the way @include names them (pages.home or pages/home).
With several names the templates are rendered concurrently and printed in
argument order, or written to <out>/<name>.html when --out is given.`
	HelpCompileShort = "Print the compiled document of a template file"
	HelpTraceShort   = "Map a line of a compiled document to its template line"
	HelpVersionShort = "Show version information"

	HelpFlagViews    = "root directory of the templates"
	HelpFlagData     = "JSON object with the bindings"
	HelpFlagDataFile = "JSON or YAML file with the bindings (- for stdin)"
	HelpFlagConfig   = "engine configuration file (.yaml, .yml or .toml)"
	HelpFlagDev      = "development mode: diagnostics for missing templates"
	HelpFlagOut      = "directory for rendered files"
	HelpFlagFormat   = "output format: text or json"
	HelpFlagVerbose  = "log engine activity to stderr"
	HelpFlagParallel = "maximum concurrent renders (0 = number of CPUs)"
)

// Format string constants
const (
	FmtErrorWithCause   = "%s: %v\n"
	FmtErrorPrefix      = "error: "
	FmtTraceFrame       = "    at %s (%s:%d)\n"
	FmtLocation         = "%s:%d\n"
	FmtLocationFrame    = "  in %s (%s:%d)\n"
	FmtNewline          = "\n"
	VersionTextTemplate = "blade %s (commit %s, built %s, %s)"
	VersionUnknown      = "unknown"
	RootPathLabel       = "<root>"
)
