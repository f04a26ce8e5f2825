package internal

// Fragment syntax used by the compiled document
const (
	FragmentOpen      = "<?blade"
	FragmentClose     = "?>"
	FragmentQuote     = '"'
	FragmentEscape    = '\\'
	FragmentSeparator = " "
)

// Fragment keywords
const (
	KeywordEcho       = "echo"
	KeywordRaw        = "raw"
	KeywordText       = "text"
	KeywordIf         = "if"
	KeywordElseIf     = "elseif"
	KeywordElse       = "else"
	KeywordEndIf      = "endif"
	KeywordForeach    = "foreach"
	KeywordEndForeach = "endforeach"
	KeywordFor        = "for"
	KeywordEndFor     = "endfor"
	KeywordWhile      = "while"
	KeywordEndWhile   = "endwhile"
	KeywordDo         = "do"
	KeywordEndDo      = "enddo"
	KeywordSwitch     = "switch"
	KeywordCase       = "case"
	KeywordDefault    = "default"
	KeywordEndSwitch  = "endswitch"
	KeywordBreak      = "break"
	KeywordContinue   = "continue"
	KeywordPhp        = "php"
	KeywordComment    = "comment"
	KeywordOpen       = "open"
	KeywordClose      = "close"
)

// Directive syntax characters
const (
	CharAt         = '@'
	CharOpenParen  = '('
	CharCloseParen = ')'
	CharDollar     = '$'
	CharColon      = ':'
	CharNewline    = '\n'
	CharSemicolon  = ';'
	CharComma      = ','
	CharSingleQ    = '\''
	CharDoubleQ    = '"'
	CharBackslash  = '\\'
)

// Component tag syntax
const (
	ComponentTagOpen    = "<x-"
	ComponentTagClose   = "</x-"
	ComponentSlotKey    = "slot"
	ComponentPathSep    = "/"
	ComponentBindMarker = ":"
	ComponentBoolValue  = "true"
)

// Reserved engine variables that bindings may not shadow
const (
	ReservedVarPath = "__path"
	ReservedVarUnit = "__unit"
	ReservedVarEnv  = "__env"
	ReservedVarData = "__data"
	LoopVarName     = "loop"
)

// Default limits
const (
	DefaultMaxDepth          = 64
	DefaultMaxComponentDepth = 32
	DefaultMaxIterations     = 10000
	DefaultMaxLoopIterations = 10000
)

// Log message constants
const (
	LogMsgRegistryCreated      = "registry created"
	LogMsgDirectiveRegistered  = "directive registered"
	LogMsgDirectiveOverwritten = "directive overwritten - last-writer-wins"
	LogMsgWrapperRegistered    = "wrapper registered"
	LogMsgWrapperOverwritten   = "wrapper overwritten - last-writer-wins"
	LogMsgRegistryFrozen       = "registry frozen"
	LogMsgRegionPassStart      = "starting region pass"
	LogMsgRegionPassEnd        = "region pass complete"
	LogMsgRegionMatched        = "region matched"
	LogMsgRegionSkipped        = "region overlaps protected range"
	LogMsgDirectivePassStart   = "starting directive pass"
	LogMsgDirectivePassEnd     = "directive pass complete"
	LogMsgDirectiveMatched     = "directive matched"
	LogMsgDirectiveReplaced    = "directive replaced whole document"
	LogMsgComponentPassStart   = "starting component pass"
	LogMsgComponentPassEnd     = "component pass complete"
	LogMsgComponentMatched     = "component matched"
	LogMsgBindingUnresolved    = "component binding unresolved - using literal"
	LogMsgInterpreterStart     = "starting execution"
	LogMsgInterpreterEnd       = "execution complete"
	LogMsgReservedBinding      = "binding skipped - reserved variable"
	LogMsgLoopLimit            = "loop iteration limit reached"
	LogMsgExpressionCompiled   = "expression compiled"
)

// Log field names
const (
	LogFieldName        = "name"
	LogFieldPrefix      = "prefix"
	LogFieldSuffix      = "suffix"
	LogFieldArity       = "arity"
	LogFieldSequence    = "sequence"
	LogFieldReplace     = "replace_whole"
	LogFieldStart       = "start"
	LogFieldEnd         = "end"
	LogFieldCount       = "count"
	LogFieldLength      = "length"
	LogFieldDepth       = "depth"
	LogFieldAttribute   = "attribute"
	LogFieldExpression  = "expression"
	LogFieldNodes       = "node_count"
	LogFieldLine        = "line"
	LogFieldKeyword     = "keyword"
	LogFieldSelfClosing = "self_closing"
	LogFieldUnit        = "unit"
	LogFieldPath        = "path"
	LogFieldError       = "error"
)

// Error format strings
const (
	ErrFmtWithName      = "%s: %s"
	ErrFmtWithLine      = "%s at line %d"
	ErrFmtWithCause     = "%s: %v"
	ErrFmtKeywordAtLine = "%s [%s] at line %d"
	ErrFmtWithLimit     = "%s (limit %d)"
)

// String constants
const (
	StringValueEmpty = ""
)
