package internal

// Node is an instruction of a parsed compiled document.
type Node interface {
	// Line is the 1-based physical line of the node in the compiled document.
	Line() int
	// Keyword is the fragment keyword that produced the node.
	Keyword() string
}

type nodeBase struct {
	line    int
	keyword string
}

func (n nodeBase) Line() int       { return n.line }
func (n nodeBase) Keyword() string { return n.keyword }

// TextNode is literal output.
type TextNode struct {
	nodeBase
	Text string
}

// EchoNode prints an expression, HTML-escaped unless Raw is set.
type EchoNode struct {
	nodeBase
	Expr string
	Raw  bool
}

// CommentNode is a development-mode comment; it prints nothing.
type CommentNode struct {
	nodeBase
	Text string
}

// IfBranch is a single if/elseif arm.
type IfBranch struct {
	Cond string
	Line int
	Body []Node
}

// IfNode is an if/elseif/else chain.
type IfNode struct {
	nodeBase
	Branches []IfBranch
	Else     []Node
	HasElse  bool
}

// ForeachNode iterates a collection.
type ForeachNode struct {
	nodeBase
	Collection string
	Key        string
	Value      string
	Body       []Node
}

// ForNode is a C-style loop.
type ForNode struct {
	nodeBase
	Init string
	Cond string
	Step string
	Body []Node
}

// WhileNode loops while Cond holds.
type WhileNode struct {
	nodeBase
	Cond string
	Body []Node
}

// DoWhileNode runs Body at least once, then while Cond holds.
type DoWhileNode struct {
	nodeBase
	Cond     string
	CondLine int
	Body     []Node
}

// SwitchCase is one case or default arm.
type SwitchCase struct {
	Value   string
	Default bool
	Line    int
	Body    []Node
}

// SwitchNode compares Subject against each case, falling through until break.
type SwitchNode struct {
	nodeBase
	Subject string
	Cases   []SwitchCase
}

// BreakNode leaves the nearest loop or switch. An optional Cond makes it
// conditional.
type BreakNode struct {
	nodeBase
	Cond string
}

// ContinueNode skips to the next iteration of the nearest loop.
type ContinueNode struct {
	nodeBase
	Cond string
}

// PhpNode runs a list of statements.
type PhpNode struct {
	nodeBase
	Statements []string
}

// BlockNode is a spliced sub-document delimited by open/close markers.
type BlockNode struct {
	nodeBase
	Kind string
	Path string
	From int // logical line of Path the block starts at
	With string
	Body []Node
}

// Program is a parsed compiled document.
type Program struct {
	Nodes []Node
	Lines int
}
