package internal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ComponentHost is the compile-time environment a component pass runs in.
type ComponentHost interface {
	// Lookup resolves a dotted binding path against the current scope and then
	// the global table.
	Lookup(path string) (interface{}, bool)
	// Evaluate executes a compiled fragment-bearing snippet to text.
	Evaluate(ctx context.Context, compiled string) (string, error)
	// RenderComponent expands the named component with its bound attributes.
	// A missing component is not an error; the host decides what to print.
	RenderComponent(ctx context.Context, name string, attrs map[string]interface{}, depth int) (string, error)
}

// ComponentTag is one located <x-name ...> occurrence.
type ComponentTag struct {
	Name        string
	Attributes  map[string]interface{}
	RawAttrs    string
	Inner       string
	HasInner    bool
	SelfClosing bool
	Start       int
	End         int
}

// AttributeToken is one parsed attribute of a component tag.
type AttributeToken struct {
	Key   string
	Value string
	Bound bool // :key form
	Bare  bool // key without a value
}

var attributePattern = regexp.MustCompile(`(:?[\w\-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)
var bareAttributePattern = regexp.MustCompile(`:?[\w\-]+`)
var maskPattern = regexp.MustCompile("\x1a[0-9]+\x1a")

// ComponentRenderer expands <x-...> tags until none are left.
type ComponentRenderer struct {
	MaxDepth      int
	MaxIterations int
	logger        *zap.Logger
	attrCache     sync.Map // raw attribute string -> []AttributeToken
}

// NewComponentRenderer creates a renderer with the given limits. Non-positive
// limits fall back to the defaults.
func NewComponentRenderer(maxDepth, maxIterations int, logger *zap.Logger) *ComponentRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxComponentDepth
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &ComponentRenderer{
		MaxDepth:      maxDepth,
		MaxIterations: maxIterations,
		logger:        logger,
	}
}

// Render replaces every component tag of doc with the rendered component as an
// opaque single-line text fragment. A document without tags is returned as is.
func (r *ComponentRenderer) Render(ctx context.Context, doc string, host ComponentHost, depth int) (string, error) {
	if !strings.Contains(doc, ComponentTagOpen) {
		return doc, nil
	}
	if depth > r.MaxDepth {
		return doc, NewLimitError(ErrMsgComponentDepth, r.MaxDepth)
	}

	masked, frags := MaskFragments(doc)
	if !strings.Contains(masked, ComponentTagOpen) {
		return doc, nil
	}

	r.logger.Debug(LogMsgComponentPassStart, zap.Int(LogFieldDepth, depth))

	from := 0
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return doc, err
		}

		tag, ok := FindComponent(masked, from)
		if !ok {
			break
		}
		if iteration > r.MaxIterations {
			return doc, NewLimitError(ErrMsgComponentIterations, r.MaxIterations)
		}

		r.logger.Debug(LogMsgComponentMatched,
			zap.String(LogFieldName, tag.Name),
			zap.Int(LogFieldDepth, depth),
			zap.Bool(LogFieldSelfClosing, tag.SelfClosing))

		attrs, err := r.bindAttributes(ctx, tag.RawAttrs, frags, host)
		if err != nil {
			return doc, err
		}

		slot := StringValueEmpty
		if tag.HasInner && tag.Inner != StringValueEmpty {
			inner, err := r.Render(ctx, UnmaskFragments(tag.Inner, frags), host, depth+1)
			if err != nil {
				return doc, err
			}
			slot, err = host.Evaluate(ctx, inner)
			if err != nil {
				return doc, err
			}
		}
		attrs[ComponentSlotKey] = slot

		out, err := host.RenderComponent(ctx, tag.Name, attrs, depth+1)
		if err != nil {
			return doc, err
		}

		// keep the physical line count of the replaced tag
		replacement := TextFragment(out) + LinePadding(strings.Count(masked[tag.Start:tag.End], "\n"))
		placeholder := maskPlaceholder(len(frags))
		frags = append(frags, replacement)
		masked = masked[:tag.Start] + placeholder + masked[tag.End:]
		from = tag.Start + len(placeholder)
	}

	r.logger.Debug(LogMsgComponentPassEnd, zap.Int(LogFieldDepth, depth))
	return UnmaskFragments(masked, frags), nil
}

// ParseAttributes tokenizes a raw attribute string. Results are cached per raw
// string, so repeated calls return identical tokens.
func (r *ComponentRenderer) ParseAttributes(raw string) []AttributeToken {
	if cached, ok := r.attrCache.Load(raw); ok {
		return cached.([]AttributeToken)
	}
	tokens := ParseAttributes(raw)
	actual, _ := r.attrCache.LoadOrStore(raw, tokens)
	return actual.([]AttributeToken)
}

func (r *ComponentRenderer) bindAttributes(ctx context.Context, raw string, frags []string, host ComponentHost) (map[string]interface{}, error) {
	tokens := r.ParseAttributes(raw)
	attrs := make(map[string]interface{}, len(tokens)+1)
	for _, tok := range tokens {
		if tok.Bare {
			attrs[tok.Key] = true
			continue
		}
		value := UnmaskFragments(tok.Value, frags)
		if tok.Bound {
			path := strings.TrimPrefix(strings.TrimSpace(value), string(CharDollar))
			if v, ok := host.Lookup(path); ok {
				attrs[tok.Key] = v
				continue
			}
			r.logger.Warn(LogMsgBindingUnresolved,
				zap.String(LogFieldAttribute, tok.Key),
				zap.String(LogFieldExpression, value))
			attrs[tok.Key] = value
			continue
		}
		if ContainsFragment(value) {
			evaluated, err := host.Evaluate(ctx, value)
			if err != nil {
				return nil, err
			}
			value = evaluated
		}
		attrs[tok.Key] = value
	}
	return attrs, nil
}

// ParseAttributes tokenizes a raw attribute string without caching.
func ParseAttributes(raw string) []AttributeToken {
	var tokens []AttributeToken
	last := 0
	for _, m := range attributePattern.FindAllStringSubmatchIndex(raw, -1) {
		tokens = append(tokens, bareAttributes(raw[last:m[0]])...)
		last = m[1]

		key := raw[m[2]:m[3]]
		value := StringValueEmpty
		for g := 2; g <= 4; g++ {
			if m[2*g] >= 0 {
				value = raw[m[2*g]:m[2*g+1]]
				break
			}
		}
		tok := AttributeToken{Key: key, Value: value}
		if strings.HasPrefix(key, ComponentBindMarker) {
			tok.Key = key[len(ComponentBindMarker):]
			tok.Bound = true
		}
		tokens = append(tokens, tok)
	}
	tokens = append(tokens, bareAttributes(raw[last:])...)
	return tokens
}

func bareAttributes(gap string) []AttributeToken {
	var tokens []AttributeToken
	gap = maskPattern.ReplaceAllString(gap, FragmentSeparator)
	for _, word := range bareAttributePattern.FindAllString(gap, -1) {
		word = strings.TrimPrefix(word, ComponentBindMarker)
		if word == StringValueEmpty {
			continue
		}
		tokens = append(tokens, AttributeToken{Key: word, Value: ComponentBoolValue, Bare: true})
	}
	return tokens
}

// FindComponent returns the first component tag at or after from.
// A paired tag without a matching closing tag is returned as a terminal tag
// without inner content.
func FindComponent(text string, from int) (ComponentTag, bool) {
	pos := from
	for pos < len(text) {
		idx := strings.Index(text[pos:], ComponentTagOpen)
		if idx < 0 {
			return ComponentTag{}, false
		}
		start := pos + idx
		pos = start + len(ComponentTagOpen)

		tag, ok := scanOpeningTag(text, start)
		if !ok {
			continue
		}
		if tag.SelfClosing {
			return tag, true
		}

		innerStart := tag.End
		closeStart, closeEnd, found := findClosingTag(text, tag.Name, innerStart)
		if !found {
			return tag, true
		}
		tag.Inner = text[innerStart:closeStart]
		tag.HasInner = true
		tag.End = closeEnd
		return tag, true
	}
	return ComponentTag{}, false
}

// scanOpeningTag parses "<x-name attrs>" or "<x-name attrs/>" at text[start].
func scanOpeningTag(text string, start int) (ComponentTag, bool) {
	i := start + len(ComponentTagOpen)
	nameStart := i
	for i < len(text) && isComponentNameChar(text[i]) {
		i++
	}
	name := text[nameStart:i]
	if strings.HasSuffix(name, ComponentPathSep) && i < len(text) && text[i] == '>' {
		name = strings.TrimSuffix(name, ComponentPathSep)
		i--
	}
	if name == StringValueEmpty {
		return ComponentTag{}, false
	}
	if i < len(text) && !isTagSpace(text[i]) && text[i] != '>' && text[i] != '/' {
		return ComponentTag{}, false
	}

	attrStart := i
	var quote byte
	for ; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case CharSingleQ, CharDoubleQ:
			quote = c
		case '>':
			tag := ComponentTag{Name: name, Start: start, End: i + 1}
			raw := text[attrStart:i]
			if strings.HasSuffix(raw, "/") {
				tag.SelfClosing = true
				raw = raw[:len(raw)-1]
			}
			tag.RawAttrs = strings.TrimSpace(raw)
			return tag, true
		}
	}
	return ComponentTag{}, false
}

// findClosingTag finds the "</x-name>" that closes an opening tag, counting
// nested same-name openings.
func findClosingTag(text, name string, from int) (int, int, bool) {
	openMarker := ComponentTagOpen + name
	closeMarker := ComponentTagClose + name
	depth := 1
	pos := from
	for pos < len(text) {
		nextOpen := indexTagName(text, openMarker, pos)
		nextClose := indexTagName(text, closeMarker, pos)
		if nextClose < 0 {
			return 0, 0, false
		}
		if nextOpen >= 0 && nextOpen < nextClose {
			nested, ok := scanOpeningTag(text, nextOpen)
			if ok && !nested.SelfClosing {
				depth++
			}
			pos = nextOpen + len(openMarker)
			continue
		}
		end := skipTagSpace(text, nextClose+len(closeMarker))
		if end >= len(text) || text[end] != '>' {
			pos = nextClose + len(closeMarker)
			continue
		}
		depth--
		if depth == 0 {
			return nextClose, end + 1, true
		}
		pos = end + 1
	}
	return 0, 0, false
}

// indexTagName finds marker at or after pos where the name is not continued.
func indexTagName(text, marker string, pos int) int {
	for pos < len(text) {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			return -1
		}
		at := pos + idx
		after := at + len(marker)
		if after >= len(text) || !isComponentNameChar(text[after]) || text[after] == '/' {
			return at
		}
		pos = after
	}
	return -1
}

// ComponentPath converts a component name to a template path.
func ComponentPath(name string) string {
	name = strings.ReplaceAll(name, ".", ComponentPathSep)
	return strings.ReplaceAll(name, `\`, ComponentPathSep)
}

func maskPlaceholder(idx int) string {
	return fmt.Sprintf("%c%d%c", maskDelim, idx, maskDelim)
}

func isComponentNameChar(c byte) bool {
	return isWordChar(c) || c == '.' || c == '-' || c == '/' || c == '\\'
}

func isTagSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func skipTagSpace(text string, i int) int {
	for i < len(text) && isTagSpace(text[i]) {
		i++
	}
	return i
}

// LimitError reports an exceeded nesting or iteration bound.
type LimitError struct {
	Message string
	Limit   int
}

// NewLimitError creates a new limit error
func NewLimitError(message string, limit int) *LimitError {
	return &LimitError{Message: message, Limit: limit}
}

// Error implements the error interface
func (e *LimitError) Error() string {
	return fmt.Sprintf(ErrFmtWithLimit, e.Message, e.Limit)
}

// Component error message constants
const (
	ErrMsgComponentDepth      = "component nesting exceeds maximum depth"
	ErrMsgComponentIterations = "component expansion exceeds maximum iterations"
)
