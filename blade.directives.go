package blade

import (
	"fmt"
	"strings"

	"github.com/itsatony/go-blade/internal"
)

type directiveDef struct {
	name         string
	handler      DirectiveHandler
	arity        int
	sequence     int
	replaceWhole bool
}

type wrapperDef struct {
	prefix         string
	suffix         string
	handler        WrapperHandler
	requiresParams bool
}

// registerBuiltinDirectives installs the standard directive and wrapper set.
func registerBuiltinDirectives(e *Engine) error {
	wrappers := []wrapperDef{
		{WrapperVerbatimOpen, WrapperVerbatimClose, verbatimWrapper, false},
		{WrapperSectionOpen, WrapperSectionClose, sectionWrapper, true},
		{WrapperCommentOpen, WrapperCommentClose, commentWrapper, false},
		{WrapperPhpOpen, WrapperPhpClose, fragmentWrapper(internal.KeywordPhp), false},
		{WrapperRawOpen, WrapperRawClose, fragmentWrapper(internal.KeywordRaw), false},
		{WrapperEchoOpen, WrapperEchoClose, fragmentWrapper(internal.KeywordEcho), false},
	}
	for _, w := range wrappers {
		if err := e.RegisterWrapper(w.prefix, w.suffix, w.handler, w.requiresParams); err != nil {
			return err
		}
	}

	directives := []directiveDef{
		{DirectiveIf, expressionFragment(internal.KeywordIf, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveElseIf, expressionFragment(internal.KeywordElseIf, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveElse, bareFragment(internal.KeywordElse), ArityNone, SequenceDefault, false},
		{DirectiveEndIf, bareFragment(internal.KeywordEndIf), ArityNone, SequenceDefault, false},
		{DirectiveUnless, expressionFragment(internal.KeywordIf, "!(%s)"), ArityExpression, SequenceDefault, false},
		{DirectiveEndUnless, bareFragment(internal.KeywordEndIf), ArityNone, SequenceDefault, false},
		{DirectiveIsset, expressionFragment(internal.KeywordIf, "isset(%s)"), ArityExpression, SequenceDefault, false},
		{DirectiveEndIsset, bareFragment(internal.KeywordEndIf), ArityNone, SequenceDefault, false},
		{DirectiveEmpty, expressionFragment(internal.KeywordIf, "empty(%s)"), ArityExpression, SequenceDefault, false},
		{DirectiveEndEmpty, bareFragment(internal.KeywordEndIf), ArityNone, SequenceDefault, false},
		{DirectiveSwitch, expressionFragment(internal.KeywordSwitch, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveCase, expressionFragment(internal.KeywordCase, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveDefault, bareFragment(internal.KeywordDefault), ArityNone, SequenceDefault, false},
		{DirectiveEndSwitch, bareFragment(internal.KeywordEndSwitch), ArityNone, SequenceDefault, false},
		{DirectiveFor, expressionFragment(internal.KeywordFor, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveEndFor, bareFragment(internal.KeywordEndFor), ArityNone, SequenceDefault, false},
		{DirectiveForeach, expressionFragment(internal.KeywordForeach, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveEndForeach, bareFragment(internal.KeywordEndForeach), ArityNone, SequenceDefault, false},
		{DirectiveWhile, expressionFragment(internal.KeywordWhile, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveEndWhile, bareFragment(internal.KeywordEndWhile), ArityNone, SequenceDefault, false},
		{DirectiveDo, bareFragment(internal.KeywordDo), ArityNone, SequenceDefault, false},
		{DirectiveEndDo, expressionFragment(internal.KeywordEndDo, "%s"), ArityExpression, SequenceDefault, false},
		{DirectiveBreak, optionalFragment(internal.KeywordBreak), ArityExpression, SequenceDefault, false},
		{DirectiveContinue, optionalFragment(internal.KeywordContinue), ArityExpression, SequenceDefault, false},
		{DirectiveJSON, expressionFragment(internal.KeywordRaw, "json(%s)"), ArityExpression, SequenceDefault, false},
		{DirectiveInclude, includeDirective, ArityExpression, SequenceDefault, false},
		{DirectiveYield, yieldDirective, ArityExpression, SequenceDefault, false},
		{DirectiveExtends, extendsDirective, ArityContent, SequenceLayout, true},
		{DirectiveTemplate, templateDirective, ArityContent, SequenceDefault, true},
	}
	for _, d := range directives {
		if err := e.RegisterDirective(d.name, d.handler, d.arity, d.sequence, d.replaceWhole); err != nil {
			return err
		}
	}
	// @break and @continue take an optional condition
	for _, name := range []string{DirectiveBreak, DirectiveContinue} {
		if err := e.registry.AllowBareForm(name); err != nil {
			return NewRegistrationError(name, "", err)
		}
	}
	return nil
}

// expressionFragment emits keyword with the expression spliced into format.
func expressionFragment(keyword, format string) DirectiveHandler {
	return func(c *Compilation, expression, content string) (string, error) {
		return internal.Fragment(keyword, fmt.Sprintf(format, expression)), nil
	}
}

// optionalFragment emits keyword with the expression as its only argument,
// or bare when there is none.
func optionalFragment(keyword string) DirectiveHandler {
	bare := internal.Fragment(keyword)
	return func(c *Compilation, expression, content string) (string, error) {
		if expression == "" {
			return bare, nil
		}
		return internal.Fragment(keyword, expression), nil
	}
}

func bareFragment(keyword string) DirectiveHandler {
	fragment := internal.Fragment(keyword)
	return func(c *Compilation, expression, content string) (string, error) {
		return fragment, nil
	}
}

func fragmentWrapper(keyword string) WrapperHandler {
	return func(c *Compilation, expression, param string) (string, error) {
		return internal.Fragment(keyword, expression), nil
	}
}

func verbatimWrapper(c *Compilation, expression, param string) (string, error) {
	return internal.TextLines(c.RegionBody()), nil
}

func commentWrapper(c *Compilation, expression, param string) (string, error) {
	if !c.Development() {
		return "", nil
	}
	return internal.Fragment(internal.KeywordComment, expression), nil
}

// sectionWrapper compiles the section body and stores it as a marker block
// pointing back at the defining template.
func sectionWrapper(c *Compilation, expression, param string) (string, error) {
	name := unquote(param)
	compiled, err := c.CompileString(expression)
	if err != nil {
		return "", err
	}
	c.SetSection(name, internal.WrapBlock(BlockKindSection, c.Path(), c.Line(), "", compiled))
	return "", nil
}

// includeDirective handles @include('name') and @include('name', {data}).
func includeDirective(c *Compilation, expression, content string) (string, error) {
	name, with := splitFirstArgument(expression)
	return c.Include(name, with)
}

// yieldDirective handles @yield('name') and @yield('name', default).
func yieldDirective(c *Compilation, expression, content string) (string, error) {
	name, def := splitFirstArgument(expression)
	if section, ok := c.Section(unquote(name)); ok {
		return section, nil
	}
	if def != "" {
		return internal.Fragment(internal.KeywordEcho, def), nil
	}
	return "", nil
}

// extendsDirective replaces the child document with its compiled layout. The
// child's sections were stored by the region pass and are visible to the
// layout's @yield.
func extendsDirective(c *Compilation, expression, content string) (string, error) {
	name := NormalizeTemplateName(expression, c.engine.config.extensions)
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
	return internal.WrapBlock(BlockKindLayout, src.Name, 1, "", compiled), nil
}

// templateDirective is the legacy layout form: the layout's @pageContent is
// replaced by the rest of the document.
func templateDirective(c *Compilation, expression, content string) (string, error) {
	content = internal.RemoveDirective(content, DirectiveTemplate)
	if strings.TrimSpace(expression) == "" {
		return content, nil
	}
	name := NormalizeTemplateName(expression, c.engine.config.extensions)
	src, err := c.load(c.ctx, name)
	if err != nil {
		if IsTemplateNotFound(err) {
			return c.missing(DiagFmtTemplateMissing, name, name, err, true)
		}
		return "", err
	}
	layout, err := c.descend(src.Name).compileSource(src.Content)
	if err != nil {
		return "", err
	}
	return strings.Replace(layout, PageContentMarker, content, 1), nil
}

// splitFirstArgument splits "a, b, c" into "a" and "b, c" outside quotes and
// brackets.
func splitFirstArgument(expression string) (string, string) {
	parts := internal.SplitStatements(expression, ',')
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], ", ")
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}
