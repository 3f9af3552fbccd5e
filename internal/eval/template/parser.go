package template

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/aescanero/dago-template/internal/value"
)

// Compile parses source into a Template without registering it
func Compile(name, source string) (*Template, error) {
	p := &parser{name: name, scan: &scanner{src: source}}
	prog, term, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	if term != nil {
		what := "{{else}}"
		if term.kind == tagClose {
			what = "{{/" + term.body + "}}"
		}
		return nil, p.errorf(UnknownSyntax, term.pos, "unexpected %s", what)
	}
	return &Template{Name: name, Source: source, Program: prog}, nil
}

type parser struct {
	name      string
	scan      *scanner
	lastText  *TextNode
	stripNext bool
}

func (p *parser) errorf(kind CompileErrorKind, pos Pos, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Kind:     kind,
		Template: p.name,
		Line:     pos.LineNo,
		Column:   pos.Column,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func (p *parser) withName(err *CompileError) *CompileError {
	err.Template = p.name
	return err
}

// parseProgram collects nodes until end of input, a close tag or an else
// tag. The terminating tag is returned to the caller, nil at end of input.
func (p *parser) parseProgram() (*Program, *tag, error) {
	prog := &Program{}
	for {
		text, textPos, t, cerr := p.scan.next()
		if cerr != nil {
			return nil, nil, p.withName(cerr)
		}
		p.appendText(prog, text, textPos)
		if t == nil {
			return prog, nil, nil
		}

		if t.stripLeft && p.lastText != nil {
			p.lastText.Text = strings.TrimRightFunc(p.lastText.Text, unicode.IsSpace)
		}
		p.lastText = nil
		p.stripNext = t.stripRight

		switch t.kind {
		case tagComment:
			continue
		case tagClose, tagElse:
			return prog, t, nil
		}

		node, err := p.parseTag(t)
		if err != nil {
			return nil, nil, err
		}
		prog.Nodes = append(prog.Nodes, node)
	}
}

func (p *parser) appendText(prog *Program, text string, pos Pos) {
	if p.stripNext {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
		p.stripNext = false
	}
	if text == "" {
		return
	}
	node := &TextNode{Pos: pos, Text: text}
	prog.Nodes = append(prog.Nodes, node)
	p.lastText = node
}

func (p *parser) parseTag(t *tag) (Node, error) {
	toks, reason := lexTag(t.body)
	if reason != "" {
		return nil, p.errorf(UnknownSyntax, t.pos, "%s", reason)
	}

	switch t.kind {
	case tagExpr:
		return p.parseMustache(t, toks)
	case tagBlock, tagInverse:
		node, err := p.parseBlockOpen(t, toks)
		if err != nil {
			return nil, err
		}
		if err := p.parseBlockRest(node, node.Path.Original, t); err != nil {
			return nil, err
		}
		if t.kind == tagInverse {
			node.Body, node.Inverse = node.Inverse, node.Body
		}
		return node, nil
	case tagDecorator, tagBlockDecorator:
		return p.parseDecorator(t, toks)
	case tagPartial:
		return p.parsePartial(t, toks)
	}
	return nil, p.errorf(UnknownSyntax, t.pos, "unexpected tag")
}

func (p *parser) parseMustache(t *tag, toks []token) (Node, error) {
	if len(toks) == 0 {
		return nil, p.errorf(UnknownSyntax, t.pos, "empty expression")
	}
	if toks[0].kind != tokPath {
		return nil, p.errorf(UnknownSyntax, t.pos, "expected a path or helper name, got %q", toks[0].text)
	}
	head, err := p.parsePath(toks[0].text, t.pos)
	if err != nil {
		return nil, err
	}
	if len(toks) == 1 {
		return &ExpressionNode{Pos: t.pos, Path: head, Raw: t.raw}, nil
	}
	if !head.IsSimple() {
		return nil, p.errorf(UnknownSyntax, t.pos, "helper name %q must be a simple identifier", head.Original)
	}
	params, hash, err := p.parseArgs(toks[1:], t.pos)
	if err != nil {
		return nil, err
	}
	return &HelperNode{Pos: t.pos, Name: head.Original, Path: head, Params: params, Hash: hash, Raw: t.raw}, nil
}

func (p *parser) parseBlockOpen(t *tag, toks []token) (*HelperNode, error) {
	if len(toks) == 0 || toks[0].kind != tokPath {
		return nil, p.errorf(UnknownSyntax, t.pos, "block must start with a helper name or path")
	}
	head, err := p.parsePath(toks[0].text, t.pos)
	if err != nil {
		return nil, err
	}
	params, hash, err := p.parseArgs(toks[1:], t.pos)
	if err != nil {
		return nil, err
	}
	if (len(params) > 0 || len(hash) > 0) && !head.IsSimple() {
		return nil, p.errorf(UnknownSyntax, t.pos, "helper name %q must be a simple identifier", head.Original)
	}
	return &HelperNode{Pos: t.pos, Name: head.Original, Path: head, Params: params, Hash: hash, Block: true}, nil
}

// parseBlockRest parses a block body up to its close tag, following else
// chains. Chained blocks share closeName and the single close tag.
func (p *parser) parseBlockRest(node *HelperNode, closeName string, open *tag) error {
	body, term, err := p.parseProgram()
	if err != nil {
		return err
	}
	if term == nil {
		return p.errorf(Unclosed, open.pos, "missing {{/%s}}", closeName)
	}
	node.Body = body

	if term.kind == tagElse {
		if term.body != "" {
			toks, reason := lexTag(term.body)
			if reason != "" {
				return p.errorf(UnknownSyntax, term.pos, "%s", reason)
			}
			chained, err := p.parseBlockOpen(term, toks)
			if err != nil {
				return err
			}
			if err := p.parseBlockRest(chained, closeName, open); err != nil {
				return err
			}
			node.Inverse = &Program{Nodes: []Node{chained}}
			return nil
		}

		inverse, next, err := p.parseProgram()
		if err != nil {
			return err
		}
		if next == nil {
			return p.errorf(Unclosed, open.pos, "missing {{/%s}}", closeName)
		}
		if next.kind == tagElse {
			return p.errorf(UnknownSyntax, next.pos, "duplicate {{else}} in {{#%s}}", closeName)
		}
		node.Inverse = inverse
		term = next
	}

	if term.body != closeName {
		return p.errorf(Unclosed, term.pos, "{{/%s}} does not match {{#%s}}", term.body, closeName)
	}
	return nil
}

func (p *parser) parseDecorator(t *tag, toks []token) (Node, error) {
	if len(toks) == 0 || toks[0].kind != tokPath {
		return nil, p.errorf(UnknownSyntax, t.pos, "decorator must start with a name")
	}
	head, err := p.parsePath(toks[0].text, t.pos)
	if err != nil {
		return nil, err
	}
	if !head.IsSimple() {
		return nil, p.errorf(UnknownSyntax, t.pos, "decorator name %q must be a simple identifier", head.Original)
	}
	params, hash, err := p.parseArgs(toks[1:], t.pos)
	if err != nil {
		return nil, err
	}
	node := &DecoratorNode{Pos: t.pos, Name: head.Original, Params: params, Hash: hash}
	if t.kind == tagDecorator {
		return node, nil
	}

	body, term, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	if term == nil {
		return nil, p.errorf(Unclosed, t.pos, "missing {{/%s}}", node.Name)
	}
	if term.kind == tagElse {
		return nil, p.errorf(UnknownSyntax, term.pos, "{{else}} is not allowed in decorator {{#*%s}}", node.Name)
	}
	if term.body != node.Name {
		return nil, p.errorf(Unclosed, term.pos, "{{/%s}} does not match {{#*%s}}", term.body, node.Name)
	}
	node.Body = body
	return node, nil
}

func (p *parser) parsePartial(t *tag, toks []token) (Node, error) {
	if len(toks) == 0 {
		return nil, p.errorf(UnknownSyntax, t.pos, "partial name is required")
	}

	node := &PartialNode{Pos: t.pos}
	i := 0
	switch toks[0].kind {
	case tokPath, tokString:
		node.Name = &LiteralExpr{Original: toks[0].text, Value: value.String(toks[0].text)}
		i = 1
	case tokOpen:
		name, err := p.parseExpr(toks, &i, t.pos)
		if err != nil {
			return nil, err
		}
		node.Name = name
	default:
		return nil, p.errorf(UnknownSyntax, t.pos, "invalid partial name %q", toks[0].text)
	}

	params, hash, err := p.parseArgs(toks[i:], t.pos)
	if err != nil {
		return nil, err
	}
	if len(params) > 1 {
		return nil, p.errorf(UnknownSyntax, t.pos, "partial takes at most one context param")
	}
	if len(params) == 1 {
		node.Context = params[0]
	}
	node.Hash = hash
	return node, nil
}

// parseArgs parses positional params followed by key=value pairs
func (p *parser) parseArgs(toks []token, pos Pos) ([]Expr, []HashPair, error) {
	var params []Expr
	var hash []HashPair
	i := 0
	for i < len(toks) {
		if toks[i].kind == tokHashKey {
			key := toks[i].text
			i++
			if i >= len(toks) {
				return nil, nil, p.errorf(UnknownSyntax, pos, "missing value for %s=", key)
			}
			val, err := p.parseExpr(toks, &i, pos)
			if err != nil {
				return nil, nil, err
			}
			hash = append(hash, HashPair{Key: key, Value: val})
			continue
		}
		if len(hash) > 0 {
			return nil, nil, p.errorf(UnknownSyntax, pos, "positional param %q after named params", toks[i].text)
		}
		expr, err := p.parseExpr(toks, &i, pos)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, expr)
	}
	return params, hash, nil
}

func (p *parser) parseExpr(toks []token, i *int, pos Pos) (Expr, error) {
	tok := toks[*i]
	*i++
	switch tok.kind {
	case tokPath:
		return p.parsePath(tok.text, pos)
	case tokString:
		return &LiteralExpr{Original: strconv.Quote(tok.text), Value: value.String(tok.text)}, nil
	case tokNumber:
		n, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf(UnknownSyntax, pos, "invalid number %q", tok.text)
		}
		return &LiteralExpr{Original: tok.text, Value: value.Number(n)}, nil
	case tokBool:
		return &LiteralExpr{Original: tok.text, Value: value.Bool(tok.text == "true")}, nil
	case tokNull:
		return &LiteralExpr{Original: tok.text, Value: value.Null()}, nil
	case tokOpen:
		if *i >= len(toks) || toks[*i].kind != tokPath {
			return nil, p.errorf(UnknownSyntax, pos, "subexpression must start with a helper name")
		}
		name := toks[*i].text
		*i++
		end := *i
		depth := 0
		for ; end < len(toks); end++ {
			if toks[end].kind == tokOpen {
				depth++
			} else if toks[end].kind == tokClose {
				if depth == 0 {
					break
				}
				depth--
			}
		}
		if end >= len(toks) {
			return nil, p.errorf(UnknownSyntax, pos, "unterminated subexpression (%s", name)
		}
		params, hash, err := p.parseArgs(toks[*i:end], pos)
		if err != nil {
			return nil, err
		}
		*i = end + 1
		return &SubExpr{Pos: pos, Name: name, Params: params, Hash: hash}, nil
	}
	return nil, p.errorf(UnknownSyntax, pos, "unexpected %q", tok.text)
}

// parsePath splits a path expression into its scope depth and segments
func (p *parser) parsePath(original string, pos Pos) (*PathExpr, error) {
	path := &PathExpr{Original: original}
	s := original
	if strings.HasPrefix(s, "@") {
		path.Data = true
		s = s[1:]
	}
	for strings.HasPrefix(s, "../") {
		path.Depth++
		s = s[3:]
	}
	if s == ".." {
		path.Depth++
		s = ""
	}
	switch {
	case s == "this" || s == "." || s == "":
		s = ""
	case strings.HasPrefix(s, "this.") || strings.HasPrefix(s, "this/"):
		s = s[5:]
	case strings.HasPrefix(s, "./"):
		s = s[2:]
	}

	for s != "" {
		var segment string
		if s[0] == '[' {
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, p.errorf(UnknownSyntax, pos, "unterminated segment in %q", original)
			}
			segment = s[1:end]
			s = s[end+1:]
		} else {
			end := strings.IndexAny(s, "./")
			if end < 0 {
				end = len(s)
			}
			segment = s[:end]
			s = s[end:]
			if segment == "" {
				return nil, p.errorf(UnknownSyntax, pos, "invalid path %q", original)
			}
		}
		path.Parts = append(path.Parts, segment)
		if s != "" {
			if s[0] != '.' && s[0] != '/' {
				return nil, p.errorf(UnknownSyntax, pos, "invalid path %q", original)
			}
			s = s[1:]
			if s == "" {
				return nil, p.errorf(UnknownSyntax, pos, "invalid path %q", original)
			}
		}
	}

	if path.Data && len(path.Parts) == 0 {
		return nil, p.errorf(UnknownSyntax, pos, "invalid data variable %q", original)
	}
	return path, nil
}
