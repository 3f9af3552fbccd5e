package template

import (
	"strings"

	"github.com/aescanero/dago-template/internal/value"
)

// Template is a compiled template. It is immutable once compiled and safe
// to render from many goroutines.
type Template struct {
	Name    string
	Source  string
	Program *Program
}

// Program is an ordered sequence of nodes: a template body or a block body.
type Program struct {
	Nodes []Node
}

// Node is one element of a compiled Program
type Node interface {
	// Line is the 1-based source line the node starts on
	Line() int
}

// Pos is the source position of a node
type Pos struct {
	LineNo int
	Column int
}

// Line returns the source line
func (p Pos) Line() int { return p.LineNo }

// TextNode is literal text copied to the output
type TextNode struct {
	Pos
	Text string
}

// ExpressionNode is a bare mustache such as {{name}} or {{{body}}}. A simple
// name that resolves to a helper is called as one with no params.
type ExpressionNode struct {
	Pos
	Path *PathExpr
	Raw  bool
}

// HelperNode is a helper invocation, inline ({{fmt a}}) or block
// ({{#each items}}...{{/each}}).
type HelperNode struct {
	Pos
	Name    string
	Path    *PathExpr
	Params  []Expr
	Hash    []HashPair
	Raw     bool
	Block   bool
	Body    *Program
	Inverse *Program
}

// DecoratorNode is {{*name ...}} or the block form {{#*name ...}}...{{/name}}
type DecoratorNode struct {
	Pos
	Name   string
	Params []Expr
	Hash   []HashPair
	Body   *Program
}

// PartialNode is {{> name ctx key=value}}
type PartialNode struct {
	Pos
	Name    Expr
	Context Expr
	Hash    []HashPair
}

// Expr is a parameter expression: a path, a literal or a subexpression
type Expr interface {
	String() string
}

// PathExpr is a data path such as a.b, ../name, this or @index
type PathExpr struct {
	Original string
	Depth    int
	Parts    []string
	Data     bool
}

// String returns the path as written
func (p *PathExpr) String() string { return p.Original }

// IsSimple reports whether the path is a single plain identifier, the only
// form that may name a helper.
func (p *PathExpr) IsSimple() bool {
	return !p.Data && p.Depth == 0 && len(p.Parts) == 1 && !strings.ContainsAny(p.Original, "./[")
}

// LiteralExpr is a string, number, boolean or null literal
type LiteralExpr struct {
	Original string
	Value    value.Value
}

// String returns the literal as written
func (l *LiteralExpr) String() string { return l.Original }

// SubExpr is a parenthesised helper call used as a value
type SubExpr struct {
	Pos
	Name   string
	Params []Expr
	Hash   []HashPair
}

// String returns a normalised form of the subexpression
func (s *SubExpr) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(s.Name)
	for _, p := range s.Params {
		b.WriteString(" ")
		b.WriteString(p.String())
	}
	for _, h := range s.Hash {
		b.WriteString(" ")
		b.WriteString(h.Key)
		b.WriteString("=")
		b.WriteString(h.Value.String())
	}
	b.WriteString(")")
	return b.String()
}

// HashPair is one key=value named parameter
type HashPair struct {
	Key   string
	Value Expr
}
