package template

import (
	"strconv"
	"strings"
	"unicode"
)

type tagKind int

const (
	tagExpr tagKind = iota
	tagBlock
	tagInverse
	tagClose
	tagElse
	tagDecorator
	tagBlockDecorator
	tagPartial
	tagComment
)

// tag is one {{...}} occurrence with its sigils removed
type tag struct {
	pos        Pos
	kind       tagKind
	raw        bool
	stripLeft  bool
	stripRight bool
	body       string
}

type tokenKind int

const (
	tokPath tokenKind = iota
	tokString
	tokNumber
	tokBool
	tokNull
	tokHashKey
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
}

// scanner walks template source and tracks line/column positions.
// Positions must be requested with non-decreasing offsets.
type scanner struct {
	src       string
	pos       int
	counted   int
	line      int
	lineStart int
}

func (s *scanner) position(offset int) Pos {
	for i := s.counted; i < offset && i < len(s.src); i++ {
		if s.src[i] == '\n' {
			s.line++
			s.lineStart = i + 1
		}
	}
	if offset > s.counted {
		s.counted = offset
	}
	return Pos{LineNo: s.line + 1, Column: offset - s.lineStart + 1}
}

// next returns the literal text up to the next tag and the tag itself.
// A nil tag means end of input.
func (s *scanner) next() (string, Pos, *tag, *CompileError) {
	textPos := s.position(s.pos)
	var text strings.Builder
	for {
		i := strings.Index(s.src[s.pos:], "{{")
		if i < 0 {
			text.WriteString(s.src[s.pos:])
			s.pos = len(s.src)
			return text.String(), textPos, nil, nil
		}
		open := s.pos + i
		if open > 0 && s.src[open-1] == '\\' {
			text.WriteString(s.src[s.pos : open-1])
			text.WriteString("{{")
			s.pos = open + 2
			continue
		}
		text.WriteString(s.src[s.pos:open])
		s.pos = open
		t, err := s.scanTag()
		return text.String(), textPos, t, err
	}
}

func (s *scanner) scanTag() (*tag, *CompileError) {
	start := s.pos
	t := &tag{pos: s.position(start)}
	i := start + 2
	closer := "}}"
	if i < len(s.src) && s.src[i] == '{' {
		t.raw = true
		closer = "}}}"
		i++
	}
	if i < len(s.src) && s.src[i] == '~' {
		t.stripLeft = true
		i++
	}

	if !t.raw && i < len(s.src) && s.src[i] == '!' {
		return s.scanComment(t, i)
	}

	end := findCloser(s.src, i, closer)
	if end < 0 {
		return nil, &CompileError{Kind: Unclosed, Line: t.pos.LineNo, Column: t.pos.Column, Reason: "unterminated tag"}
	}
	content := s.src[i:end]
	s.pos = end + len(closer)
	if strings.HasSuffix(content, "~") {
		t.stripRight = true
		content = content[:len(content)-1]
	}
	content = strings.TrimSpace(content)

	if t.raw {
		if content != "" && strings.ContainsRune("#/^>*&!", rune(content[0])) {
			return nil, &CompileError{Kind: UnknownSyntax, Line: t.pos.LineNo, Column: t.pos.Column, Reason: "triple-stash takes a plain expression"}
		}
		t.kind = tagExpr
		t.body = content
		return t, nil
	}

	switch {
	case strings.HasPrefix(content, "#*"):
		t.kind = tagBlockDecorator
		t.body = strings.TrimSpace(content[2:])
	case strings.HasPrefix(content, "#>"):
		return nil, &CompileError{Kind: UnknownSyntax, Line: t.pos.LineNo, Column: t.pos.Column, Reason: "partial blocks are not supported"}
	case strings.HasPrefix(content, "#"):
		t.kind = tagBlock
		t.body = strings.TrimSpace(content[1:])
	case strings.HasPrefix(content, "^"):
		t.body = strings.TrimSpace(content[1:])
		if t.body == "" {
			t.kind = tagElse
		} else {
			t.kind = tagInverse
		}
	case strings.HasPrefix(content, "/"):
		t.kind = tagClose
		t.body = strings.TrimSpace(content[1:])
	case strings.HasPrefix(content, "*"):
		t.kind = tagDecorator
		t.body = strings.TrimSpace(content[1:])
	case strings.HasPrefix(content, ">"):
		t.kind = tagPartial
		t.body = strings.TrimSpace(content[1:])
	case strings.HasPrefix(content, "&"):
		t.kind = tagExpr
		t.raw = true
		t.body = strings.TrimSpace(content[1:])
	case content == "else":
		t.kind = tagElse
	case strings.HasPrefix(content, "else") && len(content) > 4 && unicode.IsSpace(rune(content[4])):
		t.kind = tagElse
		t.body = strings.TrimSpace(content[4:])
	default:
		t.kind = tagExpr
		t.body = content
	}

	if t.body == "" && t.kind != tagElse {
		return nil, &CompileError{Kind: UnknownSyntax, Line: t.pos.LineNo, Column: t.pos.Column, Reason: "empty tag"}
	}
	return t, nil
}

func (s *scanner) scanComment(t *tag, i int) (*tag, *CompileError) {
	t.kind = tagComment
	rest := s.src[i:]
	terminator := "}}"
	if strings.HasPrefix(rest, "!--") {
		terminator = "--}}"
		if end := strings.Index(rest, "--~}}"); end >= 0 && end < indexOr(rest, "--}}", len(rest)) {
			t.stripRight = true
			s.pos = i + end + len("--~}}")
			return t, nil
		}
	}
	end := strings.Index(rest, terminator)
	if end < 0 {
		return nil, &CompileError{Kind: Unclosed, Line: t.pos.LineNo, Column: t.pos.Column, Reason: "unterminated comment"}
	}
	if terminator == "}}" && end > 0 && rest[end-1] == '~' {
		t.stripRight = true
	}
	s.pos = i + end + len(terminator)
	return t, nil
}

func indexOr(s, substr string, fallback int) int {
	if i := strings.Index(s, substr); i >= 0 {
		return i
	}
	return fallback
}

// findCloser returns the offset of closer starting at from, skipping quoted
// strings, or -1.
func findCloser(src string, from int, closer string) int {
	var quote byte
	for i := from; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if strings.HasPrefix(src[i:], closer) {
			return i
		}
	}
	return -1
}

// lexTag splits a tag body into tokens
func lexTag(body string) ([]token, string) {
	var toks []token
	i := 0
	for i < len(body) {
		c := body[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(':
			toks = append(toks, token{kind: tokOpen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokClose, text: ")"})
			i++
		case c == '"' || c == '\'':
			str, n, ok := readQuoted(body[i:])
			if !ok {
				return nil, "unterminated string literal"
			}
			toks = append(toks, token{kind: tokString, text: str})
			i += n
		case c == '|':
			return nil, "block params are not supported"
		case c == '=':
			return nil, "unexpected '='"
		default:
			start := i
			for i < len(body) {
				c = body[i]
				if c == '[' {
					end := strings.IndexByte(body[i:], ']')
					if end < 0 {
						return nil, "unterminated [segment]"
					}
					i += end + 1
					continue
				}
				if unicode.IsSpace(rune(c)) || c == '(' || c == ')' || c == '=' {
					break
				}
				i++
			}
			word := body[start:i]
			if i < len(body) && body[i] == '=' {
				toks = append(toks, token{kind: tokHashKey, text: word})
				i++
				continue
			}
			toks = append(toks, classifyWord(word))
		}
	}
	return toks, ""
}

func classifyWord(word string) token {
	switch word {
	case "true", "false":
		return token{kind: tokBool, text: word}
	case "null", "undefined":
		return token{kind: tokNull, text: word}
	}
	if isNumber(word) {
		return token{kind: tokNumber, text: word}
	}
	return token{kind: tokPath, text: word}
}

func isNumber(word string) bool {
	digits := strings.TrimPrefix(word, "-")
	if digits == "" || digits[0] < '0' || digits[0] > '9' {
		return false
	}
	_, err := strconv.ParseFloat(word, 64)
	return err == nil
}

// readQuoted reads a quoted literal at the start of s and returns its
// unescaped contents and the number of bytes consumed.
func readQuoted(s string) (string, int, bool) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && (s[i+1] == quote || s[i+1] == '\\') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if c == quote {
			return b.String(), i + 1, true
		}
		b.WriteByte(c)
	}
	return "", 0, false
}
