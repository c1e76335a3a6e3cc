package dsl

import (
	"fmt"
	"strings"
	"unicode"
)

// tokenKind classifies a lexical token.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokLBrace
	tokRBrace
	tokColon
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokWord:
		return "word"
	case tokString:
		return "string"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokColon:
		return "':'"
	default:
		return "unknown token"
	}
}

// token is one lexeme with its 1-based source position.
type token struct {
	kind tokenKind
	text string // unquoted content for strings
	line int
	col  int
}

func (t token) describe() string {
	switch t.kind {
	case tokWord:
		return fmt.Sprintf("%q", t.text)
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return t.kind.String()
	}
}

// lexer splits DSL source into tokens. Comments run from '#' to end of line
// and whitespace is insignificant.
type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

// tokenize returns every token of the source terminated by tokEOF.
func tokenize(src string) ([]token, error) {
	lx := newLexer(src)
	var toks []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) peek() (rune, bool) {
	if lx.pos >= len(lx.src) {
		return 0, false
	}
	return lx.src[lx.pos], true
}

func (lx *lexer) advance() rune {
	r := lx.src[lx.pos]
	lx.pos++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) skipSpaceAndComments() {
	for {
		r, ok := lx.peek()
		if !ok {
			return
		}
		switch {
		case unicode.IsSpace(r):
			lx.advance()
		case r == '#':
			for {
				r, ok := lx.peek()
				if !ok || r == '\n' {
					break
				}
				lx.advance()
			}
		default:
			return
		}
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpaceAndComments()
	line, col := lx.line, lx.col
	r, ok := lx.peek()
	if !ok {
		return token{kind: tokEOF, line: line, col: col}, nil
	}
	switch r {
	case '{':
		lx.advance()
		return token{kind: tokLBrace, text: "{", line: line, col: col}, nil
	case '}':
		lx.advance()
		return token{kind: tokRBrace, text: "}", line: line, col: col}, nil
	case ':':
		lx.advance()
		return token{kind: tokColon, text: ":", line: line, col: col}, nil
	case '"':
		return lx.readString(line, col)
	}
	var b strings.Builder
	for {
		r, ok := lx.peek()
		if !ok || isDelimiter(r) {
			break
		}
		b.WriteRune(lx.advance())
	}
	return token{kind: tokWord, text: b.String(), line: line, col: col}, nil
}

func (lx *lexer) readString(line, col int) (token, error) {
	lx.advance() // opening quote
	var b strings.Builder
	for {
		r, ok := lx.peek()
		if !ok || r == '\n' {
			return token{}, newError(line, col, ErrSyntax, "unterminated string")
		}
		lx.advance()
		switch r {
		case '"':
			return token{kind: tokString, text: b.String(), line: line, col: col}, nil
		case '\\':
			esc, ok := lx.peek()
			if !ok {
				return token{}, newError(line, col, ErrSyntax, "unterminated string")
			}
			lx.advance()
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == '{' || r == '}' || r == ':' || r == '"' || r == '#'
}

// isIdent reports whether s is a valid node or property identifier.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '.' || r == '-'):
		default:
			return false
		}
	}
	return true
}
