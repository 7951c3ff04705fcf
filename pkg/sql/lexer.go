package sql

import (
	"strings"
	"unicode"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokParam // $1, $2, ...
	tokQMark // ?
	tokPunct
)

type token struct {
	kind tokenKind
	text string // normalized text; for tokString this is the unescaped value
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

// tokenize splits the whole input into tokens, with tokPunct ";" acting
// as a statement separator the parser's top-level loop watches for.
func (l *lexer) tokenize() ([]token, error) {
	var out []token
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			out = append(out, token{kind: tokEOF})
			return out, nil
		}

		c := l.peek()
		switch {
		case c == '\'':
			s, err := l.readString()
			if err != nil {
				return nil, err
			}
			out = append(out, token{kind: tokString, text: s})
		case unicode.IsDigit(c):
			out = append(out, token{kind: tokNumber, text: l.readNumber()})
		case c == '$' && unicode.IsDigit(l.peekAt(1)):
			l.pos++
			out = append(out, token{kind: tokParam, text: l.readDigits()})
		case c == '?':
			l.pos++
			out = append(out, token{kind: tokQMark, text: "?"})
		case unicode.IsLetter(c) || c == '_':
			out = append(out, token{kind: tokIdent, text: l.readIdent()})
		case c == '<' && l.peekAt(1) == '>':
			l.pos += 2
			out = append(out, token{kind: tokPunct, text: "<>"})
		case c == '<' && l.peekAt(1) == '=':
			l.pos += 2
			out = append(out, token{kind: tokPunct, text: "<="})
		case c == '>' && l.peekAt(1) == '=':
			l.pos += 2
			out = append(out, token{kind: tokPunct, text: ">="})
		case strings.ContainsRune("(),.;*=<>", c):
			l.pos++
			out = append(out, token{kind: tokPunct, text: string(c)})
		default:
			return nil, &berrors.SqlError{Msg: "unexpected character in SQL: " + string(c)}
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) readString() (string, error) {
	l.pos++ // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", &berrors.SqlError{Msg: "unterminated string literal"}
		}
		c := l.src[l.pos]
		if c == '\'' {
			if l.peekAt(1) == '\'' {
				b.WriteRune('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return b.String(), nil
		}
		b.WriteRune(c)
		l.pos++
	}
}

func (l *lexer) readNumber() string {
	start := l.pos
	for l.pos < len(l.src) && (unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) readDigits() string {
	start := l.pos
	for l.pos < len(l.src) && unicode.IsDigit(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) readIdent() string {
	start := l.pos
	for l.pos < len(l.src) && (unicode.IsLetter(l.src[l.pos]) || unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '_' || l.src[l.pos] == '.') {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// countPlaceholders counts $N and ? tokens independently, per spec
// §4.11's Parse rule for defaulting missing OIDs.
func countPlaceholders(src string) int {
	l := newLexer(src)
	toks, err := l.tokenize()
	if err != nil {
		return 0
	}
	n := 0
	for _, t := range toks {
		if t.kind == tokParam || t.kind == tokQMark {
			n++
		}
	}
	return n
}

// CountPlaceholders exposes countPlaceholders to callers outside the
// package (the extended query protocol's Parse step, spec §4.11).
func CountPlaceholders(src string) int {
	return countPlaceholders(src)
}
