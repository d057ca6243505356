package filter

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenError
	tokenIdent
	tokenNumber
	tokenString
	tokenOp
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of input"
	case tokenError:
		return "error"
	case tokenIdent:
		return "identifier"
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenOp:
		return "operator"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type token struct {
	typ     tokenType
	literal string
	pos     int
	// spaced is set when whitespace precedes the token.
	spaced bool
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() token {
	spaced := l.skipWhitespace()
	start := l.pos

	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, pos: start, spaced: spaced}
	}

	ch, w := utf8.DecodeRuneInString(l.input[l.pos:])
	switch {
	case ch == '"':
		return l.readString(spaced)
	case ch == '>' || ch == '<':
		l.pos += w
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
		}
		return token{typ: tokenOp, literal: l.input[start:l.pos], pos: start, spaced: spaced}
	case ch == '=' || ch == ':':
		l.pos += w
		return token{typ: tokenOp, literal: string(ch), pos: start, spaced: spaced}
	case isDigit(ch):
		for l.pos < len(l.input) && isDigit(rune(l.input[l.pos])) {
			l.pos++
		}
		return token{typ: tokenNumber, literal: l.input[start:l.pos], pos: start, spaced: spaced}
	case unicode.IsLetter(ch):
		for l.pos < len(l.input) {
			r, rw := utf8.DecodeRuneInString(l.input[l.pos:])
			if !unicode.IsLetter(r) && r != '_' {
				break
			}
			l.pos += rw
		}
		return token{typ: tokenIdent, literal: l.input[start:l.pos], pos: start, spaced: spaced}
	}

	l.pos += w
	return token{typ: tokenError, literal: fmt.Sprintf("unexpected character %q", ch), pos: start, spaced: spaced}
}

func (l *lexer) readString(spaced bool) token {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.input) {
		if l.input[l.pos] == '"' {
			lit := l.input[start+1 : l.pos]
			l.pos++
			return token{typ: tokenString, literal: lit, pos: start, spaced: spaced}
		}
		l.pos++
	}
	return token{typ: tokenError, literal: "unterminated string", pos: start, spaced: spaced}
}

func (l *lexer) skipWhitespace() bool {
	skipped := false
	for l.pos < len(l.input) {
		r, w := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += w
		skipped = true
	}
	return skipped
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
