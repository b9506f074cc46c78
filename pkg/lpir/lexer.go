package lpir

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent     // bare word: module, function, entry, block0, iadd, i32, ...
	tokValueID   // v123
	tokBlockID   // block123
	tokFuncName  // %name
	tokNumber    // 123, -123, 0x7b, -0x7b
	tokFloat     // 1.5, -2.25
	tokArrow     // ->
	tokColon     // :
	tokComma     // ,
	tokLParen    // (
	tokRParen    // )
	tokLBrace    // {
	tokRBrace    // }
	tokEquals    // =
	tokDot       // .
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src []byte
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []byte(src)}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.pos++
			continue
		}
		if c == ';' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

func (l *lexer) next() (token, error) {
	l.skipTrivia()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{tokLParen, "(", start}, nil
	case c == ')':
		l.pos++
		return token{tokRParen, ")", start}, nil
	case c == '{':
		l.pos++
		return token{tokLBrace, "{", start}, nil
	case c == '}':
		l.pos++
		return token{tokRBrace, "}", start}, nil
	case c == ',':
		l.pos++
		return token{tokComma, ",", start}, nil
	case c == ':':
		l.pos++
		return token{tokColon, ":", start}, nil
	case c == '.':
		l.pos++
		return token{tokDot, ".", start}, nil
	case c == '=':
		l.pos++
		return token{tokEquals, "=", start}, nil
	case c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>':
		l.pos += 2
		return token{tokArrow, "->", start}, nil
	case c == '%':
		l.pos++
		nstart := l.pos
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		return token{tokFuncName, string(l.src[nstart:l.pos]), start}, nil
	case c == 'v' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]):
		l.pos++
		nstart := l.pos
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		return token{tokValueID, string(l.src[nstart:l.pos]), start}, nil
	case isDigit(c) || (c == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.lexNumber(start)
	case strings.HasPrefix(string(l.src[l.pos:]), "block") && l.pos+5 < len(l.src) && isDigit(l.src[l.pos+5]):
		l.pos += 5
		nstart := l.pos
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		return token{tokBlockID, "block" + string(l.src[nstart:l.pos]), start}, nil
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		return token{tokIdent, string(l.src[start:l.pos]), start}, nil
	default:
		return token{}, fmt.Errorf("unexpected character %q at byte %d", c, start)
	}
}

func (l *lexer) lexNumber(start int) (token, error) {
	if l.src[l.pos] == '-' {
		l.pos++
	}
	isHex := false
	if l.pos+1 < len(l.src) && l.src[l.pos] == '0' && (l.src[l.pos+1] == 'x' || l.src[l.pos+1] == 'X') {
		isHex = true
		l.pos += 2
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
		return token{tokNumber, string(l.src[start:l.pos]), start}, nil
	}
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	isFloat := false
	if l.pos < len(l.src) && l.src[l.pos] == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
		isFloat = true
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	_ = isHex
	if isFloat {
		return token{tokFloat, string(l.src[start:l.pos]), start}, nil
	}
	return token{tokNumber, string(l.src[start:l.pos]), start}, nil
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
