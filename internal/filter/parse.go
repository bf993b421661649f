package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax marks malformed filter expressions.
var ErrSyntax = errors.New("filter syntax error")

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse compiles src against schema. An empty source (or a bare WHERE)
// yields True.
func Parse(src string, schema Schema) (Expr, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, schema: schema}
	if p.keyword("WHERE") {
		p.next()
	}
	if p.peek().kind == tokEOF {
		return True{}, nil
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return expr, nil
}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case c == '\'' || c == '"':
			start := i
			quoteChar := c
			var sb strings.Builder
			i++
			closed := false
			for i < len(src) {
				if src[i] == quoteChar {
					if i+1 < len(src) && src[i+1] == quoteChar {
						sb.WriteByte(quoteChar)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrSyntax, start)
			}
			tokens = append(tokens, token{tokString, sb.String(), start})
		case c == '=' || c == '<' || c == '>' || c == '!':
			start := i
			op := string(c)
			if i+1 < len(src) {
				pair := src[i : i+2]
				if pair == "<=" || pair == ">=" || pair == "!=" || pair == "<>" || pair == "==" {
					op = pair
				}
			}
			if op == "!" {
				return nil, fmt.Errorf("%w: unexpected '!' at offset %d", ErrSyntax, start)
			}
			i += len(op)
			tokens = append(tokens, token{tokOp, op, start})
		case c == '-' || c == '.' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(src) && (src[i] == '.' || (src[i] >= '0' && src[i] <= '9')) {
				i++
			}
			text := src[start:i]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("%w: bad number %q at offset %d", ErrSyntax, text, start)
			}
			tokens = append(tokens, token{tokNumber, text, start})
		case c == '_' || unicode.IsLetter(rune(c)) || c == '[' || c == '`':
			start := i
			if c == '[' || c == '`' {
				closing := byte(']')
				if c == '`' {
					closing = '`'
				}
				end := strings.IndexByte(src[i+1:], closing)
				if end < 0 {
					return nil, fmt.Errorf("%w: unterminated identifier at offset %d", ErrSyntax, start)
				}
				tokens = append(tokens, token{tokIdent, src[i+1 : i+1+end], start})
				i += end + 2
				continue
			}
			for i < len(src) && (src[i] == '_' || unicode.IsLetter(rune(src[i])) || (src[i] >= '0' && src[i] <= '9')) {
				i++
			}
			tokens = append(tokens, token{tokIdent, src[start:i], start})
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrSyntax, c, i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
	schema Schema
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) keyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && strings.EqualFold(tok.text, word)
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, tok.pos, fmt.Sprintf(format, args...))
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.keyword("NOT") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokLParen:
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return expr, nil
	case tok.kind == tokIdent && strings.EqualFold(tok.text, "instr"):
		return p.parseInstr()
	case tok.kind == tokIdent:
		return p.parseCondition()
	case tok.kind == tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	default:
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
}

func (p *parser) column() (string, Kind, error) {
	tok := p.next()
	if tok.kind != tokIdent {
		return "", 0, p.errorf(tok, "expected column name")
	}
	for name, kind := range p.schema {
		if name == tok.text {
			return name, kind, nil
		}
	}
	// SQLite column names are case-insensitive.
	for name, kind := range p.schema {
		if strings.EqualFold(name, tok.text) {
			return name, kind, nil
		}
	}
	return "", 0, p.errorf(tok, "unknown column %q", tok.text)
}

func (p *parser) stringLiteral() (string, error) {
	tok := p.next()
	if tok.kind != tokString {
		return "", p.errorf(tok, "expected quoted string")
	}
	return tok.text, nil
}

func (p *parser) parseInstr() (Expr, error) {
	p.next()
	if tok := p.next(); tok.kind != tokLParen {
		return nil, p.errorf(tok, "expected '(' after instr")
	}
	field, kind, err := p.column()
	if err != nil {
		return nil, err
	}
	if kind != KindString {
		return nil, fmt.Errorf("%w: instr requires a text column, %s is numeric", ErrSyntax, field)
	}
	if tok := p.next(); tok.kind != tokComma {
		return nil, p.errorf(tok, "expected ',' in instr")
	}
	needle, err := p.stringLiteral()
	if err != nil {
		return nil, err
	}
	if tok := p.next(); tok.kind != tokRParen {
		return nil, p.errorf(tok, "expected ')' after instr arguments")
	}
	expr := Instr{Field: field, Needle: needle, Op: OpGt, Num: 0}
	if p.peek().kind == tokOp {
		op, err := p.operator()
		if err != nil {
			return nil, err
		}
		tok := p.next()
		if tok.kind != tokNumber {
			return nil, p.errorf(tok, "instr compares against a number")
		}
		num, _ := strconv.ParseFloat(tok.text, 64)
		expr.Op = op
		expr.Num = num
	}
	return expr, nil
}

func (p *parser) operator() (Op, error) {
	tok := p.next()
	switch tok.text {
	case "=", "==":
		return OpEq, nil
	case "!=", "<>":
		return OpNe, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLe, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGe, nil
	}
	return "", p.errorf(tok, "expected comparison operator")
}

func (p *parser) parseCondition() (Expr, error) {
	field, kind, err := p.column()
	if err != nil {
		return nil, err
	}

	negate := false
	if p.keyword("NOT") {
		p.next()
		negate = true
		if !p.keyword("LIKE") && !p.keyword("IN") {
			return nil, p.errorf(p.peek(), "expected LIKE or IN after NOT")
		}
	}

	switch {
	case p.keyword("IS"):
		p.next()
		isNot := false
		if p.keyword("NOT") {
			p.next()
			isNot = true
		}
		if !p.keyword("NULL") {
			return nil, p.errorf(p.peek(), "expected NULL")
		}
		p.next()
		return IsNull{Field: field, Negate: isNot}, nil
	case p.keyword("CONTAINS"):
		p.next()
		needle, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		if kind != KindString {
			return nil, fmt.Errorf("%w: CONTAINS requires a text column, %s is numeric", ErrSyntax, field)
		}
		return Instr{Field: field, Needle: needle, Op: OpGt, Num: 0}, nil
	case p.keyword("LIKE"):
		p.next()
		pattern, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		return Like{Field: field, Pattern: pattern, Negate: negate}, nil
	case p.keyword("IN"):
		p.next()
		return p.parseInList(field, kind, negate)
	}

	op, err := p.operator()
	if err != nil {
		return nil, err
	}
	lit := p.next()
	switch {
	case kind == KindNumber && (lit.kind == tokNumber || lit.kind == tokString):
		num, err := strconv.ParseFloat(strings.TrimSpace(lit.text), 64)
		if err != nil {
			return nil, p.errorf(lit, "column %s is numeric, got %q", field, lit.text)
		}
		return Compare{Field: field, Kind: KindNumber, Op: op, Num: num}, nil
	case kind == KindString && (lit.kind == tokString || lit.kind == tokNumber):
		return Compare{Field: field, Kind: KindString, Op: op, Str: lit.text}, nil
	}
	return nil, p.errorf(lit, "expected literal after %s", op)
}

func (p *parser) parseInList(field string, kind Kind, negate bool) (Expr, error) {
	if tok := p.next(); tok.kind != tokLParen {
		return nil, p.errorf(tok, "expected '(' after IN")
	}
	expr := In{Field: field, Kind: kind, Negate: negate}
	for {
		lit := p.next()
		if lit.kind != tokString && lit.kind != tokNumber {
			return nil, p.errorf(lit, "expected literal in IN list")
		}
		if kind == KindNumber {
			num, err := strconv.ParseFloat(lit.text, 64)
			if err != nil {
				return nil, p.errorf(lit, "column %s is numeric, got %q", field, lit.text)
			}
			expr.Nums = append(expr.Nums, num)
		} else {
			expr.Strs = append(expr.Strs, lit.text)
		}
		sep := p.next()
		if sep.kind == tokRParen {
			return expr, nil
		}
		if sep.kind != tokComma {
			return nil, p.errorf(sep, "expected ',' or ')' in IN list")
		}
	}
}
