package prob

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAffine parses an index expression such as "m*256+k" or "i-1".
// Multiplication is only allowed between a constant and a sub-expression.
func ParseAffine(s string) (*AffineExpr, error) {
	p := &exprParser{input: s}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("trailing input %q in expression %q", p.input[p.pos:], s)
	}
	return e, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (*AffineExpr, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			lhs = Add(lhs, rhs)
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			lhs = Sub(lhs, rhs)
		default:
			return lhs, nil
		}
	}
}

func (p *exprParser) parseTerm() (*AffineExpr, error) {
	lhs, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			switch {
			case rhs.Kind == ExprConst:
				lhs = MulCoeff(rhs.Value, lhs)
			case lhs.Kind == ExprConst:
				lhs = MulCoeff(lhs.Value, rhs)
			default:
				// Kept in the tree; Linearize rejects it later.
				lhs = &AffineExpr{Kind: ExprMul, Value: 0, LHS: lhs, RHS: rhs}
			}
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			if rhs.Kind != ExprConst {
				return nil, fmt.Errorf("division by non-constant in %q", p.input)
			}
			lhs = DivCoeff(lhs, rhs.Value)
		case '%':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			if rhs.Kind != ExprConst {
				return nil, fmt.Errorf("modulo by non-constant in %q", p.input)
			}
			lhs = ModCoeff(lhs, rhs.Value)
		default:
			return lhs, nil
		}
	}
}

func (p *exprParser) parseFactor() (*AffineExpr, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing ')' in %q", p.input)
		}
		p.pos++
		return e, nil
	case c == '-':
		p.pos++
		e, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return MulCoeff(-1, e), nil
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
			p.pos++
		}
		v, err := strconv.Atoi(p.input[start:p.pos])
		if err != nil {
			return nil, err
		}
		return Const(v), nil
	case isIdentStart(c):
		start := p.pos
		for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
			p.pos++
		}
		return Var(p.input[start:p.pos]), nil
	default:
		return nil, fmt.Errorf("unexpected character %q in expression %q", c, p.input)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// ParseOperand parses the kernel-file operand syntax: "$3" is an immediate,
// "A[m][k]" is an array cell, anything else names a register.
func ParseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}
	if s[0] == '$' {
		v, err := strconv.Atoi(s[1:])
		if err != nil {
			return Operand{}, fmt.Errorf("bad immediate %q: %w", s, err)
		}
		return NewImm(v), nil
	}
	if i := strings.IndexByte(s, '['); i >= 0 {
		name := s[:i]
		if name == "" {
			return Operand{}, fmt.Errorf("array reference %q has no name", s)
		}
		rest := s[i:]
		var index []*AffineExpr
		for rest != "" {
			if rest[0] != '[' {
				return Operand{}, fmt.Errorf("malformed array reference %q", s)
			}
			j := strings.IndexByte(rest, ']')
			if j < 0 {
				return Operand{}, fmt.Errorf("unterminated index in %q", s)
			}
			e, err := ParseAffine(rest[1:j])
			if err != nil {
				return Operand{}, fmt.Errorf("array reference %q: %w", s, err)
			}
			index = append(index, e)
			rest = rest[j+1:]
		}
		return NewArrayRef(name, index...), nil
	}
	return NewReg(s), nil
}
