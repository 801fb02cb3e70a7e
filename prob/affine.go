package prob

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ExprKind discriminates AffineExpr nodes.
type ExprKind int

const (
	ExprVar ExprKind = iota
	ExprConst
	ExprAdd
	ExprSub
	ExprMul // coefficient times sub-expression
	ExprDiv // sub-expression divided by coefficient
	ExprMod // sub-expression modulo coefficient
)

// AffineExpr is an index expression over loop iterators. Multiplication,
// division and modulo only take a constant coefficient; anything else is
// not affine and is rejected by Linearize.
type AffineExpr struct {
	Kind  ExprKind
	Name  string // ExprVar
	Value int    // ExprConst, or the coefficient of Mul/Div/Mod
	LHS   *AffineExpr
	RHS   *AffineExpr
}

// Var returns an iterator reference.
func Var(name string) *AffineExpr {
	return &AffineExpr{Kind: ExprVar, Name: name}
}

// Const returns a constant expression.
func Const(v int) *AffineExpr {
	return &AffineExpr{Kind: ExprConst, Value: v}
}

// Add returns lhs + rhs.
func Add(lhs, rhs *AffineExpr) *AffineExpr {
	return &AffineExpr{Kind: ExprAdd, LHS: lhs, RHS: rhs}
}

// Sub returns lhs - rhs.
func Sub(lhs, rhs *AffineExpr) *AffineExpr {
	return &AffineExpr{Kind: ExprSub, LHS: lhs, RHS: rhs}
}

// MulCoeff returns coeff * e.
func MulCoeff(coeff int, e *AffineExpr) *AffineExpr {
	return &AffineExpr{Kind: ExprMul, Value: coeff, LHS: e}
}

// DivCoeff returns e / coeff.
func DivCoeff(e *AffineExpr, coeff int) *AffineExpr {
	return &AffineExpr{Kind: ExprDiv, Value: coeff, LHS: e}
}

// ModCoeff returns e % coeff.
func ModCoeff(e *AffineExpr, coeff int) *AffineExpr {
	return &AffineExpr{Kind: ExprMod, Value: coeff, LHS: e}
}

// String renders the expression in kernel-file syntax.
func (e *AffineExpr) String() string {
	switch e.Kind {
	case ExprVar:
		return e.Name
	case ExprConst:
		return strconv.Itoa(e.Value)
	case ExprAdd:
		return e.LHS.String() + "+" + e.RHS.String()
	case ExprSub:
		return e.LHS.String() + "-" + e.RHS.String()
	case ExprMul:
		if e.RHS != nil {
			return e.LHS.String() + "*" + e.RHS.String()
		}
		return fmt.Sprintf("%s*%d", e.LHS.String(), e.Value)
	case ExprDiv:
		return fmt.Sprintf("(%s)/%d", e.LHS.String(), e.Value)
	case ExprMod:
		return fmt.Sprintf("(%s)%%%d", e.LHS.String(), e.Value)
	default:
		panic("invalid expression kind")
	}
}

// LinearForm is an affine expression reduced to per-iterator coefficients
// plus a constant term. Iterators absent from Coeffs have coefficient 0.
type LinearForm struct {
	Coeffs   map[string]int
	Constant int
}

// Equal reports whether two linear forms are identical.
func (f LinearForm) Equal(o LinearForm) bool {
	if f.Constant != o.Constant {
		return false
	}
	for v, c := range f.Coeffs {
		if o.Coeffs[v] != c {
			return false
		}
	}
	for v, c := range o.Coeffs {
		if f.Coeffs[v] != c {
			return false
		}
	}
	return true
}

// SameCoeffs reports whether the two forms have identical coefficients,
// ignoring the constant term.
func (f LinearForm) SameCoeffs(o LinearForm) bool {
	for v, c := range f.Coeffs {
		if o.Coeffs[v] != c {
			return false
		}
	}
	for v, c := range o.Coeffs {
		if f.Coeffs[v] != c {
			return false
		}
	}
	return true
}

// Key returns a canonical textual form usable as a map key.
func (f LinearForm) Key() string {
	vars := make([]string, 0, len(f.Coeffs))
	for v, c := range f.Coeffs {
		if c != 0 {
			vars = append(vars, v)
		}
	}
	sort.Strings(vars)
	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "%d*%s+", f.Coeffs[v], v)
	}
	fmt.Fprintf(&b, "%d", f.Constant)
	return b.String()
}

// Linearize reduces the expression to a LinearForm over the given
// iterators. It fails when the expression references an unknown symbol or
// contains a division or modulo, which the dependence analysis cannot
// reason about.
func (e *AffineExpr) Linearize(iters []string) (LinearForm, error) {
	form := LinearForm{Coeffs: map[string]int{}}
	if err := e.linearizeInto(&form, 1, iters); err != nil {
		return LinearForm{}, err
	}
	return form, nil
}

func (e *AffineExpr) linearizeInto(form *LinearForm, scale int, iters []string) error {
	switch e.Kind {
	case ExprVar:
		for _, it := range iters {
			if it == e.Name {
				form.Coeffs[e.Name] += scale
				return nil
			}
		}
		return fmt.Errorf("symbol %q is not a loop iterator", e.Name)
	case ExprConst:
		form.Constant += scale * e.Value
		return nil
	case ExprAdd:
		if err := e.LHS.linearizeInto(form, scale, iters); err != nil {
			return err
		}
		return e.RHS.linearizeInto(form, scale, iters)
	case ExprSub:
		if err := e.LHS.linearizeInto(form, scale, iters); err != nil {
			return err
		}
		return e.RHS.linearizeInto(form, -scale, iters)
	case ExprMul:
		if e.RHS != nil {
			return fmt.Errorf("product of two iterators in %q is not affine", e.String())
		}
		return e.LHS.linearizeInto(form, scale*e.Value, iters)
	case ExprDiv:
		return fmt.Errorf("division in index expression %q is not affine", e.String())
	case ExprMod:
		return fmt.Errorf("modulo in index expression %q is not affine", e.String())
	default:
		panic("invalid expression kind")
	}
}
