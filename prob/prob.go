// Package prob defines the loop-kernel description consumed by the mapper.
//
// A kernel is a perfectly-nested affine loop plus a predicated
// register-transfer body. The iteration space lists the loop dimensions
// outermost first; traversal is row-major, the innermost dimension is
// exhausted before the enclosing one advances. Body operations read and
// write named registers, literal immediates, and array cells addressed by
// affine expressions over the loop iterators.
package prob

import "fmt"

// Dimension is one loop of the nest.
type Dimension struct {
	Name  string
	Lower int
	Upper int
	Step  int
}

// Trips returns the number of iterations of this dimension.
func (d Dimension) Trips() int {
	return (d.Upper - d.Lower + d.Step - 1) / d.Step
}

// IterationSpace is the ordered loop nest, outermost dimension first.
type IterationSpace []Dimension

// TotalIterations returns the product of all dimension trip counts.
func (s IterationSpace) TotalIterations() int {
	total := 1
	for _, d := range s {
		total *= d.Trips()
	}
	return total
}

// IndexOf returns the position of the named dimension, or -1.
func (s IterationSpace) IndexOf(name string) int {
	for i, d := range s {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the iterator names in nesting order.
func (s IterationSpace) Names() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.Name
	}
	return names
}

// Opcode identifies the kind of a body operation.
type Opcode int

const (
	Load Opcode = iota
	Store
	Compare
	Arith
	MAC
	Move
)

// Name returns the name of the opcode.
func (o Opcode) Name() string {
	switch o {
	case Load:
		return "load"
	case Store:
		return "store"
	case Compare:
		return "compare"
	case Arith:
		return "arith"
	case MAC:
		return "mac"
	case Move:
		return "move"
	default:
		panic("invalid opcode")
	}
}

// DefaultLatency returns the cycle latency assumed for the opcode when the
// operation does not carry an explicit duration.
func (o Opcode) DefaultLatency() int {
	switch o {
	case Load:
		return 2
	case Store, Compare, Arith, MAC, Move:
		return 1
	default:
		panic("invalid opcode")
	}
}

// OpcodeByName maps the textual form used in kernel files to an Opcode.
func OpcodeByName(name string) (Opcode, error) {
	switch name {
	case "load":
		return Load, nil
	case "store":
		return Store, nil
	case "compare", "cmp":
		return Compare, nil
	case "arith", "add", "sub":
		return Arith, nil
	case "mac", "multiply-accumulate":
		return MAC, nil
	case "move", "mov":
		return Move, nil
	default:
		return 0, fmt.Errorf("unknown opcode %q", name)
	}
}

// CondCode is a comparison condition used by guards.
type CondCode int

const (
	LE CondCode = iota
	GE
	EQ
	NE
	LT
	GT
)

// Name returns the name of the condition code.
func (c CondCode) Name() string {
	switch c {
	case LE:
		return "LE"
	case GE:
		return "GE"
	case EQ:
		return "EQ"
	case NE:
		return "NE"
	case LT:
		return "LT"
	case GT:
		return "GT"
	default:
		panic("invalid condition code")
	}
}

// CondByName maps the textual form of a condition code.
func CondByName(name string) (CondCode, error) {
	switch name {
	case "LE":
		return LE, nil
	case "GE":
		return GE, nil
	case "EQ":
		return EQ, nil
	case "NE":
		return NE, nil
	case "LT":
		return LT, nil
	case "GT":
		return GT, nil
	default:
		return 0, fmt.Errorf("unknown condition code %q", name)
	}
}

// Guard predicates an operation on a previously computed comparison
// register. The destination commits only when the guard holds at run time;
// the operation still occupies its issue slot unconditionally, since a PE
// cannot skip a cycle dynamically.
type Guard struct {
	Reg  string
	Cond CondCode
}

// OperandKind discriminates the Operand variants.
type OperandKind int

const (
	RegOperand OperandKind = iota
	ImmOperand
	ArrayOperand
)

// Operand is a register name, a literal immediate, or an array cell
// addressed by one affine index expression per array dimension.
type Operand struct {
	Kind  OperandKind
	Reg   string
	Imm   int
	Array string
	Index []*AffineExpr
}

// NewReg returns a register operand.
func NewReg(name string) Operand {
	return Operand{Kind: RegOperand, Reg: name}
}

// NewImm returns an immediate operand.
func NewImm(v int) Operand {
	return Operand{Kind: ImmOperand, Imm: v}
}

// NewArrayRef returns an array-cell operand.
func NewArrayRef(array string, index ...*AffineExpr) Operand {
	return Operand{Kind: ArrayOperand, Array: array, Index: index}
}

// String renders the operand in kernel-file syntax.
func (o Operand) String() string {
	switch o.Kind {
	case RegOperand:
		return o.Reg
	case ImmOperand:
		return fmt.Sprintf("$%d", o.Imm)
	case ArrayOperand:
		s := o.Array
		for _, e := range o.Index {
			s += "[" + e.String() + "]"
		}
		return s
	default:
		panic("invalid operand kind")
	}
}

// Operation is one body statement.
type Operation struct {
	Opcode  Opcode
	Dst     Operand
	Src     []Operand
	Guard   *Guard
	Latency int // 0 means the opcode default
}

// Duration returns the operation latency in cycles.
func (op Operation) Duration() int {
	if op.Latency > 0 {
		return op.Latency
	}
	return op.Opcode.DefaultLatency()
}

// String renders the operation in kernel-file syntax.
func (op Operation) String() string {
	s := op.Opcode.Name() + " " + op.Dst.String()
	for _, src := range op.Src {
		s += ", " + src.String()
	}
	if op.Guard != nil {
		s += fmt.Sprintf(" ?%s %s", op.Guard.Cond.Name(), op.Guard.Reg)
	}
	return s
}

// Kernel is a complete loop problem: the iteration space and the ordered
// body. Execution order within one iteration follows body order; the
// dependency graph builder is free to reorder independent operations.
type Kernel struct {
	Space IterationSpace
	Body  []Operation
}

// Validate checks the structural invariants of the kernel description.
func (k *Kernel) Validate() error {
	if len(k.Space) == 0 {
		return fmt.Errorf("kernel has no loop dimensions")
	}
	seen := map[string]bool{}
	for _, d := range k.Space {
		if d.Name == "" {
			return fmt.Errorf("loop dimension with empty name")
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate loop dimension %q", d.Name)
		}
		seen[d.Name] = true
		if d.Lower >= d.Upper {
			return fmt.Errorf("dimension %q: lower bound %d is not below upper bound %d",
				d.Name, d.Lower, d.Upper)
		}
		if d.Step <= 0 {
			return fmt.Errorf("dimension %q: step %d is not positive", d.Name, d.Step)
		}
	}
	if len(k.Body) == 0 {
		return fmt.Errorf("kernel has an empty body")
	}
	for i, op := range k.Body {
		if op.Dst.Kind == ImmOperand {
			return fmt.Errorf("op %d: immediate destination", i)
		}
		if op.Opcode == Store && op.Dst.Kind != ArrayOperand {
			return fmt.Errorf("op %d: store destination must be an array cell", i)
		}
	}
	return nil
}
