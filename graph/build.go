package graph

import (
	"fmt"

	"github.com/sarchlab/loom/prob"
)

type cellWrite struct {
	op    int
	forms []prob.LinearForm
}

type builder struct {
	kernel *prob.Kernel
	iters  []string
	edges  []Edge
	seen   map[string]bool

	regWriters  map[string][]int // body indices writing each register, in order
	cellWriters map[string][]cellWrite
}

// Build derives the dependency graph of the kernel. It fails with
// *MalformedProgramError when a register is read but never written, an
// index expression is not affine in the iterators, or a guard references a
// register that no compare defines.
func Build(kernel *prob.Kernel) (*Graph, error) {
	if err := kernel.Validate(); err != nil {
		return nil, &MalformedProgramError{Op: -1, Reason: err.Error()}
	}

	b := &builder{
		kernel:      kernel,
		iters:       kernel.Space.Names(),
		seen:        map[string]bool{},
		regWriters:  map[string][]int{},
		cellWriters: map[string][]cellWrite{},
	}

	if err := b.collectWriters(); err != nil {
		return nil, err
	}
	if err := b.addEdges(); err != nil {
		return nil, err
	}

	g := &Graph{Kernel: kernel, Edges: b.edges}
	n := len(kernel.Body)
	g.outs = make([][]int, n)
	g.ins = make([][]int, n)
	for ei, e := range b.edges {
		g.outs[e.Producer] = append(g.outs[e.Producer], ei)
		g.ins[e.Consumer] = append(g.ins[e.Consumer], ei)
	}
	return g, nil
}

func (b *builder) collectWriters() error {
	for i, op := range b.kernel.Body {
		switch op.Dst.Kind {
		case prob.RegOperand:
			b.regWriters[op.Dst.Reg] = append(b.regWriters[op.Dst.Reg], i)
		case prob.ArrayOperand:
			forms, err := b.linearizeIndex(i, op.Dst)
			if err != nil {
				return err
			}
			b.cellWriters[op.Dst.Array] = append(b.cellWriters[op.Dst.Array],
				cellWrite{op: i, forms: forms})
		}
	}
	return nil
}

func (b *builder) linearizeIndex(op int, o prob.Operand) ([]prob.LinearForm, error) {
	forms := make([]prob.LinearForm, len(o.Index))
	for d, e := range o.Index {
		form, err := e.Linearize(b.iters)
		if err != nil {
			return nil, &MalformedProgramError{Op: op, Reason: err.Error()}
		}
		forms[d] = form
	}
	return forms, nil
}

func (b *builder) addEdges() error {
	for i, op := range b.kernel.Body {
		for _, src := range op.Src {
			switch src.Kind {
			case prob.RegOperand:
				if err := b.addRegRead(i, src.Reg); err != nil {
					return err
				}
			case prob.ImmOperand:
				// Immediates are sourceless: no producer edge.
			case prob.ArrayOperand:
				if err := b.addCellRead(i, src); err != nil {
					return err
				}
			}
		}

		if op.Guard != nil {
			if err := b.addGuardRead(i, op.Guard.Reg); err != nil {
				return err
			}
		}

		b.addOutputEdges(i, op)
	}
	return nil
}

// addRegRead connects a register read to its last writer. A read with no
// earlier writer but a later one consumes the previous iteration's value,
// carried across the innermost dimension.
func (b *builder) addRegRead(consumer int, reg string) error {
	writers := b.regWriters[reg]
	if len(writers) == 0 {
		return &MalformedProgramError{
			Op:     consumer,
			Reason: fmt.Sprintf("register %q read but never written", reg),
		}
	}
	if w, ok := lastBefore(writers, consumer); ok {
		b.addEdge(Edge{Producer: w, Consumer: consumer,
			Distance: b.zeroDistance(), Kind: FlowReg})
		return nil
	}
	dist := b.zeroDistance()
	dist[len(dist)-1] = 1
	b.addEdge(Edge{Producer: writers[len(writers)-1], Consumer: consumer,
		Distance: dist, Kind: FlowReg})
	return nil
}

func (b *builder) addGuardRead(consumer int, reg string) error {
	writers := b.regWriters[reg]
	compare := -1
	for _, w := range writers {
		if b.kernel.Body[w].Opcode == prob.Compare {
			compare = w
		}
	}
	if compare < 0 {
		return &MalformedProgramError{
			Op:     consumer,
			Reason: fmt.Sprintf("guard register %q is not defined by any compare", reg),
		}
	}
	if w, ok := lastBefore(writers, consumer); ok {
		b.addEdge(Edge{Producer: w, Consumer: consumer,
			Distance: b.zeroDistance(), Kind: FlowReg})
		return nil
	}
	dist := b.zeroDistance()
	dist[len(dist)-1] = 1
	b.addEdge(Edge{Producer: writers[len(writers)-1], Consumer: consumer,
		Distance: dist, Kind: FlowReg})
	return nil
}

// addCellRead connects an array read to the write reaching the same
// symbolic cell, either within the iteration or carried across a solved
// iterator distance.
func (b *builder) addCellRead(consumer int, src prob.Operand) error {
	forms, err := b.linearizeIndex(consumer, src)
	if err != nil {
		return err
	}

	writes := b.cellWriters[src.Array]

	// Same-iteration producer: the latest earlier write to the identical
	// symbolic cell.
	sameIter := -1
	for _, w := range writes {
		if w.op >= consumer {
			break
		}
		if formsEqual(w.forms, forms) {
			sameIter = w.op
		}
	}
	if sameIter >= 0 {
		b.addEdge(Edge{Producer: sameIter, Consumer: consumer,
			Distance: b.zeroDistance(), Kind: FlowCell})
	}

	// Carried producer: the latest write whose cell, shifted by a solvable
	// iterator distance, matches this read.
	for i := len(writes) - 1; i >= 0; i-- {
		w := writes[i]
		dist, ok := b.solveDistance(w.forms, forms)
		if !ok {
			continue
		}
		if isZeroVec(dist) {
			// Same iteration; already handled above when the write precedes
			// the read.
			if sameIter >= 0 || w.op >= consumer {
				continue
			}
		}
		b.addEdge(Edge{Producer: w.op, Consumer: consumer, Distance: dist, Kind: FlowCell})
		break
	}
	return nil
}

// addOutputEdges orders writes to the same destination so independent
// operations may be reordered without breaking the final value.
func (b *builder) addOutputEdges(i int, op prob.Operation) {
	switch op.Dst.Kind {
	case prob.RegOperand:
		if w, ok := lastBefore(b.regWriters[op.Dst.Reg], i); ok {
			b.addEdge(Edge{Producer: w, Consumer: i,
				Distance: b.zeroDistance(), Kind: Output})
		}
	case prob.ArrayOperand:
		forms, err := b.linearizeIndex(i, op.Dst)
		if err != nil {
			return // already reported when collecting writers
		}
		last := -1
		for _, w := range b.cellWriters[op.Dst.Array] {
			if w.op >= i {
				break
			}
			if formsEqual(w.forms, forms) {
				last = w.op
			}
		}
		if last >= 0 {
			b.addEdge(Edge{Producer: last, Consumer: i,
				Distance: b.zeroDistance(), Kind: Output})
		}
	}
}

// solveDistance finds the iteration-distance vector at which the write
// touches the cell the read addresses: for every array dimension,
// sum_j coeff[j]*step_j*delta_j must equal the constant shift between
// write and read. Distances are solved per iterator; dimensions whose
// iterators never appear are free and contribute distance 1 on the
// innermost free iterator when everything else lines up exactly.
func (b *builder) solveDistance(write, read []prob.LinearForm) ([]int, bool) {
	if len(write) != len(read) {
		return nil, false
	}
	for d := range write {
		if !write[d].SameCoeffs(read[d]) {
			return nil, false
		}
	}

	delta := b.zeroDistance()
	assigned := make([]bool, len(delta))

	for d := range write {
		rhs := write[d].Constant - read[d].Constant
		unknowns := []int{}
		for j, it := range b.iters {
			if write[d].Coeffs[it] != 0 && !assigned[j] {
				unknowns = append(unknowns, j)
			}
		}
		switch {
		case len(unknowns) == 0:
			if rhs != 0 {
				return nil, false
			}
		case len(unknowns) == 1:
			j := unknowns[0]
			c := write[d].Coeffs[b.iters[j]] * b.kernel.Space[j].Step
			if rhs%c != 0 {
				return nil, false
			}
			delta[j] = rhs / c
			assigned[j] = true
		default:
			// Under-determined; only the all-zero solution is attempted.
			if rhs != 0 {
				return nil, false
			}
			for _, j := range unknowns {
				assigned[j] = true
			}
		}
	}

	// Re-check every equation under the chosen assignment.
	for d := range write {
		sum := 0
		for j, it := range b.iters {
			sum += write[d].Coeffs[it] * b.kernel.Space[j].Step * delta[j]
		}
		if sum != write[d].Constant-read[d].Constant {
			return nil, false
		}
	}

	if isZeroVec(delta) {
		// Identical cell expression: the dependence is carried across the
		// innermost free iterator, if one exists.
		free := -1
		for j, it := range b.iters {
			used := false
			for d := range write {
				if write[d].Coeffs[it] != 0 {
					used = true
					break
				}
			}
			if !used {
				free = j
			}
		}
		if free >= 0 {
			delta[free] = 1
			return delta, true
		}
		return delta, true // zero vector: same-iteration reuse
	}

	// A carried dependence must be lexicographically positive.
	for _, d := range delta {
		if d > 0 {
			break
		}
		if d < 0 {
			return nil, false
		}
	}
	return delta, true
}

func (b *builder) zeroDistance() []int {
	return make([]int, len(b.kernel.Space))
}

func (b *builder) addEdge(e Edge) {
	key := fmt.Sprintf("%d>%d:%v:%d", e.Producer, e.Consumer, e.Distance, e.Kind)
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.edges = append(b.edges, e)
}

func lastBefore(writers []int, op int) (int, bool) {
	last := -1
	for _, w := range writers {
		if w >= op {
			break
		}
		last = w
	}
	if last < 0 {
		return 0, false
	}
	return last, true
}

func formsEqual(a, b []prob.LinearForm) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func isZeroVec(v []int) bool {
	for _, c := range v {
		if c != 0 {
			return false
		}
	}
	return true
}
