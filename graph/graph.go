// Package graph builds the data-dependency graph of a loop kernel. Nodes
// are the body operations; edges carry an iteration-distance vector, the
// zero vector meaning a same-iteration dependency and anything else a
// dependency carried across the loop nest.
package graph

import (
	"fmt"

	"github.com/sarchlab/loom/prob"
)

// EdgeKind discriminates dependency edges.
type EdgeKind int

const (
	// FlowReg is a read-after-write dependency through a register.
	FlowReg EdgeKind = iota
	// FlowCell is a read-after-write dependency through an array cell.
	FlowCell
	// Output is a write-after-write dependency on the same destination.
	Output
)

// Name returns the name of the edge kind.
func (k EdgeKind) Name() string {
	switch k {
	case FlowReg:
		return "flow-reg"
	case FlowCell:
		return "flow-cell"
	case Output:
		return "output"
	default:
		panic("invalid edge kind")
	}
}

// Edge connects a producer operation to a consumer operation. Distance
// holds one entry per loop dimension, outermost first.
type Edge struct {
	Producer int
	Consumer int
	Distance []int
	Kind     EdgeKind
}

// Carried reports whether the edge crosses iterations.
func (e Edge) Carried() bool {
	for _, d := range e.Distance {
		if d != 0 {
			return true
		}
	}
	return false
}

// MalformedProgramError reports a structural defect in the kernel that
// makes dependence analysis impossible. It is surfaced before any search
// begins and never retried.
type MalformedProgramError struct {
	Op     int // body index, -1 when not tied to one operation
	Reason string
}

func (e *MalformedProgramError) Error() string {
	if e.Op < 0 {
		return "malformed program: " + e.Reason
	}
	return fmt.Sprintf("malformed program: op %d: %s", e.Op, e.Reason)
}

// Graph is the dependency graph of one kernel.
type Graph struct {
	Kernel *prob.Kernel
	Edges  []Edge

	outs [][]int // edge indices by producer
	ins  [][]int // edge indices by consumer
}

// NodeCount returns the number of operations.
func (g *Graph) NodeCount() int {
	return len(g.Kernel.Body)
}

// Out returns the indices of edges produced by op.
func (g *Graph) Out(op int) []int { return g.outs[op] }

// In returns the indices of edges consumed by op.
func (g *Graph) In(op int) []int { return g.ins[op] }

// FlatDistance projects an iteration-distance vector onto the sequential
// row-major iteration order: the number of iterations separating producer
// and consumer.
func (g *Graph) FlatDistance(distance []int) int {
	flat := 0
	scale := 1
	for i := len(g.Kernel.Space) - 1; i >= 0; i-- {
		flat += distance[i] * scale
		scale *= g.Kernel.Space[i].Trips()
	}
	return flat
}

// Heights returns, per operation, the longest latency chain from the
// operation to any sink following same-iteration edges. Operations on the
// longest unscheduled chain are scheduled first.
func (g *Graph) Heights() []int {
	n := g.NodeCount()
	heights := make([]int, n)
	done := make([]bool, n)
	var visit func(op int) int
	visit = func(op int) int {
		if done[op] {
			return heights[op]
		}
		done[op] = true
		h := g.Kernel.Body[op].Duration()
		for _, ei := range g.outs[op] {
			e := g.Edges[ei]
			if e.Carried() {
				continue
			}
			if hc := g.Kernel.Body[op].Duration() + visit(e.Consumer); hc > h {
				h = hc
			}
		}
		heights[op] = h
		return h
	}
	for op := 0; op < n; op++ {
		visit(op)
	}
	return heights
}

// RecurrenceMII returns the initiation-interval lower bound imposed by
// carried dependencies: for every cycle closed by a single carried edge,
// the cycle latency divided by the flat iteration distance, rounded up.
func (g *Graph) RecurrenceMII() int {
	mii := 1
	for _, e := range g.Edges {
		if !e.Carried() {
			continue
		}
		dist := g.FlatDistance(e.Distance)
		if dist <= 0 {
			continue
		}
		lat := g.longestZeroPath(e.Consumer, e.Producer)
		if lat < 0 {
			continue // no same-iteration path back, no cycle
		}
		bound := (lat + dist - 1) / dist
		if bound > mii {
			mii = bound
		}
	}
	return mii
}

// longestZeroPath returns the maximum summed latency of the operations on
// a same-iteration path from src to dst, inclusive of both endpoints, or
// -1 when no such path exists.
func (g *Graph) longestZeroPath(src, dst int) int {
	if src == dst {
		return g.Kernel.Body[src].Duration()
	}
	best := -1
	for _, ei := range g.outs[src] {
		e := g.Edges[ei]
		if e.Carried() {
			continue
		}
		if tail := g.longestZeroPath(e.Consumer, dst); tail >= 0 {
			if total := g.Kernel.Body[src].Duration() + tail; total > best {
				best = total
			}
		}
	}
	return best
}

// FreeDims returns the iterators that do not appear in any index
// expression of the operation's array accesses. A cell addressed the same
// way across a free dimension is revisited every iteration of it.
func (g *Graph) FreeDims(op int) []string {
	iters := g.Kernel.Space.Names()
	used := map[string]bool{}
	mark := func(o prob.Operand) {
		if o.Kind != prob.ArrayOperand {
			return
		}
		for _, e := range o.Index {
			form, err := e.Linearize(iters)
			if err != nil {
				continue
			}
			for v, c := range form.Coeffs {
				if c != 0 {
					used[v] = true
				}
			}
		}
	}
	body := g.Kernel.Body[op]
	mark(body.Dst)
	for _, s := range body.Src {
		mark(s)
	}
	var free []string
	for _, it := range iters {
		if !used[it] {
			free = append(free, it)
		}
	}
	return free
}
