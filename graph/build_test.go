package graph

import (
	"errors"
	"testing"

	"github.com/sarchlab/loom/prob"
)

func matmulKernel() *prob.Kernel {
	return &prob.Kernel{
		Space: prob.IterationSpace{
			{Name: "m", Lower: 0, Upper: 4, Step: 1},
			{Name: "k", Lower: 0, Upper: 4, Step: 1},
			{Name: "n", Lower: 0, Upper: 4, Step: 1},
		},
		Body: []prob.Operation{
			{
				Opcode: prob.Load,
				Dst:    prob.NewReg("Ra"),
				Src:    []prob.Operand{prob.NewArrayRef("A", prob.Var("m"), prob.Var("k"))},
			},
			{
				Opcode: prob.Load,
				Dst:    prob.NewReg("Rb"),
				Src:    []prob.Operand{prob.NewArrayRef("B", prob.Var("k"), prob.Var("n"))},
			},
			{
				Opcode: prob.Compare,
				Dst:    prob.NewReg("Rcmp"),
				Src:    []prob.Operand{prob.NewReg("Ra"), prob.NewImm(0)},
			},
			{
				Opcode: prob.MAC,
				Dst:    prob.NewArrayRef("C", prob.Var("m"), prob.Var("n")),
				Src: []prob.Operand{
					prob.NewReg("Ra"),
					prob.NewReg("Rb"),
					prob.NewArrayRef("C", prob.Var("m"), prob.Var("n")),
				},
				Guard: &prob.Guard{Reg: "Rcmp", Cond: prob.LE},
			},
		},
	}
}

func findEdges(g *Graph, producer, consumer int) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Producer == producer && e.Consumer == consumer {
			out = append(out, e)
		}
	}
	return out
}

func TestBuildMatmul(t *testing.T) {
	g, err := Build(matmulKernel())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.NodeCount() != 4 {
		t.Fatalf("NodeCount = %d, want 4", g.NodeCount())
	}
	if len(g.Edges) != 5 {
		t.Fatalf("got %d edges, want 5: %+v", len(g.Edges), g.Edges)
	}

	for _, pair := range [][2]int{{0, 2}, {0, 3}, {1, 3}, {2, 3}} {
		edges := findEdges(g, pair[0], pair[1])
		if len(edges) != 1 {
			t.Fatalf("edges %d->%d = %+v, want exactly one", pair[0], pair[1], edges)
		}
		if edges[0].Carried() || edges[0].Kind != FlowReg {
			t.Errorf("edge %d->%d = %+v, want same-iteration flow-reg", pair[0], pair[1], edges[0])
		}
	}
}

// The accumulation C[m][n] += ... revisits the same cell on every step of
// k. The self dependency must be carried across k alone.
func TestMatmulAccumulationCarriedAcrossK(t *testing.T) {
	g, err := Build(matmulKernel())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	selfEdges := findEdges(g, 3, 3)
	if len(selfEdges) != 1 {
		t.Fatalf("self edges on mac = %+v, want exactly one", selfEdges)
	}
	e := selfEdges[0]
	if e.Kind != FlowCell {
		t.Errorf("self edge kind = %s, want %s", e.Kind.Name(), FlowCell.Name())
	}
	want := []int{0, 1, 0}
	for i, d := range e.Distance {
		if d != want[i] {
			t.Fatalf("self edge distance = %v, want %v", e.Distance, want)
		}
	}
	// One step of k skips over the whole inner n loop.
	if flat := g.FlatDistance(e.Distance); flat != 4 {
		t.Errorf("FlatDistance = %d, want 4", flat)
	}
}

func TestConstantShiftCarriedDependency(t *testing.T) {
	kernel := &prob.Kernel{
		Space: prob.IterationSpace{{Name: "i", Lower: 0, Upper: 8, Step: 1}},
		Body: []prob.Operation{
			{
				Opcode: prob.Load,
				Dst:    prob.NewReg("Ra"),
				Src:    []prob.Operand{prob.NewArrayRef("A", prob.Var("i"))},
			},
			{
				Opcode: prob.Store,
				Dst:    prob.NewArrayRef("A", prob.Add(prob.Var("i"), prob.Const(1))),
				Src:    []prob.Operand{prob.NewReg("Ra")},
			},
		},
	}
	g, err := Build(kernel)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// A[i+1] written at iteration i is A[i] one iteration later.
	carried := findEdges(g, 1, 0)
	if len(carried) != 1 {
		t.Fatalf("carried edges = %+v, want exactly one", carried)
	}
	if carried[0].Kind != FlowCell || carried[0].Distance[0] != 1 {
		t.Errorf("carried edge = %+v, want flow-cell at distance 1", carried[0])
	}
}

func TestHeights(t *testing.T) {
	g, err := Build(matmulKernel())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	heights := g.Heights()
	want := []int{4, 3, 2, 1}
	for op, h := range heights {
		if h != want[op] {
			t.Errorf("height[%d] = %d, want %d", op, h, want[op])
		}
	}
}

func TestRecurrenceMII(t *testing.T) {
	g, err := Build(matmulKernel())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Four inner iterations between accumulator reuses hide a 1-cycle mac.
	if mii := g.RecurrenceMII(); mii != 1 {
		t.Errorf("matmul RecurrenceMII = %d, want 1", mii)
	}

	acc := &prob.Kernel{
		Space: prob.IterationSpace{{Name: "k", Lower: 0, Upper: 16, Step: 1}},
		Body: []prob.Operation{
			{
				Opcode: prob.Load,
				Dst:    prob.NewReg("Ra"),
				Src:    []prob.Operand{prob.NewArrayRef("A", prob.Var("k"))},
			},
			{
				Opcode:  prob.MAC,
				Dst:     prob.NewArrayRef("C", prob.Const(0)),
				Src:     []prob.Operand{prob.NewReg("Ra"), prob.NewReg("Ra"), prob.NewArrayRef("C", prob.Const(0))},
				Latency: 3,
			},
		},
	}
	g, err = Build(acc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// The accumulator is reused every iteration, so the 3-cycle mac caps
	// the initiation interval at 3.
	if mii := g.RecurrenceMII(); mii != 3 {
		t.Errorf("accumulation RecurrenceMII = %d, want 3", mii)
	}
}

func TestFreeDims(t *testing.T) {
	g, err := Build(matmulKernel())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	free := g.FreeDims(0)
	if len(free) != 1 || free[0] != "n" {
		t.Errorf("FreeDims(load A[m][k]) = %v, want [n]", free)
	}
	free = g.FreeDims(3)
	if len(free) != 1 || free[0] != "k" {
		t.Errorf("FreeDims(mac C[m][n]) = %v, want [k]", free)
	}
}

func TestBuildRejectsMalformedPrograms(t *testing.T) {
	undefinedRead := matmulKernel()
	undefinedRead.Body[2].Src[0] = prob.NewReg("Rz")

	badGuard := matmulKernel()
	badGuard.Body[2].Opcode = prob.Arith

	product, err := prob.ParseAffine("m*k")
	if err != nil {
		t.Fatalf("ParseAffine: %v", err)
	}
	nonAffine := matmulKernel()
	nonAffine.Body[0].Src[0] = prob.NewArrayRef("A", product)

	cases := []struct {
		name   string
		kernel *prob.Kernel
	}{
		{"register read but never written", undefinedRead},
		{"guard without a compare", badGuard},
		{"non-affine index expression", nonAffine},
	}
	for _, c := range cases {
		_, err := Build(c.kernel)
		var malformed *MalformedProgramError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: err = %v, want *MalformedProgramError", c.name, err)
		}
	}
}
