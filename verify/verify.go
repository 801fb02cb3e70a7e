// Package verify replays a committed schedule against its kernel and grid
// to certify it before anything downstream consumes it.
//
// Two stages run in sequence:
//
//  1. Structural checks: every operation is placed inside the grid, no
//     PE-lane/slot pair is double-booked modulo II, no port/slot pair is
//     reserved twice, and every dependency edge is realized by exactly one
//     well-formed route.
//
//  2. Replay: the pipelined loop is unrolled across prologue, steady state
//     and epilogue, and every overlapping pair of iterations is checked
//     for issue-slot and port collisions, and every dependency for
//     data arriving no later than its consumption cycle.
//
// Any finding is a mapper or router defect: Validate fails with
// *ValidationMismatchError, which is always fatal and never retried.
package verify

import (
	"fmt"

	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/graph"
	"github.com/sarchlab/loom/schedule"
)

// Memory round-trip costs, mirrored from the router's model.
const (
	memStoreLatency = 1
	memLoadLatency  = 2
)

// IssueType categorizes validation findings.
type IssueType string

const (
	IssueStruct IssueType = "STRUCT" // placement/route structure error
	IssueTiming IssueType = "TIMING" // collision or latency violation
)

// Issue is one validation finding.
type Issue struct {
	Type    IssueType
	PE      int // -1 if not applicable
	Cycle   int // -1 if not applicable
	Op      int // -1 if not applicable
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] PE=%d cycle=%d op=%d: %s", i.Type, i.PE, i.Cycle, i.Op, i.Message)
}

// ValidationMismatchError reports an inconsistency between the committed
// schedule and its replay. It indicates a defect in the scheduler or
// router and is never silently ignored.
type ValidationMismatchError struct {
	Issues []Issue
}

func (e *ValidationMismatchError) Error() string {
	return fmt.Sprintf("schedule failed validation with %d issues, first: %s",
		len(e.Issues), e.Issues[0].String())
}

type slotUse struct{ op, iter int }

type validator struct {
	g      *graph.Graph
	grid   *cgra.Grid
	sched  *schedule.Schedule
	issues []Issue
}

// Validate certifies the schedule and computes the report. The schedule
// must be finalized.
func Validate(g *graph.Graph, grid *cgra.Grid, s *schedule.Schedule) (*Report, error) {
	v := &validator{g: g, grid: grid, sched: s}

	v.checkStructure()
	if len(v.issues) == 0 {
		v.checkRoutes()
	}
	if len(v.issues) == 0 {
		v.replay()
	}
	if len(v.issues) > 0 {
		return nil, &ValidationMismatchError{Issues: v.issues}
	}
	return newReport(g, grid, s), nil
}

func (v *validator) fail(t IssueType, pe, cycle, op int, format string, args ...any) {
	v.issues = append(v.issues, Issue{
		Type: t, PE: pe, Cycle: cycle, Op: op,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) checkStructure() {
	if !v.sched.Finalized() {
		v.fail(IssueStruct, -1, -1, -1, "schedule was not finalized")
		return
	}
	if v.sched.II <= 0 {
		v.fail(IssueStruct, -1, -1, -1, "non-positive II %d", v.sched.II)
		return
	}
	for _, p := range v.sched.Placements {
		if p.Slot < 0 {
			v.fail(IssueStruct, -1, -1, p.Op, "operation was never placed")
			continue
		}
		if p.PE < 0 || p.PE >= v.grid.PECount() {
			v.fail(IssueStruct, p.PE, -1, p.Op, "PE index outside the grid")
		}
		if p.Lane < 0 || p.Lane >= v.grid.SIMDLanes() {
			v.fail(IssueStruct, p.PE, -1, p.Op, "lane %d outside the PE", p.Lane)
		}
	}
}

// checkRoutes verifies each dependency edge is realized exactly once and
// that its route is physically coherent: hops follow existing links, and
// memory round-trips respect the store/load costs.
func (v *validator) checkRoutes() {
	count := make([]int, len(v.g.Edges))
	for _, r := range v.sched.Routes {
		if r.Edge < 0 || r.Edge >= len(v.g.Edges) {
			v.fail(IssueStruct, -1, -1, -1, "route for unknown edge %d", r.Edge)
			continue
		}
		count[r.Edge]++
		v.checkOneRoute(r)
	}
	for ei, c := range count {
		if c != 1 {
			e := v.g.Edges[ei]
			v.fail(IssueStruct, -1, -1, e.Consumer,
				"edge %d (%s) realized by %d routes", ei, e.Kind.Name(), c)
		}
	}
}

func (v *validator) checkOneRoute(r schedule.Route) {
	e := v.g.Edges[r.Edge]
	prod := v.sched.Placements[e.Producer]
	cons := v.sched.Placements[e.Consumer]
	depart := prod.Slot + v.g.Kernel.Body[e.Producer].Duration()
	deadline := cons.Slot + v.g.FlatDistance(e.Distance)*v.sched.II

	if r.ViaMemory {
		if r.StoreSlot < depart {
			v.fail(IssueTiming, prod.PE, r.StoreSlot, e.Producer,
				"memory store at %d before data is ready at %d", r.StoreSlot, depart)
		}
		if r.LoadSlot < r.StoreSlot+memStoreLatency {
			v.fail(IssueTiming, cons.PE, r.LoadSlot, e.Consumer,
				"memory load at %d before store commits", r.LoadSlot)
		}
		if r.LoadSlot+memLoadLatency > deadline {
			v.fail(IssueTiming, cons.PE, r.LoadSlot, e.Consumer,
				"memory load returns at %d, needed by %d", r.LoadSlot+memLoadLatency, deadline)
		}
		return
	}

	pe := prod.PE
	t := depart
	for _, h := range r.Hops {
		if h.PE != pe {
			v.fail(IssueStruct, h.PE, h.Slot, e.Producer,
				"hop departs PE %d, data is at PE %d", h.PE, pe)
			return
		}
		if h.Slot != t {
			v.fail(IssueTiming, h.PE, h.Slot, e.Producer,
				"hop at cycle %d, data available at %d", h.Slot, t)
			return
		}
		found := false
		for _, l := range v.grid.Links(pe) {
			if l.Port == h.Port {
				pe = l.To
				found = true
				break
			}
		}
		if !found {
			v.fail(IssueStruct, h.PE, h.Slot, e.Producer,
				"no usable port %q on PE %d", h.Port, h.PE)
			return
		}
		t++
	}
	if pe != cons.PE {
		v.fail(IssueStruct, pe, -1, e.Consumer,
			"route ends at PE %d, consumer is on PE %d", pe, cons.PE)
	}
	if t > deadline {
		v.fail(IssueTiming, cons.PE, t, e.Consumer,
			"data arrives at %d, consumed at %d", t, deadline)
	}
}

// replay unrolls the pipelined loop and checks the overlapping iterations
// for collisions. The collision pattern repeats with period II once the
// pipeline is full, so replaying the prologue, one full window of
// overlapping stages and the epilogue covers the entire iteration space;
// small spaces are replayed in full.
func (v *validator) replay() {
	ii := v.sched.II
	total := v.g.Kernel.Space.TotalIterations()
	window := v.sched.Stages()*2 + 2
	if total < window {
		window = total
	}

	laneUse := map[[2]int]slotUse{} // (flatLane, cycle)
	portUse := map[[3]int]slotUse{} // (pe, portIdx, cycle)
	portIdx := map[string]int{}
	for i, p := range v.grid.Ports() {
		portIdx[p.Name] = i
	}

	for iter := 0; iter < window; iter++ {
		base := iter * ii
		for _, p := range v.sched.Placements {
			cycle := base + p.Slot
			key := [2]int{v.grid.FlatIndex(p.PE, p.Lane), cycle}
			if prev, taken := laneUse[key]; taken {
				v.fail(IssueTiming, p.PE, cycle, p.Op,
					"issue slot already taken by op %d of iteration %d", prev.op, prev.iter)
				return
			}
			laneUse[key] = slotUse{op: p.Op, iter: iter}
		}

		for _, r := range v.sched.Routes {
			e := v.g.Edges[r.Edge]
			if r.ViaMemory {
				prodPE := v.sched.Placements[e.Producer].PE
				consPE := v.sched.Placements[e.Consumer].PE
				v.claimPort(portUse, portIdx, prodPE, r.StorePort, base+r.StoreSlot, e.Producer, iter)
				v.claimPort(portUse, portIdx, consPE, r.LoadPort, base+r.LoadSlot, e.Consumer, iter)
				continue
			}
			for _, h := range r.Hops {
				v.claimPort(portUse, portIdx, h.PE, h.Port, base+h.Slot, e.Producer, iter)
			}
		}

		v.replayEdges(iter, total)
		if len(v.issues) > 0 {
			return
		}
	}
}

func (v *validator) claimPort(
	portUse map[[3]int]slotUse,
	portIdx map[string]int,
	pe int,
	port string,
	cycle int,
	op int,
	iter int,
) {
	key := [3]int{pe, portIdx[port], cycle}
	if prev, taken := portUse[key]; taken {
		v.fail(IssueTiming, pe, cycle, op,
			"port %q already reserved by op %d of iteration %d", port, prev.op, prev.iter)
		return
	}
	portUse[key] = slotUse{op: op, iter: iter}
}

// replayEdges checks that, for this iteration of the consumer, the
// producing iteration's data has arrived in time. Prologue iterations
// whose producer iteration would be negative consume the initial state
// and are skipped.
func (v *validator) replayEdges(iter, total int) {
	ii := v.sched.II
	for _, r := range v.sched.Routes {
		e := v.g.Edges[r.Edge]
		dist := v.g.FlatDistance(e.Distance)
		prodIter := iter - dist
		if prodIter < 0 {
			continue
		}
		prod := v.sched.Placements[e.Producer]
		cons := v.sched.Placements[e.Consumer]
		ready := prodIter*ii + prod.Slot + v.g.Kernel.Body[e.Producer].Duration() + r.Latency()
		use := iter*ii + cons.Slot
		if ready > use {
			v.fail(IssueTiming, cons.PE, use, e.Consumer,
				"iteration %d consumes data of iteration %d at cycle %d, ready at %d",
				iter, prodIter, use, ready)
			return
		}
	}
}
