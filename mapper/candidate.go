package mapper

import (
	"fmt"
	"sort"

	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/graph"
	"github.com/sarchlab/loom/prob"
	"github.com/sarchlab/loom/schedule"
)

// errSearchPruned aborts a candidate whose II can no longer beat the best
// feasible II another worker already found.
var errSearchPruned = fmt.Errorf("candidate pruned by a better result")

// candidate is one attempt at a specific initiation interval. Placement
// and routing interleave on a single goroutine; the candidate owns its
// schedule and tables outright.
type candidate struct {
	ii      int
	g       *graph.Graph
	grid    *cgra.Grid
	maxHops int
	order   []int

	sched    *schedule.Schedule
	tab      *tables
	rtr      *router
	flatDist []int // cached per edge
}

func newCandidate(ii int, g *graph.Graph, grid *cgra.Grid, maxHops int, order []int) *candidate {
	c := &candidate{
		ii:      ii,
		g:       g,
		grid:    grid,
		maxHops: maxHops,
		order:   order,
		sched:   schedule.New(g.NodeCount()),
		tab:     newTables(ii, grid),
	}
	c.sched.II = ii
	c.rtr = &router{grid: grid, tab: c.tab, maxHops: maxHops}
	c.flatDist = make([]int, len(g.Edges))
	for ei, e := range g.Edges {
		c.flatDist[ei] = g.FlatDistance(e.Distance)
	}
	return c
}

// run places every operation in priority order. keepGoing is the
// cooperative cancellation checkpoint, consulted between placements.
func (c *candidate) run(keepGoing func() bool) (*schedule.Schedule, error) {
	for _, op := range c.order {
		if !keepGoing() {
			return nil, errSearchPruned
		}
		if err := c.place(op); err != nil {
			return nil, err
		}
	}
	c.sched.Finalize()
	return c.sched, nil
}

func (c *candidate) place(op int) error {
	latency := c.g.Kernel.Body[op].Duration()

	// Carried self-dependencies constrain only the II, not the slot.
	for _, ei := range c.g.In(op) {
		e := c.g.Edges[ei]
		if e.Producer != op {
			continue
		}
		if c.flatDist[ei]*c.ii < latency {
			return &routingCongestionError{
				edge: ei,
				reason: fmt.Sprintf("carried self-dependency needs %d cycles, II %d spans %d",
					latency, c.ii, c.flatDist[ei]*c.ii),
			}
		}
	}

	earliest, latest, err := c.slotWindow(op, latency)
	if err != nil {
		return err
	}

	horizon := earliest + 4*c.ii + 16
	if latest >= 0 && latest < horizon {
		horizon = latest
	}

	for t := earliest; t <= horizon; t++ {
		for _, pe := range c.peOrder() {
			if c.tryPlace(op, pe, t, latency) {
				return nil
			}
		}
	}
	return &routingCongestionError{
		edge:   -1,
		reason: fmt.Sprintf("no slot for op %d in window [%d, %d]", op, earliest, horizon),
	}
}

// slotWindow bounds the feasible issue slots of the operation by its
// already-placed neighbors, ignoring routing latency (the router tightens
// further).
func (c *candidate) slotWindow(op, latency int) (earliest, latest int, err error) {
	earliest, latest = 0, -1
	for _, ei := range c.g.In(op) {
		e := c.g.Edges[ei]
		if e.Producer == op || !c.sched.Placed(e.Producer) {
			continue
		}
		p := c.sched.Placements[e.Producer]
		lo := p.Slot + c.g.Kernel.Body[e.Producer].Duration() - c.flatDist[ei]*c.ii
		if lo > earliest {
			earliest = lo
		}
	}
	for _, ei := range c.g.Out(op) {
		e := c.g.Edges[ei]
		if e.Consumer == op || !c.sched.Placed(e.Consumer) {
			continue
		}
		q := c.sched.Placements[e.Consumer]
		hi := q.Slot + c.flatDist[ei]*c.ii - latency
		if latest < 0 || hi < latest {
			latest = hi
		}
	}
	if latest >= 0 && latest < earliest {
		return 0, 0, &routingCongestionError{
			edge:   -1,
			reason: fmt.Sprintf("empty slot window for op %d", op),
		}
	}
	return earliest, latest, nil
}

// peOrder lists PEs least-loaded first, ties by flat index for
// reproducibility.
func (c *candidate) peOrder() []int {
	pes := make([]int, c.grid.PECount())
	for i := range pes {
		pes[i] = i
	}
	sort.SliceStable(pes, func(a, b int) bool {
		if c.tab.peLoad[pes[a]] != c.tab.peLoad[pes[b]] {
			return c.tab.peLoad[pes[a]] < c.tab.peLoad[pes[b]]
		}
		return pes[a] < pes[b]
	})
	return pes
}

// tryPlace attempts (pe, slot) for the operation, routing every edge to an
// already-placed neighbor. All reservations roll back on failure.
func (c *candidate) tryPlace(op, pe, slot, latency int) bool {
	lane := c.tab.freeLane(pe, slot)
	if lane < 0 {
		return false
	}

	mark := c.tab.checkpoint()
	c.tab.reserveLane(pe, lane, slot)

	reg := -1
	if c.g.Kernel.Body[op].Dst.Kind != prob.ArrayOperand {
		if reg = c.tab.allocReg(pe); reg < 0 {
			c.tab.rollback(mark)
			return false
		}
	}

	var routes []schedule.Route

	for _, ei := range c.g.In(op) {
		e := c.g.Edges[ei]
		if e.Producer == op {
			routes = append(routes, schedule.Route{Edge: ei})
			continue
		}
		if !c.sched.Placed(e.Producer) {
			continue
		}
		p := c.sched.Placements[e.Producer]
		depart := p.Slot + c.g.Kernel.Body[e.Producer].Duration()
		arriveBy := slot + c.flatDist[ei]*c.ii
		r, err := c.rtr.route(ei, p.PE, pe, depart, arriveBy)
		if err != nil {
			c.tab.rollback(mark)
			return false
		}
		routes = append(routes, r)
	}

	for _, ei := range c.g.Out(op) {
		e := c.g.Edges[ei]
		if e.Consumer == op || !c.sched.Placed(e.Consumer) {
			continue
		}
		q := c.sched.Placements[e.Consumer]
		depart := slot + latency
		arriveBy := q.Slot + c.flatDist[ei]*c.ii
		r, err := c.rtr.route(ei, pe, q.PE, depart, arriveBy)
		if err != nil {
			c.tab.rollback(mark)
			return false
		}
		routes = append(routes, r)
	}

	c.sched.Place(schedule.Placement{Op: op, PE: pe, Lane: lane, Slot: slot, Reg: reg})
	for _, r := range routes {
		c.sched.AddRoute(r)
	}
	return true
}
