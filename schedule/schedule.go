// Package schedule defines the mapping artifact the mapper produces: the
// chosen initiation interval, a (PE, lane, time-slot, register) placement
// per operation, and a routed hop path per cross-PE dependency edge.
package schedule

import "fmt"

// Placement assigns one operation to a PE lane and issue slot. Slot is an
// absolute cycle within one iteration's schedule; resources repeat every
// II cycles, so the occupied issue slot is Slot mod II.
type Placement struct {
	Op   int
	PE   int
	Lane int
	Slot int
	Reg  int // physical register holding the result, -1 for stores
}

// Hop is one NoC transfer: the named port of PE is busy at cycle Slot
// (mod II).
type Hop struct {
	PE   int
	Port string
	Slot int
}

// Route realizes one dependency edge. Either a hop sequence over the NoC,
// or a memory round-trip: a store through StorePort at StoreSlot and a
// load through LoadPort at LoadSlot.
type Route struct {
	Edge      int
	Hops      []Hop
	ViaMemory bool
	StorePort string
	StoreSlot int
	LoadPort  string
	LoadSlot  int
}

// Latency returns the cycles the transfer occupies on the fabric.
func (r Route) Latency() int {
	if r.ViaMemory {
		return r.LoadSlot - r.StoreSlot
	}
	return len(r.Hops)
}

// Schedule is the complete mapping. It is mutable while the search builds
// it and immutable once Finalize is called.
type Schedule struct {
	II     int
	Length int // cycles from first to last issue slot, inclusive

	Placements []Placement
	Routes     []Route

	finalized bool
}

// New returns an empty schedule for a kernel with n operations.
func New(n int) *Schedule {
	s := &Schedule{Placements: make([]Placement, n)}
	for i := range s.Placements {
		s.Placements[i] = Placement{Op: i, PE: -1, Lane: -1, Slot: -1, Reg: -1}
	}
	return s
}

// Placed reports whether the operation has been assigned a slot.
func (s *Schedule) Placed(op int) bool {
	return s.Placements[op].Slot >= 0
}

// Place records the placement of one operation.
func (s *Schedule) Place(p Placement) {
	s.mustBeMutable()
	s.Placements[p.Op] = p
	if p.Slot+1 > s.Length {
		s.Length = p.Slot + 1
	}
}

// AddRoute records the routing of one dependency edge.
func (s *Schedule) AddRoute(r Route) {
	s.mustBeMutable()
	s.Routes = append(s.Routes, r)
}

// RouteFor returns the route realizing the given edge, if any.
func (s *Schedule) RouteFor(edge int) (Route, bool) {
	for _, r := range s.Routes {
		if r.Edge == edge {
			return r, true
		}
	}
	return Route{}, false
}

// Clone returns an independent copy, used by the search to snapshot and
// discard partial schedules.
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{II: s.II, Length: s.Length}
	c.Placements = make([]Placement, len(s.Placements))
	copy(c.Placements, s.Placements)
	c.Routes = make([]Route, len(s.Routes))
	for i, r := range s.Routes {
		c.Routes[i] = r
		c.Routes[i].Hops = make([]Hop, len(r.Hops))
		copy(c.Routes[i].Hops, r.Hops)
	}
	return c
}

// Finalize freezes the schedule. Any later mutation panics.
func (s *Schedule) Finalize() {
	s.finalized = true
}

// Finalized reports whether the schedule is frozen.
func (s *Schedule) Finalized() bool {
	return s.finalized
}

func (s *Schedule) mustBeMutable() {
	if s.finalized {
		panic("schedule mutated after finalize")
	}
}

// Stages returns the number of pipeline stages: how many II periods the
// schedule length spans.
func (s *Schedule) Stages() int {
	if s.II <= 0 {
		return 0
	}
	return (s.Length + s.II - 1) / s.II
}

// String summarizes the schedule.
func (s *Schedule) String() string {
	return fmt.Sprintf("Schedule{II: %d, Length: %d, Ops: %d, Routes: %d}",
		s.II, s.Length, len(s.Placements), len(s.Routes))
}
