// Package mapper chooses a spatio-temporal mapping of a loop kernel onto
// a CGRA grid: the smallest feasible initiation interval, a (PE, lane,
// slot) placement per operation, and a routed path per dependency edge.
//
// The search deepens iteratively over candidate IIs. Each candidate runs
// a deterministic list-scheduling pass, longest dependency chain first,
// with placement and routing tightly interleaved; a routing congestion
// abandons the candidate and the next II is tried. Candidates may be
// searched concurrently on worker goroutines, each owning a private
// partial schedule; a shared atomic best-II prunes work that can no
// longer win, and the returned schedule is the one of the smallest
// feasible II regardless of the worker count.
package mapper

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/graph"
	"github.com/sarchlab/loom/prob"
	"github.com/sarchlab/loom/schedule"
)

// InfeasibleMappingError reports that no II up to the configured maximum
// yields a valid schedule. It is the final outcome of an exhausted search.
type InfeasibleMappingError struct {
	MinII int
	MaxII int
}

func (e *InfeasibleMappingError) Error() string {
	return fmt.Sprintf("no feasible mapping with II between %d and %d", e.MinII, e.MaxII)
}

// Mapper runs the modulo-scheduling search.
type Mapper struct {
	name    string
	maxII   int
	maxHops int
	workers int
}

// Map builds the dependency graph of the kernel and schedules it onto the
// grid.
func (m *Mapper) Map(kernel *prob.Kernel, grid *cgra.Grid) (*schedule.Schedule, error) {
	g, err := graph.Build(kernel)
	if err != nil {
		return nil, err
	}
	return m.MapGraph(g, grid)
}

// MapGraph schedules an already-built dependency graph onto the grid.
func (m *Mapper) MapGraph(g *graph.Graph, grid *cgra.Grid) (*schedule.Schedule, error) {
	lowerBound := m.lowerBound(g, grid)
	order := m.priorityOrder(g)

	Trace("SearchStart",
		"Mapper", m.name,
		"Ops", g.NodeCount(),
		"Lanes", grid.LaneCount(),
		"LowerBound", lowerBound,
		"MaxII", m.maxII,
	)

	if lowerBound > m.maxII {
		return nil, &InfeasibleMappingError{MinII: lowerBound, MaxII: m.maxII}
	}

	var result *schedule.Schedule
	if m.workers <= 1 {
		result = m.searchSequential(g, grid, order, lowerBound)
	} else {
		result = m.searchParallel(g, grid, order, lowerBound)
	}

	if result == nil {
		return nil, &InfeasibleMappingError{MinII: lowerBound, MaxII: m.maxII}
	}
	Trace("SearchDone", "Mapper", m.name, "II", result.II, "Length", result.Length)
	return result, nil
}

// lowerBound is the larger of the resource bound (operations per
// device-wide lane) and the recurrence bound from carried dependencies.
func (m *Mapper) lowerBound(g *graph.Graph, grid *cgra.Grid) int {
	lanes := grid.LaneCount()
	resMII := (g.NodeCount() + lanes - 1) / lanes
	recMII := g.RecurrenceMII()
	if recMII > resMII {
		return recMII
	}
	if resMII < 1 {
		return 1
	}
	return resMII
}

// priorityOrder sorts operations by longest unscheduled dependency chain,
// ties broken by body order, then by destination register name, so the
// search is reproducible.
func (m *Mapper) priorityOrder(g *graph.Graph) []int {
	heights := g.Heights()
	order := make([]int, g.NodeCount())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		oa, ob := order[a], order[b]
		if heights[oa] != heights[ob] {
			return heights[oa] > heights[ob]
		}
		if oa != ob {
			return oa < ob
		}
		return g.Kernel.Body[oa].Dst.String() < g.Kernel.Body[ob].Dst.String()
	})
	return order
}

func (m *Mapper) searchSequential(
	g *graph.Graph,
	grid *cgra.Grid,
	order []int,
	lowerBound int,
) *schedule.Schedule {
	for ii := lowerBound; ii <= m.maxII; ii++ {
		c := newCandidate(ii, g, grid, m.maxHops, order)
		s, err := c.run(func() bool { return true })
		if err == nil {
			return s
		}
		Trace("CandidateFailed", "Mapper", m.name, "II", ii, "Reason", err.Error())
	}
	return nil
}

func (m *Mapper) searchParallel(
	g *graph.Graph,
	grid *cgra.Grid,
	order []int,
	lowerBound int,
) *schedule.Schedule {
	var (
		best    atomic.Int64
		next    atomic.Int64
		mu      sync.Mutex
		results = map[int]*schedule.Schedule{}
		wg      sync.WaitGroup
	)
	best.Store(int64(m.maxII) + 1)

	for w := 0; w < m.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ii := lowerBound + int(next.Add(1)) - 1
				if ii > m.maxII || int64(ii) >= best.Load() {
					return
				}
				c := newCandidate(ii, g, grid, m.maxHops, order)
				s, err := c.run(func() bool { return int64(ii) < best.Load() })
				if err != nil {
					continue
				}
				for {
					b := best.Load()
					if int64(ii) >= b || best.CompareAndSwap(b, int64(ii)) {
						break
					}
				}
				mu.Lock()
				results[ii] = s
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	bestII := -1
	for ii := range results {
		if bestII < 0 || ii < bestII {
			bestII = ii
		}
	}
	if bestII < 0 {
		return nil
	}
	return results[bestII]
}
