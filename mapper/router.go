package mapper

import (
	"fmt"

	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/schedule"
)

// Memory round-trip costs used by the fallback path: the store commits one
// cycle after issue, the load needs two cycles to return data.
const (
	memStoreLatency = 1
	memLoadLatency  = 2
)

// routingCongestionError is local control flow during the search: the
// scheduler reacts by trying another placement or a larger II. It never
// surfaces past the mapper.
type routingCongestionError struct {
	edge   int
	reason string
}

func (e *routingCongestionError) Error() string {
	return fmt.Sprintf("routing congestion on edge %d: %s", e.edge, e.reason)
}

// router finds capacity-respecting transfer paths over the grid, reserving
// port slots in the shared tables as it commits them.
type router struct {
	grid    *cgra.Grid
	tab     *tables
	maxHops int
}

// route realizes the edge's transfer from PE p to PE q. The data leaves p
// at cycle depart and must be available at q no later than arriveBy. On
// success the chosen ports are reserved and the route returned.
func (r *router) route(edge, p, q, depart, arriveBy int) (schedule.Route, error) {
	if depart > arriveBy {
		return schedule.Route{}, &routingCongestionError{
			edge:   edge,
			reason: fmt.Sprintf("no slack: departs at %d, needed by %d", depart, arriveBy),
		}
	}
	if p == q {
		return schedule.Route{Edge: edge}, nil
	}

	if hops, ok := r.searchPath(p, q, depart, arriveBy); ok {
		for _, h := range hops {
			r.tab.reservePort(h.PE, h.Port, h.Slot)
		}
		return schedule.Route{Edge: edge, Hops: hops}, nil
	}

	if route, ok := r.memoryRoundTrip(edge, p, q, depart, arriveBy); ok {
		return route, nil
	}

	return schedule.Route{}, &routingCongestionError{
		edge:   edge,
		reason: fmt.Sprintf("no path from PE %d to PE %d within %d hops", p, q, r.maxHops),
	}
}

type bfsNode struct {
	pe   int
	time int
	prev int // index into the visit list, -1 for the origin
	port string
}

// searchPath runs a breadth-first shortest-path search over the NoC links,
// restricted to ports unreserved at the cycle each hop would use. Data
// advances one hop per cycle and cannot wait in flight.
func (r *router) searchPath(p, q, depart, arriveBy int) ([]schedule.Hop, bool) {
	budget := arriveBy - depart
	if budget > r.maxHops {
		budget = r.maxHops
	}

	visited := map[int]bool{p: true}
	nodes := []bfsNode{{pe: p, time: depart, prev: -1}}
	head := 0

	for head < len(nodes) {
		cur := nodes[head]
		if cur.pe == q {
			return r.collectHops(nodes, head), true
		}
		if cur.time-depart >= budget {
			head++
			continue
		}
		for _, link := range r.grid.Links(cur.pe) {
			if visited[link.To] {
				continue
			}
			if !r.tab.portFree(cur.pe, link.Port, cur.time) {
				continue
			}
			visited[link.To] = true
			nodes = append(nodes, bfsNode{
				pe:   link.To,
				time: cur.time + 1,
				prev: head,
				port: link.Port,
			})
		}
		head++
	}
	return nil, false
}

func (r *router) collectHops(nodes []bfsNode, end int) []schedule.Hop {
	var rev []schedule.Hop
	for i := end; nodes[i].prev >= 0; i = nodes[i].prev {
		prev := nodes[nodes[i].prev]
		rev = append(rev, schedule.Hop{PE: prev.pe, Port: nodes[i].port, Slot: prev.time})
	}
	hops := make([]schedule.Hop, len(rev))
	for i := range rev {
		hops[i] = rev[len(rev)-1-i]
	}
	return hops
}

// memoryRoundTrip falls back to a store at the producer PE and a load at
// the consumer PE, consuming one memory port slot at each end.
func (r *router) memoryRoundTrip(edge, p, q, depart, arriveBy int) (schedule.Route, bool) {
	loadSlot := arriveBy - memLoadLatency
	if loadSlot < depart+memStoreLatency {
		return schedule.Route{}, false
	}

	var storePort, loadPort string
	for _, port := range r.grid.MemoryPorts(cgra.MemoryWritePort) {
		if r.tab.portFree(p, port.Name, depart) {
			storePort = port.Name
			break
		}
	}
	for _, port := range r.grid.MemoryPorts(cgra.MemoryReadPort) {
		if r.tab.portFree(q, port.Name, loadSlot) {
			loadPort = port.Name
			break
		}
	}
	if storePort == "" || loadPort == "" {
		return schedule.Route{}, false
	}

	r.tab.reservePort(p, storePort, depart)
	r.tab.reservePort(q, loadPort, loadSlot)
	return schedule.Route{
		Edge:      edge,
		ViaMemory: true,
		StorePort: storePort,
		StoreSlot: depart,
		LoadPort:  loadPort,
		LoadSlot:  loadSlot,
	}, true
}
