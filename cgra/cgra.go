// Package cgra defines the architecture model of a CGRA device: a grid of
// PEs indexed by named dimensions, the directional NoC ports and memory
// ports each PE exposes, and the adjacency queries the mapper relies on.
// A Grid is read-only after construction.
package cgra

import "fmt"

// Side defines the side of a PE in a two-dimensional mesh.
type Side int

const (
	North Side = iota
	East
	South
	West
)

// Name returns the name of the side.
func (s Side) Name() string {
	switch s {
	case North:
		return "North"
	case West:
		return "West"
	case South:
		return "South"
	case East:
		return "East"
	default:
		panic("invalid side")
	}
}

// Offset returns the grid offset of the neighbor on this side, assuming
// dimension order (x, y).
func (s Side) Offset() []int {
	switch s {
	case North:
		return []int{0, 1}
	case South:
		return []int{0, -1}
	case East:
		return []int{1, 0}
	case West:
		return []int{-1, 0}
	default:
		panic("invalid side")
	}
}

// Opposite returns the facing side.
func (s Side) Opposite() Side {
	switch s {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		panic("invalid side")
	}
}

// PortKind discriminates the port variants of a PE.
type PortKind int

const (
	NocPort PortKind = iota
	MemoryReadPort
	MemoryWritePort
)

// Name returns the name of the port kind.
func (k PortKind) Name() string {
	switch k {
	case NocPort:
		return "noc"
	case MemoryReadPort:
		return "mem_read"
	case MemoryWritePort:
		return "mem_write"
	default:
		panic("invalid port kind")
	}
}

// Port is one directional connection of a PE. A NoC port links to the
// neighbor at the relative Offset; a memory port links to the named bank.
// Every PE of the grid exposes the same port template; ports whose offset
// leaves the grid are unusable on boundary PEs.
type Port struct {
	Kind   PortKind
	Name   string
	Offset []int  // NoC ports only
	Bank   string // memory ports only
}

// Link is one usable NoC connection from a specific PE.
type Link struct {
	Port string
	To   int // flat PE index of the neighbor
}

// InvalidTopologyError reports an inconsistent architecture description.
type InvalidTopologyError struct {
	Port   string
	Reason string
}

func (e *InvalidTopologyError) Error() string {
	if e.Port == "" {
		return "invalid topology: " + e.Reason
	}
	return fmt.Sprintf("invalid topology: port %q: %s", e.Port, e.Reason)
}

// Grid is a CGRA device: named spatial dimensions, an optional replicated
// SIMD dimension (lanes per PE), and a per-PE port template.
type Grid struct {
	name      string
	dimNames  []string
	dimShape  []int
	simdLanes int
	dataWidth int
	regsPerPE int
	ports     []Port

	peCount int
	strides []int
}

// Name returns the device name.
func (g *Grid) Name() string { return g.name }

// DimNames returns the spatial dimension names.
func (g *Grid) DimNames() []string { return g.dimNames }

// Shape returns the spatial dimension sizes.
func (g *Grid) Shape() []int { return g.dimShape }

// SIMDLanes returns the number of lanes each PE owns.
func (g *Grid) SIMDLanes() int { return g.simdLanes }

// DataWidth returns the bytes moved per transfer.
func (g *Grid) DataWidth() int { return g.dataWidth }

// RegistersPerPE returns the size of each PE's register file.
func (g *Grid) RegistersPerPE() int { return g.regsPerPE }

// PECount returns the number of physical PEs.
func (g *Grid) PECount() int { return g.peCount }

// LaneCount returns the number of issue slots per cycle across the device.
func (g *Grid) LaneCount() int { return g.peCount * g.simdLanes }

// Ports returns the per-PE port template in declaration order.
func (g *Grid) Ports() []Port { return g.ports }

// InBounds reports whether the coordinate lies inside the grid.
func (g *Grid) InBounds(coord []int) bool {
	if len(coord) != len(g.dimShape) {
		return false
	}
	for i, c := range coord {
		if c < 0 || c >= g.dimShape[i] {
			return false
		}
	}
	return true
}

// FlatPE maps a coordinate to a flat PE index, row-major in dimension
// declaration order.
func (g *Grid) FlatPE(coord []int) int {
	if !g.InBounds(coord) {
		panic(fmt.Sprintf("coordinate %v out of bounds for shape %v", coord, g.dimShape))
	}
	flat := 0
	for i, c := range coord {
		flat += c * g.strides[i]
	}
	return flat
}

// PECoord maps a flat PE index back to its coordinate.
func (g *Grid) PECoord(pe int) []int {
	coord := make([]int, len(g.dimShape))
	for i := range g.dimShape {
		coord[i] = pe / g.strides[i]
		pe %= g.strides[i]
	}
	return coord
}

// FlatIndex maps (PE, lane) to the device-wide flat lane index. The
// bijection with Position is deterministic so that placement and routing
// never special-case nested coordinates.
func (g *Grid) FlatIndex(pe, lane int) int {
	return pe*g.simdLanes + lane
}

// Position maps a flat lane index back to (PE, lane).
func (g *Grid) Position(flat int) (pe, lane int) {
	return flat / g.simdLanes, flat % g.simdLanes
}

// Links returns the usable NoC connections of the PE, in port declaration
// order. Boundary PEs have fewer links than interior ones.
func (g *Grid) Links(pe int) []Link {
	coord := g.PECoord(pe)
	var links []Link
	for _, p := range g.ports {
		if p.Kind != NocPort {
			continue
		}
		next, ok := g.shift(coord, p.Offset)
		if !ok {
			continue
		}
		links = append(links, Link{Port: p.Name, To: next})
	}
	return links
}

// LinkTo returns the port connecting pe to neighbor, if any.
func (g *Grid) LinkTo(pe, neighbor int) (Port, bool) {
	for _, l := range g.Links(pe) {
		if l.To == neighbor {
			return g.PortByName(l.Port), true
		}
	}
	return Port{}, false
}

// PortByName returns the named port of the template.
func (g *Grid) PortByName(name string) Port {
	for _, p := range g.ports {
		if p.Name == name {
			return p
		}
	}
	panic(fmt.Sprintf("no port named %q", name))
}

// MemoryPorts returns the memory ports of the given kind.
func (g *Grid) MemoryPorts(kind PortKind) []Port {
	var ports []Port
	for _, p := range g.ports {
		if p.Kind == kind {
			ports = append(ports, p)
		}
	}
	return ports
}

func (g *Grid) shift(coord, offset []int) (int, bool) {
	next := make([]int, len(coord))
	for i := range coord {
		next[i] = coord[i] + offset[i]
	}
	if !g.InBounds(next) {
		return 0, false
	}
	return g.FlatPE(next), true
}
