package cgra

import "fmt"

// GridBuilder can build CGRA grids.
type GridBuilder struct {
	dimNames  []string
	dimShape  []int
	simdLanes int
	dataWidth int
	regsPerPE int
	ports     []Port
}

// WithDim appends a named spatial dimension of the given size.
func (b GridBuilder) WithDim(name string, size int) GridBuilder {
	b.dimNames = append(b.dimNames, name)
	b.dimShape = append(b.dimShape, size)
	return b
}

// WithSIMD sets the number of independent lanes each PE hosts.
func (b GridBuilder) WithSIMD(lanes int) GridBuilder {
	b.simdLanes = lanes
	return b
}

// WithDataWidth sets the bytes moved per transfer.
func (b GridBuilder) WithDataWidth(width int) GridBuilder {
	b.dataWidth = width
	return b
}

// WithRegistersPerPE sets the register file size of each PE.
func (b GridBuilder) WithRegistersPerPE(n int) GridBuilder {
	b.regsPerPE = n
	return b
}

// WithNocPort adds a NoC port with the given relative offset.
func (b GridBuilder) WithNocPort(name string, offset ...int) GridBuilder {
	b.ports = append(b.ports, Port{Kind: NocPort, Name: name, Offset: offset})
	return b
}

// WithMemoryReadPort adds a memory read port bound to the named bank.
func (b GridBuilder) WithMemoryReadPort(name, bank string) GridBuilder {
	b.ports = append(b.ports, Port{Kind: MemoryReadPort, Name: name, Bank: bank})
	return b
}

// WithMemoryWritePort adds a memory write port bound to the named bank.
func (b GridBuilder) WithMemoryWritePort(name, bank string) GridBuilder {
	b.ports = append(b.ports, Port{Kind: MemoryWritePort, Name: name, Bank: bank})
	return b
}

// WithMeshPorts adds the four N/S/E/W ports of a two-dimensional mesh.
func (b GridBuilder) WithMeshPorts() GridBuilder {
	for _, s := range []Side{North, East, South, West} {
		b = b.WithNocPort(s.Name(), s.Offset()...)
	}
	return b
}

// WithPort adds an already constructed port.
func (b GridBuilder) WithPort(p Port) GridBuilder {
	b.ports = append(b.ports, p)
	return b
}

// Build creates the grid, validating the topology. It fails with
// *InvalidTopologyError when two ports share a name, a NoC offset is
// unusable from every PE, or a NoC port has no partner in the opposite
// direction.
func (b GridBuilder) Build(name string) (*Grid, error) {
	if len(b.dimNames) == 0 {
		return nil, &InvalidTopologyError{Reason: "no grid dimensions declared"}
	}
	for i, size := range b.dimShape {
		if size <= 0 {
			return nil, &InvalidTopologyError{
				Reason: fmt.Sprintf("dimension %q has non-positive size %d", b.dimNames[i], size),
			}
		}
	}

	g := &Grid{
		name:      name,
		dimNames:  b.dimNames,
		dimShape:  b.dimShape,
		simdLanes: b.simdLanes,
		dataWidth: b.dataWidth,
		regsPerPE: b.regsPerPE,
		ports:     b.ports,
	}
	if g.simdLanes <= 0 {
		g.simdLanes = 1
	}
	if g.dataWidth <= 0 {
		g.dataWidth = 4
	}
	if g.regsPerPE <= 0 {
		g.regsPerPE = 32
	}

	g.strides = make([]int, len(g.dimShape))
	stride := 1
	for i := len(g.dimShape) - 1; i >= 0; i-- {
		g.strides[i] = stride
		stride *= g.dimShape[i]
	}
	g.peCount = stride

	if err := g.checkPorts(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grid) checkPorts() error {
	names := map[string]bool{}
	for _, p := range g.ports {
		if p.Name == "" {
			return &InvalidTopologyError{Reason: "port with empty name"}
		}
		if names[p.Name] {
			return &InvalidTopologyError{Port: p.Name, Reason: "duplicate port name"}
		}
		names[p.Name] = true

		if p.Kind != NocPort {
			continue
		}
		if len(p.Offset) != len(g.dimShape) {
			return &InvalidTopologyError{
				Port: p.Name,
				Reason: fmt.Sprintf("offset has %d components, grid has %d dimensions",
					len(p.Offset), len(g.dimShape)),
			}
		}
		if isZero(p.Offset) {
			return &InvalidTopologyError{Port: p.Name, Reason: "zero offset links a PE to itself"}
		}
		if g.portIsDead(p) {
			return &InvalidTopologyError{Port: p.Name, Reason: "offset leaves the grid from every PE"}
		}
		if !g.hasOpposite(p) {
			return &InvalidTopologyError{Port: p.Name, Reason: "no port in the opposite direction"}
		}
	}
	return nil
}

// portIsDead reports whether the offset leads outside the grid from every
// single PE.
func (g *Grid) portIsDead(p Port) bool {
	for pe := 0; pe < g.peCount; pe++ {
		if _, ok := g.shift(g.PECoord(pe), p.Offset); ok {
			return false
		}
	}
	return true
}

func (g *Grid) hasOpposite(p Port) bool {
	for _, q := range g.ports {
		if q.Kind != NocPort || q.Name == p.Name {
			continue
		}
		if isNegated(p.Offset, q.Offset) {
			return true
		}
	}
	return false
}

func isZero(v []int) bool {
	for _, c := range v {
		if c != 0 {
			return false
		}
	}
	return true
}

func isNegated(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != -b[i] {
			return false
		}
	}
	return true
}
