package cgra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type archYAML struct {
	DimsName  []string `yaml:"dims_name"`
	DimsShape []int    `yaml:"dims_shape"`
	SIMDLanes int      `yaml:"simd_lanes"`
	PEArch    struct {
		DataWidth      int `yaml:"data_width"`
		RegistersPerPE int `yaml:"registers_per_pe"`
		DataPorts      []struct {
			NocPort *struct {
				Name     string `yaml:"name"`
				Topology []int  `yaml:"topology"`
			} `yaml:"noc_port"`
			MemoryReadPort *struct {
				Name    string `yaml:"name"`
				MemName string `yaml:"mem_name"`
			} `yaml:"memory_read_port"`
			MemoryWritePort *struct {
				Name    string `yaml:"name"`
				MemName string `yaml:"mem_name"`
			} `yaml:"memory_write_port"`
		} `yaml:"data_ports"`
	} `yaml:"pe_arch"`
}

// ParseGridYAML decodes an architecture description and builds the grid.
func ParseGridYAML(data []byte, name string) (*Grid, error) {
	var raw archYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode architecture: %w", err)
	}
	if len(raw.DimsName) != len(raw.DimsShape) {
		return nil, &InvalidTopologyError{
			Reason: fmt.Sprintf("%d dimension names but %d shapes",
				len(raw.DimsName), len(raw.DimsShape)),
		}
	}

	b := GridBuilder{}.
		WithSIMD(raw.SIMDLanes).
		WithDataWidth(raw.PEArch.DataWidth).
		WithRegistersPerPE(raw.PEArch.RegistersPerPE)
	for i, dim := range raw.DimsName {
		b = b.WithDim(dim, raw.DimsShape[i])
	}
	for i, p := range raw.PEArch.DataPorts {
		switch {
		case p.NocPort != nil:
			b = b.WithNocPort(p.NocPort.Name, p.NocPort.Topology...)
		case p.MemoryReadPort != nil:
			b = b.WithMemoryReadPort(p.MemoryReadPort.Name, p.MemoryReadPort.MemName)
		case p.MemoryWritePort != nil:
			b = b.WithMemoryWritePort(p.MemoryWritePort.Name, p.MemoryWritePort.MemName)
		default:
			return nil, &InvalidTopologyError{
				Reason: fmt.Sprintf("data port %d has no recognized variant", i),
			}
		}
	}
	return b.Build(name)
}

// LoadGrid reads and decodes an architecture description file.
func LoadGrid(path, name string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGridYAML(data, name)
}
