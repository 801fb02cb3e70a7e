// Package api defines the driver API of the loom mapper: one call takes a
// loop kernel and a grid and returns a certified schedule with its report.
package api

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/graph"
	"github.com/sarchlab/loom/prob"
	"github.com/sarchlab/loom/schedule"
	"github.com/sarchlab/loom/verify"
)

// Mapper schedules a dependency graph onto a grid.
type Mapper interface {
	MapGraph(g *graph.Graph, grid *cgra.Grid) (*schedule.Schedule, error)
}

// Driver provides the interface to map kernels onto CGRA devices.
type Driver interface {
	// MapKernel builds the dependency graph of the kernel, schedules it
	// onto the grid, validates the result, and returns the schedule with
	// its report. The error is one of graph.MalformedProgramError,
	// mapper.InfeasibleMappingError or verify.ValidationMismatchError.
	MapKernel(kernel *prob.Kernel, grid *cgra.Grid) (*schedule.Schedule, *verify.Report, error)
}

type driverImpl struct {
	name   string
	freq   sim.Freq
	mapper Mapper
}

func (d *driverImpl) MapKernel(
	kernel *prob.Kernel,
	grid *cgra.Grid,
) (*schedule.Schedule, *verify.Report, error) {
	g, err := graph.Build(kernel)
	if err != nil {
		return nil, nil, err
	}

	s, err := d.mapper.MapGraph(g, grid)
	if err != nil {
		return nil, nil, err
	}

	report, err := verify.Validate(g, grid, s)
	if err != nil {
		return nil, nil, err
	}
	report.Project(d.freq)

	return s, report, nil
}
