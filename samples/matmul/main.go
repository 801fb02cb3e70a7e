// Maps a guarded matrix-multiplication kernel onto an 8x8 SIMD-4 mesh
// and prints the mapping report.
package main

import (
	_ "embed"
	"log/slog"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/loom/api"
	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/prob"
)

//go:embed prob.yaml
var kernelSrc string

//go:embed arch.yaml
var archSrc string

func main() {
	kernel, err := prob.ParseKernelYAML([]byte(kernelSrc))
	if err != nil {
		fail(err)
	}
	grid, err := cgra.ParseGridYAML([]byte(archSrc), "Device")
	if err != nil {
		fail(err)
	}

	driver := api.DriverBuilder{}.
		WithFreq(1 * sim.GHz).
		Build("Driver")

	_, report, err := driver.MapKernel(kernel, grid)
	if err != nil {
		fail(err)
	}

	report.WriteReport(os.Stdout)
	atexit.Exit(0)
}

func fail(err error) {
	slog.Error("MappingFailed", "Error", err)
	atexit.Exit(1)
}
