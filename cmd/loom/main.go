// Command loom maps a loop kernel onto a CGRA device and prints the
// mapping report.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/loom/api"
	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/mapper"
	"github.com/sarchlab/loom/prob"
)

var (
	kernelFlag  = flag.String("kernel", "", "path to the kernel description")
	archFlag    = flag.String("arch", "", "path to the architecture description")
	freqFlag    = flag.Float64("freq", 1.0, "device frequency in GHz")
	maxIIFlag   = flag.Int("max-ii", 64, "largest initiation interval to try")
	maxHopsFlag = flag.Int("max-hops", 8, "routing hop budget per transfer")
	workersFlag = flag.Int("workers", 1, "concurrent candidate-II searches")
	traceFlag   = flag.Bool("trace", false, "log the II search progress")
)

func main() {
	flag.Parse()
	if *kernelFlag == "" || *archFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: loom -kernel <file> -arch <file>")
		atexit.Exit(2)
	}

	level := slog.LevelInfo
	if *traceFlag {
		level = mapper.LevelTrace
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level})))

	kernel, err := prob.LoadKernel(*kernelFlag)
	if err != nil {
		fail("load kernel", err)
	}
	grid, err := cgra.LoadGrid(*archFlag, "Device")
	if err != nil {
		fail("load architecture", err)
	}

	driver := api.DriverBuilder{}.
		WithFreq(sim.Freq(*freqFlag) * sim.GHz).
		WithMaxII(*maxIIFlag).
		WithMaxHops(*maxHopsFlag).
		WithWorkers(*workersFlag).
		Build("Driver")

	s, report, err := driver.MapKernel(kernel, grid)
	if err != nil {
		fail("map kernel", err)
	}

	slog.Info("MappingFound", "II", s.II, "Length", s.Length, "Stages", s.Stages())
	report.WriteReport(os.Stdout)
	atexit.Exit(0)
}

func fail(stage string, err error) {
	slog.Error("MappingFailed", "Stage", stage, "Error", err)
	atexit.Exit(1)
}
