package verify

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/graph"
	"github.com/sarchlab/loom/schedule"
)

// Report is the success artifact of validation: achieved throughput,
// utilization and routing latency of the certified schedule.
type Report struct {
	II             int
	ScheduleLength int
	Stages         int
	Ops            int
	Iterations     int
	TotalCycles    int

	Throughput      float64 // iterations per cycle
	PEUtilization   []float64
	MeanUtilization float64
	MaxRouteLatency int
	MemoryRoutes    int

	Freq          sim.Freq
	ProjectedTime sim.VTimeInSec

	grid *cgra.Grid
}

func newReport(g *graph.Graph, grid *cgra.Grid, s *schedule.Schedule) *Report {
	r := &Report{
		II:             s.II,
		ScheduleLength: s.Length,
		Stages:         s.Stages(),
		Ops:            len(s.Placements),
		Iterations:     g.Kernel.Space.TotalIterations(),
		Throughput:     1.0 / float64(s.II),
		grid:           grid,
	}
	r.TotalCycles = (r.Iterations-1)*s.II + s.Length

	opsPerPE := make([]int, grid.PECount())
	for _, p := range s.Placements {
		opsPerPE[p.PE]++
	}
	r.PEUtilization = make([]float64, grid.PECount())
	capacity := float64(s.II * grid.SIMDLanes())
	sum := 0.0
	for pe, n := range opsPerPE {
		r.PEUtilization[pe] = float64(n) / capacity
		sum += r.PEUtilization[pe]
	}
	r.MeanUtilization = sum / float64(grid.PECount())

	for _, route := range s.Routes {
		if route.ViaMemory {
			r.MemoryRoutes++
		}
		if lat := route.Latency(); lat > r.MaxRouteLatency {
			r.MaxRouteLatency = lat
		}
	}
	return r
}

// Project fills in the wall-clock estimate at the given device frequency.
func (r *Report) Project(freq sim.Freq) *Report {
	r.Freq = freq
	if freq > 0 {
		r.ProjectedTime = sim.VTimeInSec(float64(r.TotalCycles) / float64(freq))
	}
	return r
}

// WriteReport renders the report.
func (r *Report) WriteReport(w io.Writer) {
	summary := table.NewWriter()
	summary.SetTitle("Mapping Report")
	summary.AppendHeader(table.Row{"Metric", "Value"})
	summary.AppendRow(table.Row{"Initiation interval", r.II})
	summary.AppendRow(table.Row{"Schedule length", r.ScheduleLength})
	summary.AppendRow(table.Row{"Pipeline stages", r.Stages})
	summary.AppendRow(table.Row{"Operations", r.Ops})
	summary.AppendRow(table.Row{"Iterations", r.Iterations})
	summary.AppendRow(table.Row{"Total cycles", r.TotalCycles})
	summary.AppendRow(table.Row{"Throughput (iters/cycle)", fmt.Sprintf("%.4f", r.Throughput)})
	summary.AppendRow(table.Row{"Mean PE utilization", fmt.Sprintf("%.2f%%", r.MeanUtilization*100)})
	summary.AppendRow(table.Row{"Max route latency", r.MaxRouteLatency})
	summary.AppendRow(table.Row{"Memory round-trips", r.MemoryRoutes})
	if r.Freq > 0 {
		summary.AppendRow(table.Row{"Frequency", fmt.Sprintf("%.0f MHz", float64(r.Freq)/1e6)})
		summary.AppendRow(table.Row{"Projected runtime", fmt.Sprintf("%.3e s", float64(r.ProjectedTime))})
	}
	fmt.Fprintln(w, summary.Render())

	util := table.NewWriter()
	util.SetTitle("PE Utilization")
	util.AppendHeader(table.Row{"PE", "Coordinate", "Utilization"})
	for pe, u := range r.PEUtilization {
		if u == 0 {
			continue
		}
		util.AppendRow(table.Row{pe,
			fmt.Sprintf("%v", r.grid.PECoord(pe)),
			fmt.Sprintf("%.2f%%", u*100)})
	}
	fmt.Fprintln(w, util.Render())
}
