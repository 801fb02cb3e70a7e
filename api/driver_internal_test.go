package api

import (
	"errors"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/loom/cgra"
	"github.com/sarchlab/loom/graph"
	"github.com/sarchlab/loom/mapper"
	"github.com/sarchlab/loom/prob"
)

func simpleKernel() *prob.Kernel {
	return &prob.Kernel{
		Space: prob.IterationSpace{
			{Name: "i", Lower: 0, Upper: 4, Step: 1},
		},
		Body: []prob.Operation{
			{
				Opcode: prob.Load,
				Dst:    prob.NewReg("Ra"),
				Src:    []prob.Operand{prob.NewArrayRef("A", prob.Var("i"))},
			},
			{
				Opcode: prob.Arith,
				Dst:    prob.NewReg("Rb"),
				Src:    []prob.Operand{prob.NewReg("Ra"), prob.NewImm(1)},
			},
			{
				Opcode: prob.Store,
				Dst:    prob.NewArrayRef("B", prob.Var("i")),
				Src:    []prob.Operand{prob.NewReg("Rb")},
			},
		},
	}
}

func simpleGrid() *cgra.Grid {
	grid, err := cgra.GridBuilder{}.
		WithDim("x", 2).
		WithDim("y", 2).
		WithMeshPorts().
		WithMemoryReadPort("MemRead", "bank0").
		WithMemoryWritePort("MemWrite", "bank0").
		Build("Grid")
	Expect(err).ToNot(HaveOccurred())
	return grid
}

var _ = Describe("Driver", func() {
	var (
		mockCtrl   *gomock.Controller
		mockMapper *MockMapper
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockMapper = NewMockMapper(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should surface mapper failures", func() {
		wantErr := &mapper.InfeasibleMappingError{MinII: 3, MaxII: 8}
		mockMapper.EXPECT().
			MapGraph(gomock.Any(), gomock.Any()).
			Return(nil, wantErr)

		driver := DriverBuilder{}.WithMapper(mockMapper).Build("Driver")

		_, _, err := driver.MapKernel(simpleKernel(), simpleGrid())

		var infeasible *mapper.InfeasibleMappingError
		Expect(errors.As(err, &infeasible)).To(BeTrue())
		Expect(infeasible.MinII).To(Equal(3))
	})

	It("should reject malformed programs before mapping", func() {
		kernel := simpleKernel()
		kernel.Body[1].Src[0] = prob.NewReg("Rundefined")

		driver := DriverBuilder{}.WithMapper(mockMapper).Build("Driver")

		_, _, err := driver.MapKernel(kernel, simpleGrid())

		var malformed *graph.MalformedProgramError
		Expect(errors.As(err, &malformed)).To(BeTrue())
	})

	It("should map, validate and report a simple kernel", func() {
		driver := DriverBuilder{}.WithMaxII(16).Build("Driver")

		s, report, err := driver.MapKernel(simpleKernel(), simpleGrid())

		Expect(err).ToNot(HaveOccurred())
		Expect(s.Finalized()).To(BeTrue())
		Expect(s.II).To(BeNumerically(">=", 1))
		Expect(report.Throughput).To(BeNumerically("~", 1.0/float64(s.II), 1e-9))
		Expect(report.ProjectedTime).To(BeNumerically(">", 0))
	})

	It("should return the same schedule regardless of worker count", func() {
		one := DriverBuilder{}.WithMaxII(16).WithWorkers(1).Build("Driver1")
		four := DriverBuilder{}.WithMaxII(16).WithWorkers(4).Build("Driver4")

		s1, _, err1 := one.MapKernel(simpleKernel(), simpleGrid())
		s4, _, err4 := four.MapKernel(simpleKernel(), simpleGrid())

		Expect(err1).ToNot(HaveOccurred())
		Expect(err4).ToNot(HaveOccurred())
		Expect(s4.II).To(Equal(s1.II))
		Expect(s4.Placements).To(Equal(s1.Placements))
		Expect(s4.Routes).To(Equal(s1.Routes))
	})
})
