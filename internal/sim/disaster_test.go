package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/integrators"
	"github.com/san-kum/climsim/internal/sim"
)

var _ = Describe("Disaster scheduling", func() {
	var (
		params climate.Params
		ic     climate.InitialConditions
	)

	BeforeEach(func() {
		params = climate.Params{
			Gr: 3e-3, Gp: 9e-4,
			Kr: 1.1, Kp: 0.7,
			Gamma: 1, Alpha: 1, Beta: 1,
			D: 1e-3, F: 3,
			In: 0.2, Mp: 0.1,
		}
		ic = climate.InitialConditions{R: 1, P: 0.5, C: 1}
	})

	run := func(years int) *sim.Trajectory {
		model, err := climate.New(params)
		Expect(err).NotTo(HaveOccurred())

		tr, err := sim.New(model, integrators.NewRK45()).Run(context.Background(), ic, sim.Config{NumYears: years, DaysPerYear: 365})
		Expect(err).NotTo(HaveOccurred())
		return tr
	}

	shockYears := func(tr *sim.Trajectory) []int {
		years := make([]int, 0, len(tr.Shocks))
		for _, s := range tr.Shocks {
			years = append(years, s.Year)
		}
		return years
	}

	DescribeTable("shocks every f years, never at year 0",
		func(years int, want []int) {
			Expect(shockYears(run(years))).To(Equal(want))
		},
		Entry("zero years", 0, []int{}),
		Entry("two years", 2, []int{}),
		Entry("three years", 3, []int{3}),
		Entry("ten years", 10, []int{3, 6, 9}),
		Entry("twelve years", 12, []int{3, 6, 9, 12}),
	)

	It("places every shock on the last point of its year", func() {
		tr := run(9)
		for _, s := range tr.Shocks {
			seg := tr.Segments[s.Year]
			Expect(s.Index).To(Equal(seg.Last))
			Expect(s.Time).To(Equal(seg.Span.End))
		}
	})

	It("computes both losses from the same pre-shock snapshot", func() {
		tr := run(3)
		Expect(tr.Shocks).To(HaveLen(1))
		s := tr.Shocks[0]

		expected := func(gdp float64) float64 {
			return 0.9 * gdp * (1 - math.Exp(-params.D*s.C/gdp))
		}
		Expect(s.LossR).To(BeNumerically("~", expected(s.R), 1e-15))
		Expect(s.LossP).To(BeNumerically("~", expected(s.P), 1e-15))
		Expect(s.LossR).To(BeNumerically("<", 0.9*s.R))
		Expect(s.LossP).To(BeNumerically("<", 0.9*s.P))
	})

	It("seeds the next year with the shocked state", func() {
		tr := run(4)
		shocked := tr.States[tr.Shocks[0].Index]
		Expect(tr.Segments[4].Initial).To(Equal(shocked))
		Expect(shocked[climate.IdxR]).To(BeNumerically("<", tr.Shocks[0].R))
	})

	It("is deterministic across runs", func() {
		a := run(6)
		b := run(6)
		Expect(a.Times).To(Equal(b.Times))
		Expect(a.States).To(Equal(b.States))
	})

	Context("with no disaster intensity", func() {
		BeforeEach(func() { params.D = 0 })

		It("records shock years with zero loss", func() {
			tr := run(6)
			Expect(tr.Shocks).To(HaveLen(2))
			for _, s := range tr.Shocks {
				Expect(s.LossR).To(BeZero())
				Expect(s.LossP).To(BeZero())
			}
		})
	})

	Context("with full technology transfer", func() {
		BeforeEach(func() { params.Mp = 1 })

		It("keeps the richer country's innovation constant", func() {
			tr := run(2)
			ir := tr.Series(climate.IdxIr)
			for _, v := range ir {
				Expect(v).To(Equal(ir[0]))
			}
		})
	})
})
