package sched_test

import (
	"github.com/markphelps/optional"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pollsched/internal/sched"
	"pollsched/internal/task"
)

func mustSet(tasks ...task.Task) *task.Set {
	set, err := task.NewSet(tasks...)
	Expect(err).ToNot(HaveOccurred())
	return set
}

func idle(t, charge int) sched.Entry {
	return sched.Entry{Tick: t, Idle: true, ServerCharge: charge}
}

var _ = Describe("Engine", func() {
	var ids task.IDAllocator

	BeforeEach(func() {
		ids = task.IDAllocator{}
	})

	Context("with one periodic task, one aperiodic request and a server", func() {
		var set *task.Set

		BeforeEach(func() {
			set = mustSet(
				ids.NewPeriodic(8, 2),
				ids.NewAperiodic(3, 1),
				task.NewServer(4, 1),
			)
		})

		It("should produce the reference trace", func() {
			log, analysis, err := sched.Simulate(set, 8)
			Expect(err).ToNot(HaveOccurred())
			Expect(analysis.Schedulable()).To(BeTrue())

			Expect(log.Entries()).To(Equal([]sched.Entry{
				{Tick: 0, Kind: task.KindPeriodic, TaskID: 1, TaskPeriod: 8, Deadline: optional.NewInt(8),
					Release: 0, ServerCharge: 1, ServerPeriod: 4, Remaining: 1},
				{Tick: 1, Kind: task.KindPeriodic, TaskID: 1, TaskPeriod: 8, Deadline: optional.NewInt(8),
					Release: 0, ServerCharge: 0, ServerPeriod: 4, Remaining: 0},
				idle(2, 0),
				idle(3, 0),
				{Tick: 4, Kind: task.KindAperiodic, TaskID: 1, TaskPeriod: 4,
					Release: 3, ServerCharge: 1, ServerPeriod: 4, Remaining: 0},
				idle(5, 0),
				idle(6, 0),
				idle(7, 0),
			}))

			e, ok := log.At(4)
			Expect(ok).To(BeTrue())
			Expect(e.Status()).To(Equal(sched.StatusAperiodic))
			_, ok = log.At(8)
			Expect(ok).To(BeFalse())
		})

		It("should be deterministic", func() {
			first := sched.New(set).Run(8)
			second := sched.New(set).Run(8)

			Expect(second.Entries()).To(Equal(first.Entries()))
			Expect(second.RunID).ToNot(Equal(first.RunID))
		})

		It("should start every Run from a clean state", func() {
			e := sched.New(set)
			first := e.Run(8)
			second := e.Run(8)

			Expect(second.Entries()).To(Equal(first.Entries()))
		})

		It("should refuse a horizon that is not the hyperperiod", func() {
			log, analysis, err := sched.Simulate(set, 16)

			Expect(log).To(BeNil())
			Expect(err).To(MatchError(sched.ErrHorizonMismatch))
			Expect(analysis.Hyperperiod).To(Equal(8))
		})

		It("should hand every entry to the observer in tick order", func() {
			var seen []int
			sched.New(set, sched.WithObserver(func(e sched.Entry) { seen = append(seen, e.Tick) })).Run(8)

			Expect(seen).To(Equal([]int{0, 1, 2, 3, 4, 5, 6, 7}))
		})
	})

	Context("when the server has no charge for waiting aperiodic work", func() {
		It("should run periodic work instead", func() {
			set := mustSet(
				ids.NewPeriodic(8, 3),
				ids.NewAperiodic(1, 1),
				task.NewServer(4, 1),
			)

			log := sched.New(set).Run(8)
			statuses := make([]sched.StatusKind, 0, log.Len())
			for _, e := range log.Entries() {
				statuses = append(statuses, e.Status())
			}

			Expect(statuses).To(Equal([]sched.StatusKind{
				sched.StatusPeriodic,  // charge 1, lower-priority periodic forfeits it
				sched.StatusPeriodic,  // aperiodic is the head, charge 0: override
				sched.StatusPeriodic,  // same
				sched.StatusIdle,      // unfunded aperiodic, nothing to fall back on
				sched.StatusAperiodic, // refilled at 4
				sched.StatusIdle,
				sched.StatusIdle,
				sched.StatusIdle,
			}))
		})

		It("should never log aperiodic execution without charge", func() {
			set := mustSet(
				ids.NewPeriodic(6, 2),
				ids.NewPeriodic(12, 3),
				ids.NewAperiodic(0, 2),
				ids.NewAperiodic(2, 3),
				ids.NewAperiodic(7, 1),
				task.NewServer(4, 1),
			)

			for _, e := range sched.New(set).Run(24).Entries() {
				if e.Status() == sched.StatusAperiodic {
					Expect(e.ServerCharge).To(BeNumerically(">", 0), "tick %d", e.Tick)
				}
			}
		})
	})

	Context("after an idle tick", func() {
		It("should start the next tick with zero charge before replenishment", func() {
			srv := task.NewServer(3, 2)
			set := mustSet(
				ids.NewPeriodic(5, 1),
				ids.NewAperiodic(4, 1),
				ids.NewAperiodic(9, 2),
				srv,
			)

			entries := sched.New(set).Run(15).Entries()
			idles := 0
			for i := 0; i+1 < len(entries); i++ {
				if !entries[i].Idle {
					continue
				}
				idles++
				next := entries[i+1]
				want := 0
				if next.Tick%srv.Period == 0 {
					want = srv.Capacity
				}
				Expect(next.ServerCharge).To(Equal(want), "tick %d", next.Tick)
			}
			Expect(idles).To(BeNumerically(">", 0))
		})
	})

	Context("when only higher-priority periodic work runs", func() {
		It("should keep and stack the server charge", func() {
			set := mustSet(
				ids.NewPeriodic(2, 2),
				task.NewServer(4, 1),
			)

			engine := sched.New(set)
			log := engine.Run(9)

			charges := make([]int, 0, log.Len())
			for _, e := range log.Entries() {
				charges = append(charges, e.ServerCharge)
			}
			Expect(charges).To(Equal([]int{1, 1, 1, 1, 2, 2, 2, 2, 3}))
			Expect(engine.Charge()).To(Equal(3))
		})
	})

	Context("when two jobs share a priority key", func() {
		It("should run the earlier release first", func() {
			set := mustSet(
				ids.NewPeriodic(2, 3),
				task.NewServer(100, 0),
			)

			log := sched.New(set).Run(4)

			releases := make([]int, 0, log.Len())
			for _, e := range log.Entries() {
				Expect(e.Idle).To(BeFalse())
				releases = append(releases, e.Release)
			}
			Expect(releases).To(Equal([]int{0, 0, 0, 2}))
		})
	})

	Context("with only aperiodic work", func() {
		It("should charge one unit per aperiodic tick", func() {
			set := mustSet(
				ids.NewAperiodic(0, 3),
				task.NewServer(2, 2),
			)

			log := sched.New(set).Run(4)

			Expect(log.Entries()).To(Equal([]sched.Entry{
				{Tick: 0, Kind: task.KindAperiodic, TaskID: 1, TaskPeriod: 2, Release: 0, ServerCharge: 2, ServerPeriod: 2, Remaining: 2},
				{Tick: 1, Kind: task.KindAperiodic, TaskID: 1, TaskPeriod: 2, Release: 0, ServerCharge: 1, ServerPeriod: 2, Remaining: 1},
				{Tick: 2, Kind: task.KindAperiodic, TaskID: 1, TaskPeriod: 2, Release: 0, ServerCharge: 2, ServerPeriod: 2, Remaining: 0},
				idle(3, 1),
			}))
		})
	})
})
