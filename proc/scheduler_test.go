package proc

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kernlab/nucleon/cpu"
	"github.com/kernlab/nucleon/mem/vm"
	"github.com/kernlab/nucleon/trap"
)

type fakeSpaces struct {
	kernel    *vm.Space
	active    *vm.Space
	destroyed []*vm.Space
}

func newFakeSpaces() *fakeSpaces {
	k := &vm.Space{}
	return &fakeSpaces{kernel: k, active: k}
}

func (f *fakeSpaces) SetActive(s *vm.Space)  { f.active = s }
func (f *fakeSpaces) KernelSpace() *vm.Space { return f.kernel }

func (f *fakeSpaces) Destroy(s *vm.Space) error {
	if s == f.active {
		return vm.ErrSpaceActive
	}

	f.destroyed = append(f.destroyed, s)

	return nil
}

type fakeStacks struct {
	next    uint64
	freed   []uint64
	failing bool
}

func (f *fakeStacks) Alloc(size, _ uint64) (uint64, error) {
	if f.failing {
		return 0, errors.New("no memory")
	}

	f.next += size
	return f.next, nil
}

func (f *fakeStacks) Free(addr, _ uint64) {
	f.freed = append(f.freed, addr)
}

var _ = Describe("Scheduler", func() {
	var (
		spaces *fakeSpaces
		stacks *fakeStacks
		sched  *Scheduler
		frame  *trap.Frame
	)

	spawn := func(name string) (PID, *vm.Space) {
		space := &vm.Space{}
		pid, err := sched.Spawn(name, 0x400000, 0x7FFF_FFF0_1000, space)
		Expect(err).ToNot(HaveOccurred())

		return pid, space
	}

	runningCount := func() int {
		n := 0
		for _, p := range sched.Processes() {
			if p.State == Running {
				n++
			}
		}

		return n
	}

	BeforeEach(func() {
		spaces = newFakeSpaces()
		stacks = &fakeStacks{}
		sched = NewScheduler(spaces, stacks, 2)
		frame = &trap.Frame{}
		sched.SetTrapFrame(frame)
	})

	Context("spawning", func() {
		It("should create a Ready process with a fresh user context", func() {
			pid, space := spawn("init")

			p, ok := sched.Lookup(pid)
			Expect(ok).To(BeTrue())
			Expect(p.State).To(Equal(Ready))
			Expect(p.Space).To(BeIdenticalTo(space))
			Expect(p.Saved.IP).To(Equal(uint64(0x400000)))
			Expect(p.Saved.SP).To(Equal(uint64(0x7FFF_FFF0_1000)))
			Expect(p.Saved.CS).To(Equal(cpu.UserCS))
			Expect(p.Saved.SS).To(Equal(cpu.UserSS))
			Expect(p.Saved.Flags & cpu.FlagIF).ToNot(BeZero())
			Expect(sched.ReadyQueue()).To(Equal([]PID{pid}))
		})

		It("should hand out increasing pids", func() {
			pid1, _ := spawn("a")
			pid2, _ := spawn("b")

			Expect(pid2).To(Equal(pid1 + 1))
		})

		It("should fail when the kernel stack cannot be allocated", func() {
			stacks.failing = true

			_, err := sched.Spawn("starved", 0, 0, &vm.Space{})
			Expect(err).To(MatchError(ErrResourceExhausted))
			Expect(sched.Processes()).To(BeEmpty())
		})
	})

	Context("dispatching", func() {
		It("should dispatch the first Ready process from idle", func() {
			pid, space := spawn("init")

			sched.Tick()

			Expect(sched.CurrentPID()).To(Equal(pid))
			Expect(spaces.active).To(BeIdenticalTo(space))
			Expect(frame.IP).To(Equal(uint64(0x400000)))
			Expect(runningCount()).To(Equal(1))
		})

		It("should preempt when the slice is used up", func() {
			pid1, _ := spawn("a")
			pid2, space2 := spawn("b")

			sched.Tick() // dispatch a
			Expect(sched.CurrentPID()).To(Equal(pid1))

			sched.Tick()
			Expect(sched.CurrentPID()).To(Equal(pid1))

			sched.Tick() // slice of 2 exhausted
			Expect(sched.CurrentPID()).To(Equal(pid2))
			Expect(spaces.active).To(BeIdenticalTo(space2))
			Expect(sched.ReadyQueue()).To(Equal([]PID{pid1}))
			Expect(runningCount()).To(Equal(1))
		})

		It("should rotate fairly through all Ready processes", func() {
			pid1, _ := spawn("a")
			pid2, _ := spawn("b")
			pid3, _ := spawn("c")

			sched.Tick()

			var order []PID
			for i := 0; i < 6; i++ {
				order = append(order, sched.CurrentPID())
				sched.Switch()
			}

			Expect(order).To(Equal([]PID{
				pid1, pid2, pid3, pid1, pid2, pid3,
			}))
		})

		It("should save the outgoing context through the frame", func() {
			pid1, _ := spawn("a")
			spawn("b")

			sched.Tick()
			frame.AX = 0x1234
			sched.Switch()

			p, _ := sched.Lookup(pid1)
			Expect(p.Saved.AX).To(Equal(uint64(0x1234)))
		})

		It("should land a lone yielding process back on the core", func() {
			pid, _ := spawn("solo")

			sched.Tick()
			frame.BX = 7
			sched.Yield()

			Expect(sched.CurrentPID()).To(Equal(pid))
			Expect(frame.BX).To(Equal(uint64(7)))
		})

		It("should drop to the kernel space when nothing is Ready", func() {
			spawn("a")

			sched.Tick()
			sched.Block("input")

			Expect(sched.HasRunning()).To(BeFalse())
			Expect(spaces.active).To(BeIdenticalTo(spaces.kernel))
		})

		It("should panic when switching outside a trap pass", func() {
			spawn("a")
			sched.SetTrapFrame(nil)

			Expect(func() { sched.Switch() }).To(Panic())
		})
	})

	Context("blocking and waking", func() {
		It("should park the Running process until Wake", func() {
			pid1, _ := spawn("a")
			spawn("b")

			sched.Tick()
			sched.Block("input")

			p, _ := sched.Lookup(pid1)
			Expect(p.State).To(Equal(Blocked))
			Expect(p.WaitingOn).To(Equal("input"))
			Expect(sched.ReadyQueue()).ToNot(ContainElement(pid1))

			Expect(sched.Wake(pid1)).To(BeTrue())
			Expect(p.State).To(Equal(Ready))
			Expect(sched.ReadyQueue()).To(ContainElement(pid1))
		})

		It("should not wake a process that is not Blocked", func() {
			pid, _ := spawn("a")

			Expect(sched.Wake(pid)).To(BeFalse())
			Expect(sched.Wake(PID(99))).To(BeFalse())
		})

		It("should deliver a deferred result on wake", func() {
			pid, _ := spawn("a")

			sched.Tick()
			sched.Block("read")

			Expect(sched.WakeWithResult(pid, 42)).To(BeTrue())

			p, _ := sched.Lookup(pid)
			Expect(p.Saved.AX).To(Equal(uint64(42)))
		})
	})

	Context("terminating", func() {
		It("should release the space and stack on exit", func() {
			pid, space := spawn("a")

			sched.Tick()
			sched.Exit(3)

			p, _ := sched.Lookup(pid)
			Expect(p.State).To(Equal(Terminated))
			Expect(p.ExitCode).To(Equal(int64(3)))
			Expect(spaces.destroyed).To(ContainElement(space))
			Expect(stacks.freed).To(HaveLen(1))
			Expect(sched.HasLive()).To(BeFalse())
		})

		It("should notify the exit callback", func() {
			var exited []*Process
			sched.SetExitNotifier(func(p *Process) {
				exited = append(exited, p)
			})

			spawn("a")
			sched.Tick()
			sched.Exit(0)

			Expect(exited).To(HaveLen(1))
			Expect(exited[0].Name).To(Equal("a"))
		})

		It("should kill a Ready process immediately", func() {
			spawn("a")
			pid2, space2 := spawn("b")

			sched.Tick()

			Expect(sched.Kill(pid2)).To(Succeed())

			p, _ := sched.Lookup(pid2)
			Expect(p.State).To(Equal(Terminated))
			Expect(p.ExitCode).To(Equal(KilledExitCode))
			Expect(sched.ReadyQueue()).ToNot(ContainElement(pid2))
			Expect(spaces.destroyed).To(ContainElement(space2))
		})

		It("should defer killing the Running process to the safe point",
			func() {
				pid, _ := spawn("a")

				sched.Tick()

				Expect(sched.Kill(pid)).To(Succeed())

				p, _ := sched.Lookup(pid)
				Expect(p.State).To(Equal(Running))

				sched.AtSafePoint()
				Expect(p.State).To(Equal(Terminated))
				Expect(p.ExitCode).To(Equal(KilledExitCode))
			})

		It("should refuse to kill an unknown or dead process", func() {
			pid, _ := spawn("a")

			sched.Tick()
			sched.Exit(0)

			Expect(sched.Kill(pid)).To(MatchError(ErrNoSuchProcess))
			Expect(sched.Kill(PID(42))).To(MatchError(ErrNoSuchProcess))
		})

		It("should keep the machine alive while anyone can run", func() {
			spawn("a")
			pid2, _ := spawn("b")

			sched.Tick()
			sched.Exit(0)
			Expect(sched.HasLive()).To(BeTrue())

			Expect(sched.CurrentPID()).To(Equal(pid2))
			sched.Exit(0)
			Expect(sched.HasLive()).To(BeFalse())
		})
	})
})
