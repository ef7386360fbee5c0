// Package kernel wires the machine together: physical memory behind the
// translating bus, the trap table and interrupt controller, the scheduler,
// the syscall dispatcher, and the devices, all driven by the event engine
// one instruction per cycle.
package kernel

import (
	"github.com/kernlab/nucleon/cpu"
	"github.com/kernlab/nucleon/dev"
	"github.com/kernlab/nucleon/mem/heap"
	"github.com/kernlab/nucleon/mem/phys"
	"github.com/kernlab/nucleon/mem/vm"
	"github.com/kernlab/nucleon/proc"
	"github.com/kernlab/nucleon/syscall"
	"github.com/kernlab/nucleon/timing"
	"github.com/kernlab/nucleon/trap"
)

// FaultExitCode is recorded for a process terminated by an unhandled
// exception.
const FaultExitCode int64 = -11

type cpuStepEvent struct{}

// pendingRead is a read syscall waiting for input: where the bytes go once
// they arrive.
type pendingRead struct {
	pid     proc.PID
	handle  uint64
	bufAddr uint64
	count   uint64
}

// Kernel is the assembled machine. Build one with MakeBuilder.
type Kernel struct {
	Engine   timing.Engine
	CPU      *cpu.CPU
	Mem      *phys.Memory
	Frames   *phys.Allocator
	VM       *vm.Manager
	Heap     *heap.Allocator
	Traps    *trap.Table
	Ctrl     *trap.Controller
	Sched    *proc.Scheduler
	Syscalls *syscall.Dispatcher
	Timer    *dev.Timer
	Keyboard *dev.Keyboard
	Console  *dev.Console
	Loader   *Loader

	bus       *memBus
	handlers  *syscall.Handlers
	maxCycles timing.Cycle
	waiters   []pendingRead
}

// Spawn loads a program image and enqueues the new process.
func (k *Kernel) Spawn(p Program) (proc.PID, error) {
	return k.Loader.Spawn(p)
}

// Run starts the timer and the instruction stream and processes events
// until every process has terminated or the cycle cap is reached.
func (k *Kernel) Run() error {
	k.Timer.Start()
	k.scheduleStep(k.Engine.CurrentCycle() + 1)

	return k.Engine.Run()
}

// Handle processes the per-cycle step event. It satisfies timing.Handler.
func (k *Kernel) Handle(event any) error {
	if _, ok := event.(*cpuStepEvent); !ok {
		return nil
	}

	return k.step()
}

func (k *Kernel) step() error {
	if !k.Sched.HasLive() || k.Engine.CurrentCycle() >= k.maxCycles {
		// Let the scheduled device events expire without rescheduling so
		// the engine drains.
		k.Timer.Stop()
		return nil
	}

	// Interrupts are taken at instruction boundaries only, and only when
	// the core is willing: flag clear means the trap path is already in
	// charge, halted means waiting for exactly this.
	if k.CPU.InterruptsEnabled() || k.CPU.Halted {
		if line, ok := k.Ctrl.Pending(); ok {
			vector := k.Ctrl.Ack(line)
			k.takeTrap(vector, line, 0)
			k.scheduleStep(k.Engine.CurrentCycle() + 1)

			return nil
		}
	}

	res := k.CPU.Step()

	switch res.Kind {
	case cpu.StepSyscall:
		k.takeTrap(trap.VectorSyscall, -1, 0)
	case cpu.StepFault:
		k.takeTrap(res.Vector, -1, res.FaultAddr)
	case cpu.StepOK, cpu.StepHalted:
	}

	k.scheduleStep(k.Engine.CurrentCycle() + 1)

	return nil
}

func (k *Kernel) scheduleStep(at timing.Cycle) {
	k.Engine.Schedule(timing.FutureEvent{
		Event:   &cpuStepEvent{},
		Time:    at,
		Handler: k,
	})
}

// takeTrap runs one full trap pass: snapshot the interrupted context into a
// frame, enter kernel mode with interrupts off, dispatch, apply any deferred
// kill, then resume whatever context the frame now holds. The scheduler may
// have swapped the frame's contents to a different process in between.
func (k *Kernel) takeTrap(vector, irq int, faultAddr uint64) {
	frame := &trap.Frame{
		Regs:      k.CPU.SaveContext(),
		Vector:    vector,
		IRQ:       irq,
		FaultAddr: faultAddr,
	}

	k.CPU.Regs.CS = cpu.KernelCS
	k.CPU.Regs.SS = cpu.KernelSS
	k.CPU.Regs.Flags &^= cpu.FlagIF

	k.Sched.SetTrapFrame(frame)

	if err := k.Traps.Dispatch(frame); err != nil {
		k.Console.Logf("kernel: vector %d handler: %v\n", vector, err)
	}

	k.Sched.AtSafePoint()
	k.Sched.SetTrapFrame(nil)

	if k.Sched.HasRunning() {
		k.CPU.RestoreContext(frame.Regs)
		return
	}

	k.idle()
}

// idle parks the core in kernel mode with interrupts enabled, halted until
// the next interrupt.
func (k *Kernel) idle() {
	k.CPU.RestoreContext(cpu.Regs{
		CS:    cpu.KernelCS,
		SS:    cpu.KernelSS,
		Flags: cpu.FlagIF | 0x2,
	})
	k.CPU.Halt()
}

func (k *Kernel) handleTimer(_ *trap.Frame) error {
	k.Sched.Tick()
	k.Ctrl.EOI(trap.IRQTimer)

	return nil
}

func (k *Kernel) handleKeyboard(_ *trap.Frame) error {
	k.Console.PushInput(k.Keyboard.ReadData())
	k.completePendingReads()
	k.Ctrl.EOI(trap.IRQKeyboard)

	return nil
}

func (k *Kernel) handleSyscall(f *trap.Frame) error {
	return k.Syscalls.Handle(f)
}

// handleFault terminates the faulting user process. A fault taken while the
// interrupted context was kernel mode means kernel memory corruption, and
// nothing can be trusted after that.
func (k *Kernel) handleFault(f *trap.Frame) error {
	if !f.UserMode() {
		panic("kernel: exception in kernel mode")
	}

	pid := k.Sched.CurrentPID()
	p, _ := k.Sched.Lookup(pid)

	k.Console.Logf("kernel: pid %d (%s) vector %d at IP %#x, killed\n",
		pid, p.Name, f.Vector, f.IP)

	k.Sched.Exit(FaultExitCode)

	return nil
}

// WaitForInput registers a parked read. The keyboard handler completes it
// when bytes arrive.
func (k *Kernel) WaitForInput(pid proc.PID, handle, bufAddr, count uint64) {
	k.waiters = append(k.waiters, pendingRead{
		pid:     pid,
		handle:  handle,
		bufAddr: bufAddr,
		count:   count,
	})
}

// completePendingReads delivers queued input to parked reads in arrival
// order. Each completed read wakes its process with the byte count in the
// saved AX, or an errno if the destination buffer went bad.
func (k *Kernel) completePendingReads() {
	for len(k.waiters) > 0 && k.Console.InputLen() > 0 {
		w := k.waiters[0]

		p, ok := k.Sched.Lookup(w.pid)
		if !ok || p.State != proc.Blocked {
			k.waiters = k.waiters[1:]
			continue
		}

		buf := make([]byte, w.count)
		n, err := k.Console.Read(w.handle, buf)
		if err != nil || n == 0 {
			return
		}

		result := uint64(n)
		if err := k.bus.writeInto(p.Space, w.bufAddr, buf[:n]); err != nil {
			result = syscall.ErrnoInvalidArgument.Encode()
		}

		k.Sched.WakeWithResult(w.pid, result)
		k.waiters = k.waiters[1:]
	}
}

// onExit resolves everything that referenced the dead process: waiting
// parents and parked reads.
func (k *Kernel) onExit(p *proc.Process) {
	for i := 0; i < len(k.waiters); {
		if k.waiters[i].pid == p.PID {
			k.waiters = append(k.waiters[:i], k.waiters[i+1:]...)
			continue
		}
		i++
	}

	k.handlers.NotifyExit(p)
}
