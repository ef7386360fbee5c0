package proc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kernlab/nucleon/cpu"
	"github.com/kernlab/nucleon/hooking"
	"github.com/kernlab/nucleon/mem/vm"
	"github.com/kernlab/nucleon/trap"
)

// Scheduling errors.
var (
	// ErrResourceExhausted wraps frame or heap exhaustion during Spawn.
	ErrResourceExhausted = errors.New("proc: resource exhausted")

	// ErrNoSuchProcess reports an operation on an unknown or dead pid.
	ErrNoSuchProcess = errors.New("proc: no such process")
)

// Hook positions raised by the scheduler.
var (
	// HookPosStateChange fires on every lifecycle transition. Item is the
	// *Process, Detail the previous State.
	HookPosStateChange = &hooking.HookPos{Name: "ProcessStateChange"}

	// HookPosSwitch fires after a completed switch. Item is the incoming
	// PID (0 when the core went idle), Detail the outgoing PID.
	HookPosSwitch = &hooking.HookPos{Name: "ContextSwitch"}
)

// KilledExitCode is recorded when a process is terminated from outside.
const KilledExitCode int64 = -9

// SpaceTable is the slice of the address-space manager the scheduler needs:
// switching the active space and tearing spaces down.
type SpaceTable interface {
	SetActive(*vm.Space)
	KernelSpace() *vm.Space
	Destroy(*vm.Space) error
}

// StackAllocator is the slice of the kernel heap the scheduler needs for
// kernel stacks.
type StackAllocator interface {
	Alloc(size, align uint64) (uint64, error)
	Free(addr, size uint64)
}

// Scheduler implements strict-FIFO round robin with no priority levels:
// among N Ready processes each runs within N slices of becoming Ready, so
// nothing starves.
//
// The scheduler only runs inside a trap pass. The current trap frame is the
// authoritative register context of the interrupted process; switching means
// swapping PCB contexts through that frame and retargeting the active
// address space, both within the same uninterruptible pass, so no other
// handler can ever observe new registers with the old address space or the
// reverse.
type Scheduler struct {
	*hooking.HookableBase

	spaces SpaceTable
	stacks StackAllocator

	timeSlice int

	procs   map[PID]*Process
	readyQ  []PID
	running PID
	nextPID PID

	frame  *trap.Frame
	exitFn func(*Process)
}

// NewScheduler creates a scheduler handing out the given time slice (in
// timer ticks) to each dispatched process.
func NewScheduler(
	spaces SpaceTable,
	stacks StackAllocator,
	timeSlice int,
) *Scheduler {
	if timeSlice <= 0 {
		panic("proc: time slice must be positive")
	}

	return &Scheduler{
		HookableBase: hooking.NewHookableBase(),
		spaces:       spaces,
		stacks:       stacks,
		timeSlice:    timeSlice,
		procs:        make(map[PID]*Process),
		nextPID:      1,
	}
}

// SetExitNotifier registers a callback invoked after a process terminated
// and its resources were released. The syscall layer uses it to resolve
// pending waits.
func (s *Scheduler) SetExitNotifier(fn func(*Process)) {
	s.exitFn = fn
}

// SetTrapFrame registers the frame of the trap pass in progress. The kernel
// calls it on trap entry; scheduler operations that move contexts around
// require it.
func (s *Scheduler) SetTrapFrame(f *trap.Frame) {
	s.frame = f
}

// Spawn creates a process that will start executing at entry with the given
// user stack top, owning the given address space. The new process enters the
// tail of the ready queue. Fails with ErrResourceExhausted when the kernel
// stack cannot be allocated; the caller keeps ownership of the space in that
// case.
func (s *Scheduler) Spawn(
	name string,
	entry, stackTop uint64,
	space *vm.Space,
) (PID, error) {
	stack, err := s.stacks.Alloc(KernelStackSize, 16)
	if err != nil {
		return 0, fmt.Errorf("proc: spawn %q: %w: %v",
			name, ErrResourceExhausted, err)
	}

	pid := s.nextPID
	s.nextPID++

	p := &Process{
		PID:         pid,
		Name:        name,
		Parent:      s.running,
		State:       Ready,
		Space:       space,
		KernelStack: stack,
		Saved: cpu.Regs{
			IP:    entry,
			SP:    stackTop,
			Flags: cpu.FlagIF | 0x2,
			CS:    cpu.UserCS,
			SS:    cpu.UserSS,
		},
	}

	s.procs[pid] = p
	s.readyQ = append(s.readyQ, pid)

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosStateChange,
		Item:   p,
		Detail: Ready,
	})

	return pid, nil
}

// Tick is invoked from the timer trap handler. It charges the Running
// process one tick and reschedules when the slice is used up, so scheduling
// latency stays bounded by the slice length.
func (s *Scheduler) Tick() {
	if s.running == 0 {
		// Core was idle; dispatch if anything became Ready.
		if len(s.readyQ) > 0 {
			s.Switch()
		}

		return
	}

	p := s.procs[s.running]
	p.TimeSliceRemaining--

	if p.TimeSliceRemaining <= 0 {
		s.Switch()
	}
}

// Switch performs the context switch: the outgoing process (if still
// runnable) goes to the tail of the ready queue, the head becomes Running,
// and its address space and register context are installed together. With
// nothing Ready the core drops to the kernel space and will halt until the
// next interrupt.
func (s *Scheduler) Switch() {
	s.mustBeInTrap()

	outgoing := s.running

	if s.running != 0 {
		out := s.procs[s.running]
		out.Saved = s.frame.Regs

		if out.State == Running {
			s.setState(out, Ready)
			s.readyQ = append(s.readyQ, out.PID)
		}

		s.running = 0
	}

	if len(s.readyQ) == 0 {
		s.spaces.SetActive(s.spaces.KernelSpace())

		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosSwitch,
			Item:   PID(0),
			Detail: outgoing,
		})

		return
	}

	next := s.procs[s.readyQ[0]]
	s.readyQ = s.readyQ[1:]

	s.setState(next, Running)
	next.TimeSliceRemaining = s.timeSlice
	s.running = next.PID

	// Address-space root and register context swap together; nothing can
	// interrupt this trap pass between the two lines.
	s.spaces.SetActive(next.Space)
	s.frame.Regs = next.Saved

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosSwitch,
		Item:   next.PID,
		Detail: outgoing,
	})
}

// Yield moves the Running process to the tail of the ready queue and
// dispatches the head. A lone process lands back on the core immediately.
func (s *Scheduler) Yield() {
	s.Switch()
}

// Block parks the Running process until Wake, recording what it waits on,
// and dispatches another process (or idles the core).
func (s *Scheduler) Block(reason string) {
	p := s.currentProc()
	s.setState(p, Blocked)
	p.WaitingOn = reason

	s.Switch()
}

// Wake moves a Blocked process back to Ready. Waking a process that is not
// Blocked is a no-op; the owner of an event may race with termination.
func (s *Scheduler) Wake(pid PID) bool {
	p, ok := s.procs[pid]
	if !ok || p.State != Blocked {
		return false
	}

	p.WaitingOn = ""
	s.setState(p, Ready)
	s.readyQ = append(s.readyQ, pid)

	return true
}

// WakeWithResult is Wake plus delivery of a deferred syscall result: the
// value lands in the saved context's AX and reaches the process when it is
// next dispatched.
func (s *Scheduler) WakeWithResult(pid PID, result uint64) bool {
	p, ok := s.procs[pid]
	if !ok || p.State != Blocked {
		return false
	}

	p.Saved.AX = result

	return s.Wake(pid)
}

// Exit terminates the Running process: its address space and kernel stack
// are released and it never runs again.
func (s *Scheduler) Exit(code int64) {
	p := s.currentProc()
	p.ExitCode = code
	s.setState(p, Terminated)

	// Switch away first; destroying the active space would pull the
	// translation structure out from under the core.
	s.Switch()

	s.release(p)
}

// Kill terminates another process. Ready and Blocked processes die
// immediately; the Running process is marked and dies at the next safe
// point (return from the current trap handler), never mid-handler.
func (s *Scheduler) Kill(pid PID) error {
	p, ok := s.procs[pid]
	if !ok || p.State == Terminated {
		return fmt.Errorf("proc: kill %d: %w", pid, ErrNoSuchProcess)
	}

	if pid == s.running {
		p.killRequested = true
		return nil
	}

	if p.State == Ready {
		s.removeFromReady(pid)
	}

	p.ExitCode = KilledExitCode
	s.setState(p, Terminated)
	s.release(p)

	return nil
}

// AtSafePoint applies a deferred kill of the Running process. The kernel
// calls it after every trap dispatch, which is the next safe point after an
// asynchronous termination request.
func (s *Scheduler) AtSafePoint() {
	if s.running == 0 {
		return
	}

	if s.procs[s.running].killRequested {
		s.Exit(KilledExitCode)
	}
}

// CurrentPID returns the Running pid, or 0 when the core is idle.
func (s *Scheduler) CurrentPID() PID {
	return s.running
}

// HasRunning reports whether any process owns the core.
func (s *Scheduler) HasRunning() bool {
	return s.running != 0
}

// HasLive reports whether any process can still make progress. The machine
// shuts down when this turns false.
func (s *Scheduler) HasLive() bool {
	for _, p := range s.procs {
		if p.State != Terminated {
			return true
		}
	}

	return false
}

// Lookup returns the process with the given pid.
func (s *Scheduler) Lookup(pid PID) (*Process, bool) {
	p, ok := s.procs[pid]
	return p, ok
}

// Processes returns all PCBs ordered by pid, terminated ones included.
func (s *Scheduler) Processes() []*Process {
	out := make([]*Process, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })

	return out
}

// ReadyQueue returns a snapshot of the ready queue, head first.
func (s *Scheduler) ReadyQueue() []PID {
	out := make([]PID, len(s.readyQ))
	copy(out, s.readyQ)

	return out
}

func (s *Scheduler) setState(p *Process, newState State) {
	old := p.State
	p.State = newState

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosStateChange,
		Item:   p,
		Detail: old,
	})
}

func (s *Scheduler) release(p *Process) {
	if p.Space != nil {
		if err := s.spaces.Destroy(p.Space); err != nil {
			// The space must have been switched away from before release;
			// failing here means the lifecycle state machine is broken.
			panic(fmt.Sprintf("proc: releasing pid %d: %v", p.PID, err))
		}

		p.Space = nil
	}

	if p.KernelStack != 0 {
		s.stacks.Free(p.KernelStack, KernelStackSize)
		p.KernelStack = 0
	}

	if s.exitFn != nil {
		s.exitFn(p)
	}
}

func (s *Scheduler) removeFromReady(pid PID) {
	for i, q := range s.readyQ {
		if q == pid {
			s.readyQ = append(s.readyQ[:i], s.readyQ[i+1:]...)
			return
		}
	}

	panic(fmt.Sprintf("proc: pid %d Ready but not queued", pid))
}

func (s *Scheduler) currentProc() *Process {
	if s.running == 0 {
		panic("proc: no running process")
	}

	return s.procs[s.running]
}

func (s *Scheduler) mustBeInTrap() {
	if s.frame == nil {
		panic("proc: context switch outside a trap pass")
	}
}
