package syscall

import (
	"github.com/kernlab/nucleon/proc"
	"github.com/kernlab/nucleon/trap"
)

// Scheduler is the slice of the process scheduler the handlers need.
type Scheduler interface {
	CurrentPID() proc.PID
	Lookup(pid proc.PID) (*proc.Process, bool)
	Yield()
	Block(reason string)
	Exit(code int64)
	WakeWithResult(pid proc.PID, result uint64) bool
}

// UserMemory copies data between kernel buffers and the calling process's
// address space, with user-permission checks applied on every page.
type UserMemory interface {
	ReadUser(vaddr uint64, buf []byte) error
	WriteUser(vaddr uint64, buf []byte) error
}

// FileTable resolves file handles to reads and writes. A read that would
// block returns (0, nil).
type FileTable interface {
	Read(handle uint64, buf []byte) (int, error)
	Write(handle uint64, buf []byte) (int, error)
}

// InputWaiter parks the calling process until input arrives on a handle.
// The pending read's destination and size travel with the registration so
// the wake-up path can complete the copy.
type InputWaiter interface {
	WaitForInput(pid proc.PID, handle, bufAddr, count uint64)
}

// Spawner instantiates a new process from a registered program image.
type Spawner interface {
	SpawnImage(image uint64) (proc.PID, error)
}

// maxIOBytes caps a single read or write request.
const maxIOBytes = 1 << 20

// Handlers holds the kernel services the default syscalls are implemented
// on. Wire them into a Dispatcher with RegisterAll.
type Handlers struct {
	Sched Scheduler
	Mem   UserMemory
	Files FileTable
	Input InputWaiter
	Spawn Spawner

	// waiters maps a pid to the pids blocked in wait() on it.
	waiters map[proc.PID][]proc.PID
}

// NewHandlers builds the default handler set.
func NewHandlers(
	sched Scheduler,
	mem UserMemory,
	files FileTable,
	input InputWaiter,
	spawn Spawner,
) *Handlers {
	return &Handlers{
		Sched:   sched,
		Mem:     mem,
		Files:   files,
		Input:   input,
		Spawn:   spawn,
		waiters: make(map[proc.PID][]proc.PID),
	}
}

// RegisterAll wires every default syscall into d.
func (h *Handlers) RegisterAll(d *Dispatcher) {
	d.Register(SysExit, h.exit)
	d.Register(SysSpawn, h.spawn)
	d.Register(SysRead, h.read)
	d.Register(SysWrite, h.write)
	d.Register(SysOpen, h.open)
	d.Register(SysClose, h.close)
	d.Register(SysWait, h.wait)
	d.Register(SysGetPid, h.getPid)
	d.Register(SysGetProcessName, h.getProcessName)
	d.Register(SysYield, h.yield)
}

// NotifyExit wakes every process waiting on the terminated one, delivering
// its wait status as the wait() result. Wire it through the scheduler's exit
// notifier.
func (h *Handlers) NotifyExit(p *proc.Process) {
	pids := h.waiters[p.PID]
	delete(h.waiters, p.PID)

	for _, pid := range pids {
		h.Sched.WakeWithResult(pid, WaitStatus(p.ExitCode))
	}
}

func (h *Handlers) exit(f *trap.Frame) Result {
	h.Sched.Exit(int64(f.BX))
	return Defer()
}

func (h *Handlers) spawn(f *trap.Frame) Result {
	pid, err := h.Spawn.SpawnImage(f.BX)
	if err != nil {
		return Fail(ErrnoInvalidArgument)
	}

	return OK(uint64(pid))
}

func (h *Handlers) read(f *trap.Frame) Result {
	handle, bufAddr, count := f.BX, f.CX, f.DX

	if count == 0 {
		return OK(0)
	}

	if count > maxIOBytes {
		return Fail(ErrnoInvalidArgument)
	}

	buf := make([]byte, count)

	n, err := h.Files.Read(handle, buf)
	if err != nil {
		return Fail(ErrnoBadFileDescriptor)
	}

	if n == 0 {
		h.Input.WaitForInput(h.Sched.CurrentPID(), handle, bufAddr, count)
		h.Sched.Block("read")

		return Defer()
	}

	if err := h.Mem.WriteUser(bufAddr, buf[:n]); err != nil {
		return Fail(ErrnoInvalidArgument)
	}

	return OK(uint64(n))
}

func (h *Handlers) write(f *trap.Frame) Result {
	handle, bufAddr, count := f.BX, f.CX, f.DX

	if count == 0 {
		return OK(0)
	}

	if count > maxIOBytes {
		return Fail(ErrnoInvalidArgument)
	}

	buf := make([]byte, count)
	if err := h.Mem.ReadUser(bufAddr, buf); err != nil {
		return Fail(ErrnoInvalidArgument)
	}

	n, err := h.Files.Write(handle, buf)
	if err != nil {
		return Fail(ErrnoBadFileDescriptor)
	}

	return OK(uint64(n))
}

func (h *Handlers) open(_ *trap.Frame) Result {
	return Fail(ErrnoFileNotFound)
}

func (h *Handlers) close(_ *trap.Frame) Result {
	return OK(0)
}

func (h *Handlers) wait(f *trap.Frame) Result {
	target := proc.PID(f.BX)
	self := h.Sched.CurrentPID()

	if target == self {
		return Fail(ErrnoInvalidArgument)
	}

	p, ok := h.Sched.Lookup(target)
	if !ok {
		return Fail(ErrnoNoSuchProcess)
	}

	if p.State == proc.Terminated {
		return OK(WaitStatus(p.ExitCode))
	}

	h.waiters[target] = append(h.waiters[target], self)
	h.Sched.Block("wait")

	return Defer()
}

func (h *Handlers) getPid(_ *trap.Frame) Result {
	return OK(uint64(h.Sched.CurrentPID()))
}

func (h *Handlers) getProcessName(f *trap.Frame) Result {
	bufAddr, count := f.BX, f.CX

	p, ok := h.Sched.Lookup(h.Sched.CurrentPID())
	if !ok {
		return Fail(ErrnoNoSuchProcess)
	}

	name := []byte(p.Name)
	if uint64(len(name)) > count {
		name = name[:count]
	}

	if len(name) > 0 {
		if err := h.Mem.WriteUser(bufAddr, name); err != nil {
			return Fail(ErrnoInvalidArgument)
		}
	}

	return OK(uint64(len(name)))
}

func (h *Handlers) yield(f *trap.Frame) Result {
	// The result must land before the switch: after Yield the frame holds
	// the incoming process's context.
	f.AX = 0
	h.Sched.Yield()

	return Defer()
}
