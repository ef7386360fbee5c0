package syscall

import (
	"github.com/kernlab/nucleon/hooking"
	"github.com/kernlab/nucleon/trap"
)

// HookPosDispatch marks the point where a syscall has been decoded, before
// its handler runs. The hook item is the trap frame, the detail the Number.
var HookPosDispatch = &hooking.HookPos{Name: "SyscallDispatch"}

// HandlerFunc implements one system call. The frame is the caller's saved
// context; arguments are read from its registers.
//
// A handler that switches the running process away (exit, yield, block)
// must return a deferred result, since by the time it returns the frame
// holds the context of whatever process was switched in.
type HandlerFunc func(f *trap.Frame) Result

// Dispatcher routes syscall traps to handlers by number.
type Dispatcher struct {
	hooking.HookableBase

	handlers map[Number]HandlerFunc
}

// NewDispatcher returns a Dispatcher with no syscalls wired.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Number]HandlerFunc),
	}
}

// Register wires a handler for a number. Rewiring a number is a kernel bug.
func (d *Dispatcher) Register(num Number, h HandlerFunc) {
	if _, ok := d.handlers[num]; ok {
		panic("syscall number registered twice")
	}

	d.handlers[num] = h
}

// Handle serves the syscall trap. It satisfies trap.Handler so the
// dispatcher wires directly into the trap table. A bad request fails the
// call, never the kernel, so Handle itself always succeeds.
func (d *Dispatcher) Handle(f *trap.Frame) error {
	num := Number(f.AX)

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosDispatch,
		Item:   f,
		Detail: num,
	})

	h, ok := d.handlers[num]
	if !ok {
		f.AX = ErrnoInvalidSyscall.Encode()
		return nil
	}

	res := h(f)
	if res.Deferred {
		return nil
	}

	if res.Errno != 0 {
		f.AX = res.Errno.Encode()
		return nil
	}

	f.AX = res.Value

	return nil
}
