// Package proc owns the set of processes, their lifecycle states, and the
// round-robin scheduler that decides which one the core runs next.
package proc

import (
	"github.com/kernlab/nucleon/cpu"
	"github.com/kernlab/nucleon/mem/vm"
)

// PID identifies a process. PIDs are assigned monotonically and never
// reused, so stale references (a parent waiting on a dead child) can never
// resolve to the wrong process.
type PID uint64

// State is a process lifecycle state.
type State int

// The process lifecycle states.
const (
	// Ready means the process is runnable and queued.
	Ready State = iota

	// Running means the process owns the core. Exactly one process is
	// Running whenever any process is runnable.
	Running

	// Blocked means the process waits for an event (input, child exit).
	Blocked

	// Terminated is final; the process never becomes Ready again.
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// KernelStackSize is the size of the per-process kernel stack allocated from
// the kernel heap.
const KernelStackSize = 4096

// A Process is the control block of one process.
type Process struct {
	PID    PID
	Name   string
	State  State
	Parent PID

	// Saved is the full register context. It is authoritative only while
	// the process is not Running; the live core registers (mirrored in the
	// current trap frame during a trap) are authoritative otherwise.
	Saved cpu.Regs

	// Space is the exclusively owned address space, destroyed on
	// termination. Nil once released.
	Space *vm.Space

	// KernelStack is the heap range used while the process executes in
	// trap context. Exclusively owned, never shared.
	KernelStack uint64

	// TimeSliceRemaining counts down on each timer tick; hitting zero
	// triggers rescheduling.
	TimeSliceRemaining int

	// WaitingOn names the event a Blocked process waits for.
	WaitingOn string

	// ExitCode is valid once State is Terminated.
	ExitCode int64

	killRequested bool
}
