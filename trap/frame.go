// Package trap implements the interrupt/trap dispatch machinery: the vector
// table, the trap frame that carries the interrupted register state, and the
// interrupt controller that devices raise their lines on.
package trap

import "github.com/kernlab/nucleon/cpu"

// Well-known vectors. Exception vectors below 32 come from the CPU itself;
// hardware interrupt vectors start at VectorBase; the syscall vector is
// software-raised.
const (
	VectorBase     = 32
	VectorTimer    = VectorBase + IRQTimer
	VectorKeyboard = VectorBase + IRQKeyboard
	VectorSyscall  = 0x80

	numVectors = 256
)

// IRQ line assignments on the controller.
const (
	IRQTimer    = 0
	IRQKeyboard = 1
)

// A Frame is the stack-resident snapshot of the register state at the moment
// a trap occurred. It lives only for the duration of one trap handling pass:
// the dispatcher boundary copies it into or out of a PCB's saved context and
// never retains it past the handler's return.
type Frame struct {
	cpu.Regs

	// Vector is the trap vector being handled.
	Vector int

	// IRQ is the controller line that raised this trap, or -1 for
	// exceptions and software traps.
	IRQ int

	// FaultAddr is the faulting address for page faults.
	FaultAddr uint64
}
