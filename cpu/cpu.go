package cpu

import "encoding/binary"

// Exception vectors raised by instruction execution.
const (
	VectorInvalidOpcode     = 6
	VectorGeneralProtection = 13
	VectorPageFault         = 14
)

// A Bus performs memory accesses on behalf of the core, translating virtual
// addresses through the active address space and enforcing permission bits.
// An error means the access faulted.
type Bus interface {
	// Fetch reads instruction bytes. Fails on non-present or non-executable
	// pages, and on kernel pages when user is set.
	Fetch(vaddr uint64, buf []byte, user bool) error

	// Read performs a data load.
	Read(vaddr uint64, buf []byte, user bool) error

	// Write performs a data store. Fails on read-only pages.
	Write(vaddr uint64, buf []byte, user bool) error
}

// StepKind classifies the outcome of one executed instruction.
type StepKind int

const (
	// StepOK means the instruction retired normally.
	StepOK StepKind = iota

	// StepSyscall means the instruction was a syscall trap. IP already
	// points past the instruction so the process resumes after it.
	StepSyscall

	// StepFault means the instruction raised an exception.
	StepFault

	// StepHalted means the core is halted waiting for an interrupt.
	StepHalted
)

// StepResult reports what one call to Step did.
type StepResult struct {
	Kind StepKind

	// Vector is the exception vector, valid when Kind is StepFault.
	Vector int

	// FaultAddr is the address that failed to translate, valid for page
	// faults.
	FaultAddr uint64
}

// CPU is the single simulated core. The live register file is authoritative
// for whichever process is Running; everyone else's context lives in their
// PCB.
type CPU struct {
	Regs   Regs
	Halted bool

	bus Bus
}

// New creates a core wired to the given bus. It starts in kernel mode with
// interrupts disabled, matching the entry contract from the boot stage.
func New(bus Bus) *CPU {
	return &CPU{
		bus: bus,
		Regs: Regs{
			CS: KernelCS,
			SS: KernelSS,
		},
	}
}

// SaveContext copies the live register file out. This is the narrow
// register-capture boundary: everything above it handles plain Regs values.
func (c *CPU) SaveContext() Regs {
	return c.Regs
}

// RestoreContext replaces the live register file. A halted core resumes.
func (c *CPU) RestoreContext(r Regs) {
	c.Regs = r
	c.Halted = false
}

// Halt idles the core until the next interrupt wakes it.
func (c *CPU) Halt() {
	c.Halted = true
}

// InterruptsEnabled reports whether the core currently accepts maskable
// interrupts.
func (c *CPU) InterruptsEnabled() bool {
	return c.Regs.InterruptsEnabled()
}

// Step executes one instruction at the current IP.
func (c *CPU) Step() StepResult {
	if c.Halted {
		return StepResult{Kind: StepHalted}
	}

	user := c.Regs.UserMode()

	var opcode [1]byte
	if err := c.bus.Fetch(c.Regs.IP, opcode[:], user); err != nil {
		return c.pageFault(c.Regs.IP)
	}

	switch opcode[0] {
	case OpNop:
		c.Regs.IP++
		return StepResult{Kind: StepOK}

	case OpMovi:
		var operands [9]byte
		if err := c.bus.Fetch(c.Regs.IP+1, operands[:], user); err != nil {
			return c.pageFault(c.Regs.IP + 1)
		}

		reg := int(operands[0])
		if reg >= numRegs {
			return StepResult{Kind: StepFault, Vector: VectorInvalidOpcode}
		}

		c.Regs.Set(reg, binary.LittleEndian.Uint64(operands[1:]))
		c.Regs.IP += 10

		return StepResult{Kind: StepOK}

	case OpJmp:
		var target [8]byte
		if err := c.bus.Fetch(c.Regs.IP+1, target[:], user); err != nil {
			return c.pageFault(c.Regs.IP + 1)
		}

		c.Regs.IP = binary.LittleEndian.Uint64(target[:])

		return StepResult{Kind: StepOK}

	case OpSyscall:
		c.Regs.IP++
		return StepResult{Kind: StepSyscall}

	case OpHalt:
		if user {
			return StepResult{
				Kind:   StepFault,
				Vector: VectorGeneralProtection,
			}
		}

		c.Regs.IP++
		c.Halted = true

		return StepResult{Kind: StepHalted}

	default:
		return StepResult{Kind: StepFault, Vector: VectorInvalidOpcode}
	}
}

func (c *CPU) pageFault(vaddr uint64) StepResult {
	return StepResult{
		Kind:      StepFault,
		Vector:    VectorPageFault,
		FaultAddr: vaddr,
	}
}
