// Package cpu models the single simulated core: its register file, privilege
// level, and the fetch-decode-execute step that drives user programs. The
// save/restore of the whole register file happens through one narrow boundary
// so the scheduler only ever manipulates plain data.
package cpu

import "fmt"

// Flags register bits.
const (
	// FlagIF enables maskable interrupts when set.
	FlagIF uint64 = 1 << 9
)

// Segment selectors forming the user/kernel privilege contract. The low two
// bits carry the requested privilege level.
const (
	KernelCS uint64 = 0x08
	KernelSS uint64 = 0x10
	UserCS   uint64 = 0x1B
	UserSS   uint64 = 0x23
)

// Regs is the full register set of the core. A copy of it is the opaque
// saved-context value the scheduler stores in a PCB.
type Regs struct {
	AX, BX, CX, DX uint64
	SI, DI, BP, SP uint64
	R8, R9, R10    uint64
	R11, R12, R13  uint64
	R14, R15       uint64

	IP    uint64
	Flags uint64
	CS    uint64
	SS    uint64
}

// Register indices used by instruction operands.
const (
	RegAX = iota
	RegBX
	RegCX
	RegDX
	RegSI
	RegDI
	RegBP
	RegSP
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	numRegs
)

// Get reads a general-purpose register by operand index.
func (r *Regs) Get(idx int) uint64 {
	return *r.gp(idx)
}

// Set writes a general-purpose register by operand index.
func (r *Regs) Set(idx int, v uint64) {
	*r.gp(idx) = v
}

func (r *Regs) gp(idx int) *uint64 {
	switch idx {
	case RegAX:
		return &r.AX
	case RegBX:
		return &r.BX
	case RegCX:
		return &r.CX
	case RegDX:
		return &r.DX
	case RegSI:
		return &r.SI
	case RegDI:
		return &r.DI
	case RegBP:
		return &r.BP
	case RegSP:
		return &r.SP
	case RegR8:
		return &r.R8
	case RegR9:
		return &r.R9
	case RegR10:
		return &r.R10
	case RegR11:
		return &r.R11
	case RegR12:
		return &r.R12
	case RegR13:
		return &r.R13
	case RegR14:
		return &r.R14
	case RegR15:
		return &r.R15
	default:
		panic(fmt.Sprintf("cpu: register index %d out of range", idx))
	}
}

// UserMode reports whether the register state is at user privilege.
func (r *Regs) UserMode() bool {
	return r.CS&3 == 3
}

// InterruptsEnabled reports whether maskable interrupts are accepted.
func (r *Regs) InterruptsEnabled() bool {
	return r.Flags&FlagIF != 0
}
