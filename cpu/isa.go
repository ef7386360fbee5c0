package cpu

import "encoding/binary"

// Instruction opcodes of the simulated ISA. The set is intentionally tiny:
// just enough for user programs to load registers, trap into the kernel, and
// loop.
const (
	// OpHalt stops the core until the next interrupt. Privileged.
	OpHalt byte = 0x00

	// OpNop burns one cycle. Stands in for any computation.
	OpNop byte = 0x01

	// OpSyscall traps into the kernel. The syscall number and arguments are
	// already in registers per the syscall ABI.
	OpSyscall byte = 0x02

	// OpMovi loads a 64-bit immediate into a register.
	// Encoding: opcode, register index (1 byte), immediate (8 bytes LE).
	OpMovi byte = 0x03

	// OpJmp jumps to an absolute 64-bit address.
	// Encoding: opcode, target (8 bytes LE).
	OpJmp byte = 0x04
)

// Asm incrementally assembles a program image for the loader. Test programs
// and the demo workloads are built with it.
type Asm struct {
	code []byte
}

// NewAsm starts an empty program.
func NewAsm() *Asm {
	return &Asm{}
}

// Bytes returns the assembled image.
func (a *Asm) Bytes() []byte {
	return a.code
}

// Pos returns the offset the next instruction will be placed at. Combined
// with the load base it yields jump targets.
func (a *Asm) Pos() uint64 {
	return uint64(len(a.code))
}

// Nop emits a one-cycle computation.
func (a *Asm) Nop() *Asm {
	a.code = append(a.code, OpNop)
	return a
}

// Movi emits a load of an immediate into a register.
func (a *Asm) Movi(reg int, imm uint64) *Asm {
	a.code = append(a.code, OpMovi, byte(reg))
	a.code = binary.LittleEndian.AppendUint64(a.code, imm)

	return a
}

// Syscall emits a trap into the kernel.
func (a *Asm) Syscall() *Asm {
	a.code = append(a.code, OpSyscall)
	return a
}

// Jmp emits an absolute jump.
func (a *Asm) Jmp(target uint64) *Asm {
	a.code = append(a.code, OpJmp)
	a.code = binary.LittleEndian.AppendUint64(a.code, target)

	return a
}

// Halt emits the privileged halt instruction.
func (a *Asm) Halt() *Asm {
	a.code = append(a.code, OpHalt)
	return a
}

// Data places raw bytes (string constants and the like) into the image.
func (a *Asm) Data(b []byte) *Asm {
	a.code = append(a.code, b...)
	return a
}
