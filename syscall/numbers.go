// Package syscall maps syscall numbers to handlers, validates arguments, and
// returns results into the calling process's register context. It enters
// through the trap path on the dedicated syscall vector.
//
// The ABI is a fixed register convention and is part of the user/kernel
// contract: the syscall number arrives in AX, arguments in BX, CX, DX, SI,
// DI, and the single result lands in AX. Negative results are errnos.
package syscall

// Number identifies one system call.
type Number uint64

// The system call numbers.
const (
	// SysExit terminates the calling process. BX carries the exit code.
	SysExit Number = 1

	// SysSpawn creates a new process from a registered program image.
	// BX carries the image index. Returns the new pid.
	SysSpawn Number = 2

	// SysRead reads from a file handle. BX handle, CX buffer, DX count.
	// Blocks when no input is available yet.
	SysRead Number = 3

	// SysWrite writes to a file handle. BX handle, CX buffer, DX count.
	SysWrite Number = 4

	// SysOpen opens a file. No filesystem is mounted in this core, so it
	// reports FileNotFound.
	SysOpen Number = 5

	// SysClose closes a file handle.
	SysClose Number = 6

	// SysWait blocks until the process in BX terminates; returns its wait
	// status, the low byte of the exit code.
	SysWait Number = 7

	// SysGetPid returns the calling process's pid.
	SysGetPid Number = 20

	// SysGetProcessName copies the process name into the buffer in BX,
	// at most CX bytes.
	SysGetProcessName Number = 21

	// SysYield gives up the rest of the time slice.
	SysYield Number = 22
)

// Errno is a syscall error code, delivered to the caller as a negative
// value in AX. A malformed request never crashes the kernel; it only fails
// the requesting process's call.
type Errno uint64

// The syscall error codes.
const (
	ErrnoInvalidSyscall    Errno = 1
	ErrnoFileNotFound      Errno = 2
	ErrnoNoSuchProcess     Errno = 3
	ErrnoBadFileDescriptor Errno = 9
	ErrnoOutOfMemory       Errno = 12
	ErrnoPermissionDenied  Errno = 13
	ErrnoInvalidArgument   Errno = 22
)

// Encode returns the ABI representation of the errno: the two's-complement
// negative of its value.
func (e Errno) Encode() uint64 {
	return uint64(-int64(e))
}

// WaitStatus encodes an exit code as the result of a wait call: the low byte
// of the code. Exit codes of killed or faulted processes are negative, and
// delivering them raw would collide with the errno range; the status byte
// keeps them on the success side (-9 reads back as 247).
func WaitStatus(code int64) uint64 {
	return uint64(code) & 0xFF
}

// DecodeErrno interprets an AX result. It returns 0 for success values.
func DecodeErrno(ax uint64) Errno {
	v := int64(ax)
	if v >= 0 {
		return 0
	}

	return Errno(-v)
}

// Result is what a handler produces.
type Result struct {
	// Value is delivered in AX on success.
	Value uint64

	// Errno, when non-zero, is delivered instead of Value.
	Errno Errno

	// Deferred means no result is written now: either the process is gone
	// (exit), or the handler already placed the result and switched away,
	// or the result will arrive through the saved context on wake-up.
	Deferred bool
}

// OK builds a success result.
func OK(v uint64) Result { return Result{Value: v} }

// Fail builds an error result.
func Fail(e Errno) Result { return Result{Errno: e} }

// Defer builds a deferred result.
func Defer() Result { return Result{Deferred: true} }
