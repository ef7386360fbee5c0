package dev

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Console I/O handles in the default file table.
const (
	HandleStdin  = 0
	HandleStdout = 1
	HandleStderr = 2
)

// ErrBadHandle reports a read or write on a handle the console does not
// serve.
var ErrBadHandle = errors.New("dev: bad console handle")

const inputQueueSize = 256

// Console is the serial console: the kernel's lowest-level output channel
// and the input queue fed by the keyboard handler. It implements the opaque
// read/write file capability that syscall handlers consume.
//
// The mutex exists for the monitoring server; kernel-side access is already
// serialized by the event loop.
type Console struct {
	mu sync.Mutex

	out    bytes.Buffer
	mirror io.Writer

	// bounded input ring, oldest byte dropped on overflow
	input [inputQueueSize]byte
	head  int
	tail  int
}

// NewConsole creates a console. Output is mirrored to w when non-nil.
func NewConsole(w io.Writer) *Console {
	return &Console{mirror: w}
}

// Write sends bytes to the console output. Only stdout and stderr accept
// writes.
func (c *Console) Write(handle uint64, buf []byte) (int, error) {
	if handle != HandleStdout && handle != HandleStderr {
		return 0, fmt.Errorf("dev: write to handle %d: %w", handle, ErrBadHandle)
	}

	c.mu.Lock()
	c.out.Write(buf)
	c.mu.Unlock()

	if c.mirror != nil {
		if _, err := c.mirror.Write(buf); err != nil {
			return 0, err
		}
	}

	return len(buf), nil
}

// Read drains up to len(buf) bytes from the input queue. A zero count with a
// nil error means no input is available yet; the syscall layer blocks the
// caller on that.
func (c *Console) Read(handle uint64, buf []byte) (int, error) {
	if handle != HandleStdin {
		return 0, fmt.Errorf("dev: read from handle %d: %w", handle, ErrBadHandle)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for n < len(buf) && c.head != c.tail {
		buf[n] = c.input[c.head]
		c.head = (c.head + 1) % inputQueueSize
		n++
	}

	return n, nil
}

// PushInput appends one byte to the input queue, dropping the oldest byte if
// the queue is full.
func (c *Console) PushInput(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.input[c.tail] = b
	c.tail = (c.tail + 1) % inputQueueSize

	if c.tail == c.head {
		c.head = (c.head + 1) % inputQueueSize
	}
}

// InputLen reports how many bytes are queued.
func (c *Console) InputLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tail >= c.head {
		return c.tail - c.head
	}

	return inputQueueSize - c.head + c.tail
}

// Output returns everything written so far. Tests and the monitor use it.
func (c *Console) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.out.String()
}

// Logf writes kernel-side diagnostics to the console. Fatal faults report
// through this path before the machine halts.
func (c *Console) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_, _ = c.Write(HandleStderr, []byte(msg))
}
