// Package heap implements the kernel's free-list allocator. It manages a
// fixed kernel-virtual range that the address-space manager must have mapped
// before the allocator is initialized (map first, initialize second, never
// the reverse). It backs all dynamic kernel-side bookkeeping: process control
// blocks, kernel stacks, queues.
package heap

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned when no free block can satisfy a request. The
// heap never grows by mapping further frames; the error propagates to the
// caller (for example PCB creation), which reports it as resource exhaustion.
var ErrOutOfMemory = errors.New("heap: out of memory")

type block struct {
	addr uint64
	size uint64
}

// Allocator is a first-fit free-list allocator with address-ordered
// coalescing to bound fragmentation.
type Allocator struct {
	base uint64
	size uint64

	// free blocks, sorted by address, never adjacent (always coalesced)
	free []block
}

// New creates an allocator over [base, base+size). The range must already be
// mapped in the kernel address space.
func New(base, size uint64) *Allocator {
	return &Allocator{
		base: base,
		size: size,
		free: []block{{addr: base, size: size}},
	}
}

// Alloc reserves size bytes aligned to align (a power of two; 0 and 1 both
// mean unaligned). Fails with ErrOutOfMemory when no block fits.
func (a *Allocator) Alloc(size, align uint64) (uint64, error) {
	if size == 0 {
		panic("heap: zero-size allocation")
	}

	if align == 0 {
		align = 1
	}

	if align&(align-1) != 0 {
		panic(fmt.Sprintf("heap: alignment %d is not a power of two", align))
	}

	for i, b := range a.free {
		start := alignUp(b.addr, align)
		pad := start - b.addr

		if b.size < pad+size {
			continue
		}

		a.carve(i, pad, size)

		return start, nil
	}

	return 0, fmt.Errorf("heap: alloc %d bytes: %w", size, ErrOutOfMemory)
}

// Free returns [addr, addr+size) to the free list, coalescing with adjacent
// free blocks. Freeing memory that is outside the heap or already free is a
// fatal kernel fault.
func (a *Allocator) Free(addr, size uint64) {
	if size == 0 {
		panic("heap: zero-size free")
	}

	if addr < a.base || addr+size > a.base+a.size {
		panic(fmt.Sprintf("heap: free of [%#x,%#x) outside heap range",
			addr, addr+size))
	}

	// Locate the insertion point in the address-ordered list.
	i := 0
	for i < len(a.free) && a.free[i].addr < addr {
		i++
	}

	if i > 0 && a.free[i-1].addr+a.free[i-1].size > addr {
		panic(fmt.Sprintf("heap: double free at %#x", addr))
	}

	if i < len(a.free) && addr+size > a.free[i].addr {
		panic(fmt.Sprintf("heap: double free at %#x", addr))
	}

	a.free = append(a.free, block{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = block{addr: addr, size: size}

	a.coalesce(i)
}

// FreeBytes reports the total free space. Fragmentation may keep a single
// allocation of this size from succeeding.
func (a *Allocator) FreeBytes() uint64 {
	var total uint64
	for _, b := range a.free {
		total += b.size
	}

	return total
}

// carve removes pad+size bytes from the i-th free block, keeping the
// leading pad and the tail as free blocks.
func (a *Allocator) carve(i int, pad, size uint64) {
	b := a.free[i]

	tail := block{
		addr: b.addr + pad + size,
		size: b.size - pad - size,
	}

	switch {
	case pad > 0 && tail.size > 0:
		a.free[i] = block{addr: b.addr, size: pad}
		a.free = append(a.free, block{})
		copy(a.free[i+2:], a.free[i+1:])
		a.free[i+1] = tail
	case pad > 0:
		a.free[i] = block{addr: b.addr, size: pad}
	case tail.size > 0:
		a.free[i] = tail
	default:
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

func (a *Allocator) coalesce(i int) {
	// Merge with the following block first so index i stays valid.
	if i+1 < len(a.free) &&
		a.free[i].addr+a.free[i].size == a.free[i+1].addr {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}

	if i > 0 && a.free[i-1].addr+a.free[i-1].size == a.free[i].addr {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
