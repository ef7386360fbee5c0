// Package vm owns the per-process address spaces: 4-level page tables stored
// inside physical frames, mapping 48-bit virtual addresses to frames with
// permission bits.
package vm

import (
	"encoding/binary"

	"github.com/kernlab/nucleon/mem/phys"
)

// PageSize is the size of one virtual page. It matches the physical frame
// size; there are no huge pages.
const PageSize = phys.FrameSize

const (
	pteLevels       = 4
	entriesPerTable = 512
	pteSize         = 8

	// Top-level slots at and above kernelSlotBase hold the kernel's shared
	// subtree. They are copied into every address space and never owned by
	// a process.
	kernelSlotBase = 256
)

// KernelBase is the lowest kernel virtual address. Everything at or above it
// is mapped identically (same frames) into every address space with
// kernel-only permission, which is what lets a trap run kernel code no matter
// which process was interrupted.
const KernelBase uint64 = 0xFFFF_8000_0000_0000

const (
	pteFlagPresent  = 1 << 0
	pteFlagWritable = 1 << 1
	pteFlagUser     = 1 << 2
	pteFlagGlobal   = 1 << 3
	pteFlagNoExec   = 1 << 63

	pteFrameShift = 12
	pteFrameMask  = uint64(0xF_FFFF_FFFF) << pteFrameShift
)

// Perm holds the permission bits of one mapping. The zero value is a
// kernel-only, read-only, executable page.
type Perm struct {
	Writable bool
	User     bool
	Global   bool
	NoExec   bool
}

// Entry is the decoded form of a present page-table entry.
type Entry struct {
	Frame phys.FrameID
	Perm  Perm
}

type pte uint64

func makePTE(frame phys.FrameID, perm Perm) pte {
	e := pte(uint64(frame)<<pteFrameShift) | pteFlagPresent

	if perm.Writable {
		e |= pteFlagWritable
	}
	if perm.User {
		e |= pteFlagUser
	}
	if perm.Global {
		e |= pteFlagGlobal
	}
	if perm.NoExec {
		e |= pteFlagNoExec
	}

	return e
}

func (e pte) present() bool { return e&pteFlagPresent != 0 }

func (e pte) frame() phys.FrameID {
	return phys.FrameID((uint64(e) & pteFrameMask) >> pteFrameShift)
}

func (e pte) entry() Entry {
	return Entry{
		Frame: e.frame(),
		Perm: Perm{
			Writable: e&pteFlagWritable != 0,
			User:     e&pteFlagUser != 0,
			Global:   e&pteFlagGlobal != 0,
			NoExec:   e&pteFlagNoExec != 0,
		},
	}
}

func levelIndex(vaddr uint64, level int) int {
	return int((vaddr >> (12 + 9*level)) & 0x1FF)
}

func pageOffset(vaddr uint64) uint64 {
	return vaddr & (PageSize - 1)
}

// PageBase returns the page-aligned address containing vaddr.
func PageBase(vaddr uint64) uint64 {
	return vaddr &^ uint64(PageSize-1)
}

func readPTE(table []byte, idx int) pte {
	return pte(binary.LittleEndian.Uint64(table[idx*pteSize:]))
}

func writePTE(table []byte, idx int, e pte) {
	binary.LittleEndian.PutUint64(table[idx*pteSize:], uint64(e))
}
