package kernel

import (
	"errors"
	"fmt"

	"github.com/kernlab/nucleon/mem/phys"
	"github.com/kernlab/nucleon/mem/vm"
)

// ErrBadAccess reports a memory access that violated the active mappings:
// a non-present page, a user access to a kernel page, a store to a
// read-only page, or a fetch from a no-execute page.
var ErrBadAccess = errors.New("kernel: bad memory access")

// memBus translates every core access through the active address space and
// enforces the leaf permission bits. It is the only path between the core
// and physical memory.
type memBus struct {
	mem *phys.Memory
	vmm *vm.Manager
}

func newMemBus(mem *phys.Memory, vmm *vm.Manager) *memBus {
	return &memBus{mem: mem, vmm: vmm}
}

func (b *memBus) Fetch(vaddr uint64, buf []byte, user bool) error {
	return b.accessIn(b.vmm.Active(), vaddr, buf, user, false, true)
}

func (b *memBus) Read(vaddr uint64, buf []byte, user bool) error {
	return b.accessIn(b.vmm.Active(), vaddr, buf, user, false, false)
}

func (b *memBus) Write(vaddr uint64, buf []byte, user bool) error {
	return b.accessIn(b.vmm.Active(), vaddr, buf, user, true, false)
}

// ReadUser copies out of the calling process's address space with user
// permission checks. Valid only while that process's space is active, which
// holds for the whole syscall trap pass.
func (b *memBus) ReadUser(vaddr uint64, buf []byte) error {
	return b.accessIn(b.vmm.Active(), vaddr, buf, true, false, false)
}

// WriteUser copies into the calling process's address space.
func (b *memBus) WriteUser(vaddr uint64, buf []byte) error {
	return b.accessIn(b.vmm.Active(), vaddr, buf, true, true, false)
}

// writeInto writes into an arbitrary space, active or not. The deferred-read
// completion path uses it to deliver input to a process that is not the one
// on the core.
func (b *memBus) writeInto(s *vm.Space, vaddr uint64, buf []byte) error {
	return b.accessIn(s, vaddr, buf, true, true, false)
}

// accessIn performs one logical access, split along page boundaries. Each
// page is translated and permission-checked independently, so an access
// spanning a mapped and an unmapped page fails partway like the real thing
// would fault partway.
func (b *memBus) accessIn(
	s *vm.Space,
	vaddr uint64,
	buf []byte,
	user, write, fetch bool,
) error {
	done := 0

	for done < len(buf) {
		addr := vaddr + uint64(done)

		chunk := int(vm.PageSize - (addr & (vm.PageSize - 1)))
		if rest := len(buf) - done; chunk > rest {
			chunk = rest
		}

		e, ok := b.vmm.Lookup(s, addr)
		if !ok {
			return fmt.Errorf("kernel: %#x not mapped: %w", addr, ErrBadAccess)
		}

		if err := checkPerm(e.Perm, addr, user, write, fetch); err != nil {
			return err
		}

		paddr := uint64(e.Frame)*phys.FrameSize + (addr & (vm.PageSize - 1))

		if write {
			b.mem.WriteAt(paddr, buf[done:done+chunk])
		} else {
			b.mem.ReadAt(paddr, buf[done:done+chunk])
		}

		done += chunk
	}

	return nil
}

func checkPerm(p vm.Perm, addr uint64, user, write, fetch bool) error {
	if user && !p.User {
		return fmt.Errorf("kernel: user access to kernel page %#x: %w",
			addr, ErrBadAccess)
	}

	if write && !p.Writable {
		return fmt.Errorf("kernel: store to read-only page %#x: %w",
			addr, ErrBadAccess)
	}

	if fetch && p.NoExec {
		return fmt.Errorf("kernel: fetch from no-exec page %#x: %w",
			addr, ErrBadAccess)
	}

	return nil
}
