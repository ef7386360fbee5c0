package kernel

import (
	"fmt"

	"github.com/kernlab/nucleon/mem/phys"
	"github.com/kernlab/nucleon/mem/vm"
	"github.com/kernlab/nucleon/proc"
)

// User-half layout. Text starts low, the stack sits just under the
// canonical boundary and grows down.
const (
	UserTextBase  = 0x0000_0000_0040_0000
	UserStackBase = 0x0000_7FFF_FFF0_0000
	UserStackTop  = UserStackBase + vm.PageSize
)

// A Program is a loadable image: raw text placed at UserTextBase with
// execution starting at its first byte.
type Program struct {
	Name string
	Text []byte
}

// Loader builds fresh address spaces out of program images and hands them
// to the scheduler. Registered images are also spawnable from user space
// through the spawn syscall, by registration index.
type Loader struct {
	mem   *phys.Memory
	alloc *phys.Allocator
	vmm   *vm.Manager
	sched *proc.Scheduler

	images []Program
}

// NewLoader creates a loader with no registered images.
func NewLoader(
	mem *phys.Memory,
	alloc *phys.Allocator,
	vmm *vm.Manager,
	sched *proc.Scheduler,
) *Loader {
	return &Loader{mem: mem, alloc: alloc, vmm: vmm, sched: sched}
}

// Register records an image and returns its index for spawn syscalls.
func (l *Loader) Register(p Program) uint64 {
	l.images = append(l.images, p)
	return uint64(len(l.images) - 1)
}

// Spawn loads an image into a new address space and creates a Ready process
// from it. On any failure the partially built space is torn down and no
// frame stays allocated.
func (l *Loader) Spawn(p Program) (proc.PID, error) {
	if len(p.Text) == 0 {
		return 0, fmt.Errorf("kernel: image %q has no text", p.Name)
	}

	space, err := l.vmm.NewSpace()
	if err != nil {
		return 0, fmt.Errorf("kernel: spawn %q: %w", p.Name, err)
	}

	if err := l.populate(space, p); err != nil {
		l.teardown(space)
		return 0, fmt.Errorf("kernel: spawn %q: %w", p.Name, err)
	}

	pid, err := l.sched.Spawn(p.Name, UserTextBase, UserStackTop, space)
	if err != nil {
		l.teardown(space)
		return 0, err
	}

	return pid, nil
}

// SpawnImage spawns a previously registered image by index. It backs the
// spawn syscall.
func (l *Loader) SpawnImage(image uint64) (proc.PID, error) {
	if image >= uint64(len(l.images)) {
		return 0, fmt.Errorf("kernel: no image %d registered", image)
	}

	return l.Spawn(l.images[image])
}

func (l *Loader) populate(space *vm.Space, p Program) error {
	for off := 0; off < len(p.Text); off += vm.PageSize {
		frame, err := l.alloc.Allocate()
		if err != nil {
			return err
		}

		end := off + vm.PageSize
		if end > len(p.Text) {
			end = len(p.Text)
		}

		dst := l.mem.Frame(frame)
		for i := range dst {
			dst[i] = 0
		}
		copy(dst, p.Text[off:end])

		// Writable so programs can keep mutable data next to code. The
		// image format has no section table to say otherwise.
		err = l.vmm.Map(space, UserTextBase+uint64(off), frame,
			vm.Perm{Writable: true, User: true})
		if err != nil {
			l.alloc.Free(frame)
			return err
		}
	}

	stack, err := l.alloc.Allocate()
	if err != nil {
		return err
	}

	err = l.vmm.Map(space, UserStackBase, stack,
		vm.Perm{Writable: true, User: true, NoExec: true})
	if err != nil {
		l.alloc.Free(stack)
		return err
	}

	return nil
}

func (l *Loader) teardown(space *vm.Space) {
	// Destroy frees every frame mapped so far along with the tables.
	if err := l.vmm.Destroy(space); err != nil {
		panic(fmt.Sprintf("kernel: loader teardown: %v", err))
	}
}
