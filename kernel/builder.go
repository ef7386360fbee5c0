package kernel

import (
	"fmt"
	"io"

	"github.com/kernlab/nucleon/cpu"
	"github.com/kernlab/nucleon/dev"
	"github.com/kernlab/nucleon/mem/heap"
	"github.com/kernlab/nucleon/mem/phys"
	"github.com/kernlab/nucleon/mem/vm"
	"github.com/kernlab/nucleon/proc"
	"github.com/kernlab/nucleon/syscall"
	"github.com/kernlab/nucleon/timing"
	"github.com/kernlab/nucleon/trap"
)

// Builder builds a Kernel.
type Builder struct {
	engine        timing.Engine
	frameCount    uint64
	regions       []phys.Region
	heapFrames    uint64
	timeSlice     int
	timerPeriod   timing.Cycle
	maxCycles     timing.Cycle
	consoleMirror io.Writer
}

// MakeBuilder returns a Builder with default parameters: 1024 frames of
// physical memory, a 64-frame kernel heap, a 5-tick time slice, a timer
// firing every 10 cycles, and a 1M-cycle cap.
func MakeBuilder() Builder {
	return Builder{
		frameCount:  1024,
		heapFrames:  64,
		timeSlice:   5,
		timerPeriod: 10,
		maxCycles:   1_000_000,
	}
}

// WithEngine sets the event engine to build the machine on.
func (b Builder) WithEngine(e timing.Engine) Builder {
	b.engine = e
	return b
}

// WithFrameCount sets the physical memory size in frames.
func (b Builder) WithFrameCount(n uint64) Builder {
	b.frameCount = n
	return b
}

// WithMemoryRegions overrides the boot memory map. By default every frame
// except frame 0 is available.
func (b Builder) WithMemoryRegions(regions []phys.Region) Builder {
	b.regions = regions
	return b
}

// WithHeapFrames sets the number of frames backing the kernel heap.
func (b Builder) WithHeapFrames(n uint64) Builder {
	b.heapFrames = n
	return b
}

// WithTimeSlice sets the scheduler time slice in timer ticks.
func (b Builder) WithTimeSlice(ticks int) Builder {
	b.timeSlice = ticks
	return b
}

// WithTimerPeriod sets the timer interrupt period in cycles.
func (b Builder) WithTimerPeriod(period timing.Cycle) Builder {
	b.timerPeriod = period
	return b
}

// WithMaxCycles caps the run. The machine stops at the cap even with live
// processes, so a wedged workload cannot hang the host.
func (b Builder) WithMaxCycles(n timing.Cycle) Builder {
	b.maxCycles = n
	return b
}

// WithConsoleMirror mirrors console output to w as it is written.
func (b Builder) WithConsoleMirror(w io.Writer) Builder {
	b.consoleMirror = w
	return b
}

// Build boots the machine: physical memory and the frame allocator from the
// memory map, the kernel address space with the heap mapped into it, the
// trap table with every handler wired, devices on their controller lines.
// Boot-time failure is unrecoverable and panics.
func (b Builder) Build() *Kernel {
	engine := b.engine
	if engine == nil {
		engine = timing.NewSerialEngine()
	}

	mem := phys.NewMemory(b.frameCount)
	alloc := phys.NewAllocator(b.frameCount, b.bootRegions())

	vmm, err := vm.NewManager(mem, alloc)
	if err != nil {
		panic(fmt.Sprintf("kernel: boot: %v", err))
	}

	kheap := b.buildHeap(mem, alloc, vmm)

	k := &Kernel{
		Engine:   engine,
		Mem:      mem,
		Frames:   alloc,
		VM:       vmm,
		Heap:     kheap,
		Traps:    trap.NewTable(),
		Ctrl:     trap.NewController(),
		Console:  dev.NewConsole(b.consoleMirror),
		Syscalls: syscall.NewDispatcher(),

		maxCycles: b.maxCycles,
	}

	k.bus = newMemBus(mem, vmm)
	k.CPU = cpu.New(k.bus)

	k.Sched = proc.NewScheduler(vmm, kheap, b.timeSlice)
	k.Sched.SetExitNotifier(k.onExit)

	k.Loader = NewLoader(mem, alloc, vmm, k.Sched)

	k.handlers = syscall.NewHandlers(k.Sched, k.bus, k.Console, k, k.Loader)
	k.handlers.RegisterAll(k.Syscalls)

	k.Timer = dev.NewTimer(engine, k.Ctrl, b.timerPeriod)
	k.Keyboard = dev.NewKeyboard(engine, k.Ctrl)

	k.Traps.Register(trap.VectorTimer, trap.HandlerFunc(k.handleTimer))
	k.Traps.Register(trap.VectorKeyboard, trap.HandlerFunc(k.handleKeyboard))
	k.Traps.Register(trap.VectorSyscall, k.Syscalls)
	k.Traps.Register(cpu.VectorInvalidOpcode, trap.HandlerFunc(k.handleFault))
	k.Traps.Register(cpu.VectorGeneralProtection,
		trap.HandlerFunc(k.handleFault))
	k.Traps.Register(cpu.VectorPageFault, trap.HandlerFunc(k.handleFault))

	return k
}

// bootRegions returns the configured memory map, or the default one keeping
// frame 0 reserved so a zero frame id never looks like a valid allocation.
func (b Builder) bootRegions() []phys.Region {
	if b.regions != nil {
		return b.regions
	}

	return []phys.Region{
		{StartFrame: 1, FrameCount: b.frameCount - 1, Available: true},
	}
}

// buildHeap maps the heap's backing frames at the bottom of the kernel half
// and hands the mapped range to the allocator. This runs before any NewSpace
// call so every process inherits the mapping through the shared subtree.
func (b Builder) buildHeap(
	mem *phys.Memory,
	alloc *phys.Allocator,
	vmm *vm.Manager,
) *heap.Allocator {
	kspace := vmm.KernelSpace()

	for i := uint64(0); i < b.heapFrames; i++ {
		frame, err := alloc.Allocate()
		if err != nil {
			panic(fmt.Sprintf("kernel: boot: heap frame %d: %v", i, err))
		}

		vaddr := vm.KernelBase + i*vm.PageSize
		err = vmm.Map(kspace, vaddr, frame,
			vm.Perm{Writable: true, Global: true, NoExec: true})
		if err != nil {
			panic(fmt.Sprintf("kernel: boot: map heap at %#x: %v", vaddr, err))
		}
	}

	return heap.New(vm.KernelBase, b.heapFrames*vm.PageSize)
}
