package vm

import (
	"errors"
	"fmt"

	"github.com/kernlab/nucleon/mem/phys"
)

// Mapping contract violations. These are surfaced as errors, not panics, so
// callers can choose recovery. A corrupted table discovered mid-walk is the
// exception: that is a fatal fault and panics.
var (
	ErrAlreadyMapped = errors.New("vm: page already mapped")
	ErrNotMapped     = errors.New("vm: page not mapped")
	ErrSpaceActive   = errors.New("vm: address space is active")
)

// A Space is the root page-table handle of one address space. It is owned
// exclusively by one process (or the kernel) and destroyed when the owner
// terminates.
type Space struct {
	mgr  *Manager
	root phys.FrameID
	dead bool
}

// Root returns the physical frame holding the top-level table. The CPU loads
// it on context switch.
func (s *Space) Root() phys.FrameID {
	return s.root
}

// Manager creates, edits, and destroys address spaces. All table walks go
// through it; nothing else in the kernel touches raw table bytes.
type Manager struct {
	mem    *phys.Memory
	alloc  *phys.Allocator
	kernel *Space
	active *Space
}

// NewManager creates a Manager together with the kernel's own address space.
// Kernel mappings (text, data, heap) must be installed before the first
// NewSpace call, because new spaces share the kernel's top-level slots as
// they exist at creation time.
func NewManager(mem *phys.Memory, alloc *phys.Allocator) (*Manager, error) {
	m := &Manager{mem: mem, alloc: alloc}

	root, err := m.allocTableFrame()
	if err != nil {
		return nil, fmt.Errorf("vm: kernel root table: %w", err)
	}

	m.kernel = &Space{mgr: m, root: root}
	m.active = m.kernel

	return m, nil
}

// KernelSpace returns the kernel's address space.
func (m *Manager) KernelSpace() *Space {
	return m.kernel
}

// Active returns the address space the CPU is currently translating with.
func (m *Manager) Active() *Space {
	return m.active
}

// SetActive records the space loaded on the CPU. The scheduler calls it as
// part of the atomic context-switch step.
func (m *Manager) SetActive(s *Space) {
	m.active = s
}

// NewSpace creates an address space whose kernel half aliases the kernel's
// shared subtree.
func (m *Manager) NewSpace() (*Space, error) {
	root, err := m.allocTableFrame()
	if err != nil {
		return nil, fmt.Errorf("vm: new address space: %w", err)
	}

	rootTable := m.mem.Frame(root)
	kernelTable := m.mem.Frame(m.kernel.root)

	for idx := kernelSlotBase; idx < entriesPerTable; idx++ {
		writePTE(rootTable, idx, readPTE(kernelTable, idx))
	}

	return &Space{mgr: m, root: root}, nil
}

// Map installs a mapping from the page containing vaddr to the given frame.
// It fails with ErrAlreadyMapped if the page already has a present mapping;
// there is no implicit overwrite, so a frame can never be silently orphaned.
func (m *Manager) Map(s *Space, vaddr uint64, frame phys.FrameID, perm Perm) error {
	table, err := m.walkAlloc(s, vaddr)
	if err != nil {
		return err
	}

	idx := levelIndex(vaddr, 0)
	if readPTE(table, idx).present() {
		return fmt.Errorf("vm: page %#x: %w", PageBase(vaddr), ErrAlreadyMapped)
	}

	writePTE(table, idx, makePTE(frame, perm))

	return nil
}

// Unmap removes the mapping of the page containing vaddr and returns the
// frame it pointed to. Ownership of the frame transfers back to the caller,
// who decides whether to free or remap it.
func (m *Manager) Unmap(s *Space, vaddr uint64) (phys.FrameID, error) {
	table, ok := m.walk(s, vaddr)
	if !ok {
		return 0, fmt.Errorf("vm: page %#x: %w", PageBase(vaddr), ErrNotMapped)
	}

	idx := levelIndex(vaddr, 0)
	e := readPTE(table, idx)
	if !e.present() {
		return 0, fmt.Errorf("vm: page %#x: %w", PageBase(vaddr), ErrNotMapped)
	}

	writePTE(table, idx, 0)

	return e.frame(), nil
}

// Translate resolves a virtual address to a physical address. The second
// return value reports whether a present mapping exists.
func (m *Manager) Translate(s *Space, vaddr uint64) (uint64, bool) {
	e, ok := m.Lookup(s, vaddr)
	if !ok {
		return 0, false
	}

	return uint64(e.Frame)*phys.FrameSize + pageOffset(vaddr), true
}

// Lookup returns the decoded leaf entry covering vaddr. The bus uses it to
// check permission bits before every access.
func (m *Manager) Lookup(s *Space, vaddr uint64) (Entry, bool) {
	table, ok := m.walk(s, vaddr)
	if !ok {
		return Entry{}, false
	}

	e := readPTE(table, levelIndex(vaddr, 0))
	if !e.present() {
		return Entry{}, false
	}

	return e.entry(), true
}

// Destroy walks every present mapping the space owns, frees the owned frames
// and the table frames, and retires the handle. The kernel-shared subtree is
// skipped: those frames belong to the kernel space. Destroying the active
// space is refused; the caller must switch away first, or the CPU would keep
// translating through freed tables.
func (m *Manager) Destroy(s *Space) error {
	if s == m.active {
		return ErrSpaceActive
	}

	if s == m.kernel {
		return fmt.Errorf("vm: cannot destroy the kernel space: %w",
			ErrSpaceActive)
	}

	if s.dead {
		panic("vm: double destroy of an address space")
	}

	rootTable := m.mem.Frame(s.root)
	for idx := 0; idx < kernelSlotBase; idx++ {
		e := readPTE(rootTable, idx)
		if e.present() {
			m.destroyTable(e.frame(), pteLevels-2)
		}
	}

	m.alloc.Free(s.root)
	s.dead = true

	return nil
}

func (m *Manager) destroyTable(frame phys.FrameID, level int) {
	table := m.tableBytes(frame)

	for idx := 0; idx < entriesPerTable; idx++ {
		e := readPTE(table, idx)
		if !e.present() {
			continue
		}

		if level == 0 {
			m.alloc.Free(e.frame())
			continue
		}

		m.destroyTable(e.frame(), level-1)
	}

	m.alloc.Free(frame)
}

// walk descends to the leaf table covering vaddr, without allocating.
func (m *Manager) walk(s *Space, vaddr uint64) ([]byte, bool) {
	table := m.tableBytes(s.root)

	for level := pteLevels - 1; level > 0; level-- {
		e := readPTE(table, levelIndex(vaddr, level))
		if !e.present() {
			return nil, false
		}

		table = m.tableBytes(e.frame())
	}

	return table, true
}

// walkAlloc descends to the leaf table covering vaddr, allocating
// intermediate table frames as needed.
func (m *Manager) walkAlloc(s *Space, vaddr uint64) ([]byte, error) {
	table := m.tableBytes(s.root)

	for level := pteLevels - 1; level > 0; level-- {
		idx := levelIndex(vaddr, level)
		e := readPTE(table, idx)

		if !e.present() {
			frame, err := m.allocTableFrame()
			if err != nil {
				return nil, fmt.Errorf("vm: level-%d table for %#x: %w",
					level-1, PageBase(vaddr), err)
			}

			e = makePTE(frame, Perm{Writable: true})
			writePTE(table, idx, e)
		}

		table = m.tableBytes(e.frame())
	}

	return table, nil
}

func (m *Manager) tableBytes(frame phys.FrameID) []byte {
	if uint64(frame) >= m.mem.FrameCount() {
		// A present entry pointing outside the arena means the table was
		// corrupted. No recovery is attempted.
		panic(fmt.Sprintf("vm: corrupted page table: frame %d out of range",
			frame))
	}

	return m.mem.Frame(frame)
}

func (m *Manager) allocTableFrame() (phys.FrameID, error) {
	frame, err := m.alloc.Allocate()
	if err != nil {
		return 0, err
	}

	table := m.mem.Frame(frame)
	for i := range table {
		table[i] = 0
	}

	return frame, nil
}
