// Package ktrace records what the machine does (state transitions, context
// switches, traps, syscalls) into a trace database through hooks, without
// touching kernel logic.
package ktrace

import (
	"github.com/kernlab/nucleon/datarecording"
	"github.com/kernlab/nucleon/hooking"
	"github.com/kernlab/nucleon/proc"
	"github.com/kernlab/nucleon/syscall"
	"github.com/kernlab/nucleon/timing"
	"github.com/kernlab/nucleon/trap"
)

// ProcessStateRow records one lifecycle transition.
type ProcessStateRow struct {
	Cycle uint64
	PID   uint64
	Name  string
	From  string
	To    string
}

// ContextSwitchRow records one completed context switch. A zero pid means
// the core went to or came from idle.
type ContextSwitchRow struct {
	Cycle  uint64
	InPID  uint64
	OutPID uint64
}

// TrapRow records one dispatched trap.
type TrapRow struct {
	Cycle  uint64
	Vector int
	IRQ    int
	IP     uint64
}

// SyscallRow records one decoded syscall.
type SyscallRow struct {
	Cycle  uint64
	Number uint64
	Arg1   uint64
}

// MapTables establishes row decoding on a reader for every table a Tracer
// records. Call it before querying a recorded database.
func MapTables(r datarecording.DataReader) {
	r.MapTable("process_state", ProcessStateRow{})
	r.MapTable("context_switch", ContextSwitchRow{})
	r.MapTable("trap", TrapRow{})
	r.MapTable("syscall", SyscallRow{})
}

// Tracer converts hook invocations into trace rows. Attach it to the
// scheduler, the trap table, and the syscall dispatcher.
type Tracer struct {
	timeTeller timing.TimeTeller
	recorder   datarecording.DataRecorder
}

// NewTracer creates a Tracer and its tables on the recorder.
func NewTracer(
	recorder datarecording.DataRecorder,
	timeTeller timing.TimeTeller,
) *Tracer {
	recorder.CreateTable("process_state", ProcessStateRow{})
	recorder.CreateTable("context_switch", ContextSwitchRow{})
	recorder.CreateTable("trap", TrapRow{})
	recorder.CreateTable("syscall", SyscallRow{})

	return &Tracer{
		timeTeller: timeTeller,
		recorder:   recorder,
	}
}

// Attach registers the tracer on each hookable.
func Attach(t *Tracer, hookables ...hooking.Hookable) {
	for _, h := range hookables {
		h.AcceptHook(t)
	}
}

// Func dispatches on the hook position. It satisfies hooking.Hook.
func (t *Tracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case proc.HookPosStateChange:
		t.recordStateChange(ctx)
	case proc.HookPosSwitch:
		t.recordSwitch(ctx)
	case trap.HookPosBeforeDispatch:
		t.recordTrap(ctx)
	case syscall.HookPosDispatch:
		t.recordSyscall(ctx)
	}
}

func (t *Tracer) recordStateChange(ctx hooking.HookCtx) {
	p := ctx.Item.(*proc.Process)
	from := ctx.Detail.(proc.State)

	t.recorder.InsertData("process_state", ProcessStateRow{
		Cycle: uint64(t.timeTeller.CurrentCycle()),
		PID:   uint64(p.PID),
		Name:  p.Name,
		From:  from.String(),
		To:    p.State.String(),
	})
}

func (t *Tracer) recordSwitch(ctx hooking.HookCtx) {
	in := ctx.Item.(proc.PID)
	out := ctx.Detail.(proc.PID)

	t.recorder.InsertData("context_switch", ContextSwitchRow{
		Cycle:  uint64(t.timeTeller.CurrentCycle()),
		InPID:  uint64(in),
		OutPID: uint64(out),
	})
}

func (t *Tracer) recordTrap(ctx hooking.HookCtx) {
	f := ctx.Item.(*trap.Frame)

	t.recorder.InsertData("trap", TrapRow{
		Cycle:  uint64(t.timeTeller.CurrentCycle()),
		Vector: f.Vector,
		IRQ:    f.IRQ,
		IP:     f.IP,
	})
}

func (t *Tracer) recordSyscall(ctx hooking.HookCtx) {
	f := ctx.Item.(*trap.Frame)
	num := ctx.Detail.(syscall.Number)

	t.recorder.InsertData("syscall", SyscallRow{
		Cycle:  uint64(t.timeTeller.CurrentCycle()),
		Number: uint64(num),
		Arg1:   f.BX,
	})
}
