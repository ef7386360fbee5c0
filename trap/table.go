package trap

import (
	"fmt"

	"github.com/kernlab/nucleon/hooking"
)

// HookPosBeforeDispatch fires before a trap handler runs.
var HookPosBeforeDispatch = &hooking.HookPos{Name: "BeforeTrapDispatch"}

// HookPosAfterDispatch fires after a trap handler returned.
var HookPosAfterDispatch = &hooking.HookPos{Name: "AfterTrapDispatch"}

// A Handler services one trap vector. It may mutate the frame's
// eventual-return state, invoke the scheduler, or both.
type Handler interface {
	Handle(f *Frame) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(f *Frame) error

// Handle calls fn.
func (fn HandlerFunc) Handle(f *Frame) error {
	return fn(f)
}

// Table is the fixed vector table. Vectors are wired once at boot;
// dispatching an unwired vector is a fatal kernel fault, since an unexpected
// trap means the machine state is no longer trustworthy.
type Table struct {
	*hooking.HookableBase

	vectors [numVectors]Handler
}

// NewTable creates an empty vector table.
func NewTable() *Table {
	return &Table{HookableBase: hooking.NewHookableBase()}
}

// Register wires a handler to a vector. Re-wiring a vector is a fault:
// handlers are installed exactly once at boot.
func (t *Table) Register(vector int, h Handler) {
	if vector < 0 || vector >= numVectors {
		panic(fmt.Sprintf("trap: vector %d out of range", vector))
	}

	if t.vectors[vector] != nil {
		panic(fmt.Sprintf("trap: vector %d already wired", vector))
	}

	t.vectors[vector] = h
}

// Dispatch routes a frame to the handler wired to its vector.
func (t *Table) Dispatch(f *Frame) error {
	h := t.vectors[f.Vector]
	if h == nil {
		panic(fmt.Sprintf("trap: unhandled vector %d at IP %#x",
			f.Vector, f.IP))
	}

	ctx := hooking.HookCtx{Domain: t, Pos: HookPosBeforeDispatch, Item: f}
	t.InvokeHook(ctx)

	err := h.Handle(f)

	ctx.Pos = HookPosAfterDispatch
	ctx.Detail = err
	t.InvokeHook(ctx)

	return err
}
