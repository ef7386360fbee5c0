package dev

import (
	"github.com/kernlab/nucleon/timing"
	"github.com/kernlab/nucleon/trap"
)

type keyEvent struct {
	scancode byte
}

// Keyboard delivers scripted scancodes at chosen cycles. Each arrival latches
// the byte in the data register and raises IRQ 1; the kernel's handler reads
// the latch and enqueues it on the console input queue.
type Keyboard struct {
	engine timing.EventScheduler
	ctrl   *trap.Controller
	latch  byte
}

// NewKeyboard creates a keyboard with an empty script.
func NewKeyboard(engine timing.EventScheduler, ctrl *trap.Controller) *Keyboard {
	return &Keyboard{engine: engine, ctrl: ctrl}
}

// Type schedules one scancode to arrive at the given cycle.
func (k *Keyboard) Type(at timing.Cycle, scancode byte) {
	k.engine.Schedule(timing.FutureEvent{
		Event:       &keyEvent{scancode: scancode},
		Time:        at,
		Handler:     k,
		IsSecondary: true,
	})
}

// TypeString schedules one byte per cycle starting at the given cycle.
func (k *Keyboard) TypeString(at timing.Cycle, s string) {
	for i := 0; i < len(s); i++ {
		k.Type(at+timing.Cycle(i), s[i])
	}
}

// ReadData reads the data register. The handler calls it exactly once per
// interrupt; a byte arriving before the previous one is read is lost, as on
// the real port.
func (k *Keyboard) ReadData() byte {
	return k.latch
}

// Handle latches the scancode and raises the keyboard line.
func (k *Keyboard) Handle(event any) error {
	e, ok := event.(*keyEvent)
	if !ok {
		return nil
	}

	k.latch = e.scancode
	k.ctrl.Raise(trap.IRQKeyboard)

	return nil
}
