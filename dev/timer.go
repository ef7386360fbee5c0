// Package dev models the devices hanging off the interrupt controller: the
// periodic timer that drives preemption, the keyboard that feeds the input
// queue, and the serial console the kernel and user programs write to.
package dev

import (
	"github.com/kernlab/nucleon/timing"
	"github.com/kernlab/nucleon/trap"
)

type timerTickEvent struct{}

// Timer raises IRQ 0 every period cycles. The kernel's timer trap handler
// turns those into scheduler ticks.
type Timer struct {
	engine  timing.EventScheduler
	ctrl    *trap.Controller
	period  timing.Cycle
	stopped bool
}

// NewTimer creates a timer. It stays silent until Start.
func NewTimer(
	engine timing.EventScheduler,
	ctrl *trap.Controller,
	period timing.Cycle,
) *Timer {
	if period == 0 {
		panic("dev: timer period must be positive")
	}

	return &Timer{engine: engine, ctrl: ctrl, period: period}
}

// Start schedules the first tick one period from now.
func (t *Timer) Start() {
	t.engine.Schedule(timing.FutureEvent{
		Event:   &timerTickEvent{},
		Time:    t.engine.CurrentCycle() + t.period,
		Handler: t,
		// Secondary so the CPU's step at the same cycle runs first and the
		// interrupt is taken at the next instruction boundary.
		IsSecondary: true,
	})
}

// Stop lets the pending tick expire without rescheduling. The kernel stops
// the timer at shutdown so the event loop can drain.
func (t *Timer) Stop() {
	t.stopped = true
}

// Handle raises the timer line and schedules the next tick.
func (t *Timer) Handle(event any) error {
	if _, ok := event.(*timerTickEvent); !ok {
		return nil
	}

	if t.stopped {
		return nil
	}

	t.ctrl.Raise(trap.IRQTimer)
	t.Start()

	return nil
}
