package trap

import "fmt"

const numLines = 16

// Controller models the interrupt controller sitting between devices and the
// core. A device raises a line; the core asks for the highest-priority
// pending line when it is willing to take an interrupt; the handler must
// acknowledge completion with EOI before returning.
//
// The masking behavior is deliberate and faithful: while a line is
// in service (accepted but not yet EOI'd), further interrupts on that line
// stay pending and are not delivered. A handler that forgets EOI silently
// stops that device.
type Controller struct {
	pending   uint16
	inService uint16
	masked    uint16
}

// NewController creates a controller with all lines unmasked.
func NewController() *Controller {
	return &Controller{}
}

// Raise marks a line pending. Devices call it; raising an already-pending
// line is a no-op (edge-triggered coalescing).
func (c *Controller) Raise(line int) {
	c.mustBeValid(line)
	c.pending |= 1 << line
}

// Mask disables delivery on a line.
func (c *Controller) Mask(line int) {
	c.mustBeValid(line)
	c.masked |= 1 << line
}

// Unmask re-enables delivery on a line.
func (c *Controller) Unmask(line int) {
	c.mustBeValid(line)
	c.masked &^= 1 << line
}

// Pending returns the lowest-numbered deliverable line, if any. A line is
// deliverable when it is pending, not masked, and not already in service.
func (c *Controller) Pending() (int, bool) {
	deliverable := c.pending &^ c.masked &^ c.inService

	for line := 0; line < numLines; line++ {
		if deliverable&(1<<line) != 0 {
			return line, true
		}
	}

	return 0, false
}

// Ack accepts a pending line for service and returns its vector. The line
// stays masked until EOI.
func (c *Controller) Ack(line int) int {
	c.mustBeValid(line)

	if c.pending&(1<<line) == 0 {
		panic(fmt.Sprintf("trap: ack of line %d that is not pending", line))
	}

	c.pending &^= 1 << line
	c.inService |= 1 << line

	return VectorBase + line
}

// EOI signals end of interrupt for a line, re-enabling its delivery.
func (c *Controller) EOI(line int) {
	c.mustBeValid(line)
	c.inService &^= 1 << line
}

// InService reports whether a line is accepted but not yet EOI'd. The
// scheduler's kill-deferral logic treats in-service as "mid trap handler".
func (c *Controller) InService(line int) bool {
	c.mustBeValid(line)
	return c.inService&(1<<line) != 0
}

func (c *Controller) mustBeValid(line int) {
	if line < 0 || line >= numLines {
		panic(fmt.Sprintf("trap: IRQ line %d out of range", line))
	}
}
