package syscall

import (
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kernlab/nucleon/hooking"
	"github.com/kernlab/nucleon/trap"
)

type dispatchRecorder struct {
	numbers []Number
}

func (r *dispatchRecorder) Func(ctx hooking.HookCtx) {
	r.numbers = append(r.numbers, ctx.Detail.(Number))
}

var _ = ginkgo.Describe("Dispatcher", func() {
	var (
		d     *Dispatcher
		frame *trap.Frame
	)

	ginkgo.BeforeEach(func() {
		d = NewDispatcher()
		frame = &trap.Frame{}
	})

	ginkgo.It("should deliver the handler's value in AX", func() {
		d.Register(Number(42), func(_ *trap.Frame) Result {
			return OK(0x99)
		})

		frame.AX = 42
		Expect(d.Handle(frame)).To(Succeed())

		Expect(frame.AX).To(Equal(uint64(0x99)))
	})

	ginkgo.It("should deliver an errno as a negative value", func() {
		d.Register(Number(42), func(_ *trap.Frame) Result {
			return Fail(ErrnoPermissionDenied)
		})

		frame.AX = 42
		Expect(d.Handle(frame)).To(Succeed())

		Expect(int64(frame.AX)).To(Equal(int64(-13)))
		Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoPermissionDenied))
	})

	ginkgo.It("should leave the frame alone for a deferred result", func() {
		d.Register(Number(42), func(f *trap.Frame) Result {
			f.AX = 0x1234
			return Defer()
		})

		frame.AX = 42
		Expect(d.Handle(frame)).To(Succeed())

		Expect(frame.AX).To(Equal(uint64(0x1234)))
	})

	ginkgo.It("should fail an unknown number without failing the trap", func() {
		frame.AX = 0xdead
		Expect(d.Handle(frame)).To(Succeed())

		Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoInvalidSyscall))
	})

	ginkgo.It("should panic when a number is registered twice", func() {
		h := func(_ *trap.Frame) Result { return OK(0) }
		d.Register(Number(42), h)

		Expect(func() { d.Register(Number(42), h) }).To(Panic())
	})

	ginkgo.It("should invoke hooks with the decoded number", func() {
		recorder := &dispatchRecorder{}
		d.AcceptHook(recorder)
		d.Register(Number(42), func(_ *trap.Frame) Result {
			return OK(0)
		})

		frame.AX = 42
		Expect(d.Handle(frame)).To(Succeed())

		frame.AX = 0xdead
		Expect(d.Handle(frame)).To(Succeed())

		Expect(recorder.numbers).To(Equal([]Number{42, 0xdead}))
	})
})
