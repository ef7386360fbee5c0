package syscall

import (
	"errors"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/kernlab/nucleon/proc"
	"github.com/kernlab/nucleon/trap"
)

var _ = ginkgo.Describe("Handlers", func() {
	var (
		mockCtrl *gomock.Controller
		sched    *MockScheduler
		mem      *MockUserMemory
		files    *MockFileTable
		input    *MockInputWaiter
		spawner  *MockSpawner
		h        *Handlers
		d        *Dispatcher
		frame    *trap.Frame
	)

	ginkgo.BeforeEach(func() {
		mockCtrl = gomock.NewController(ginkgo.GinkgoT())

		sched = NewMockScheduler(mockCtrl)
		mem = NewMockUserMemory(mockCtrl)
		files = NewMockFileTable(mockCtrl)
		input = NewMockInputWaiter(mockCtrl)
		spawner = NewMockSpawner(mockCtrl)

		h = NewHandlers(sched, mem, files, input, spawner)
		d = NewDispatcher()
		h.RegisterAll(d)

		frame = &trap.Frame{}
	})

	ginkgo.AfterEach(func() {
		mockCtrl.Finish()
	})

	call := func(num Number, args ...uint64) {
		frame.AX = uint64(num)
		regs := []*uint64{&frame.BX, &frame.CX, &frame.DX, &frame.SI, &frame.DI}
		for i, a := range args {
			*regs[i] = a
		}

		Expect(d.Handle(frame)).To(Succeed())
	}

	ginkgo.It("should report an unknown syscall number", func() {
		call(Number(999))

		Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoInvalidSyscall))
	})

	ginkgo.Context("exit", func() {
		ginkgo.It("should terminate the caller with the given code", func() {
			sched.EXPECT().Exit(int64(7))

			call(SysExit, 7)
		})
	})

	ginkgo.Context("spawn", func() {
		ginkgo.It("should return the new pid", func() {
			spawner.EXPECT().SpawnImage(uint64(2)).Return(proc.PID(9), nil)

			call(SysSpawn, 2)

			Expect(frame.AX).To(Equal(uint64(9)))
		})

		ginkgo.It("should fail on an unknown image", func() {
			spawner.EXPECT().
				SpawnImage(uint64(5)).
				Return(proc.PID(0), errors.New("no such image"))

			call(SysSpawn, 5)

			Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoInvalidArgument))
		})
	})

	ginkgo.Context("read", func() {
		ginkgo.It("should copy available input to the user buffer", func() {
			files.EXPECT().
				Read(uint64(0), gomock.Len(4)).
				DoAndReturn(func(_ uint64, buf []byte) (int, error) {
					copy(buf, "hi")
					return 2, nil
				})
			mem.EXPECT().WriteUser(uint64(0x5000), []byte("hi")).Return(nil)

			call(SysRead, 0, 0x5000, 4)

			Expect(frame.AX).To(Equal(uint64(2)))
		})

		ginkgo.It("should return zero for a zero-length read", func() {
			call(SysRead, 0, 0x5000, 0)

			Expect(frame.AX).To(BeZero())
		})

		ginkgo.It("should block the caller when no input is available", func() {
			files.EXPECT().Read(uint64(0), gomock.Len(4)).Return(0, nil)
			sched.EXPECT().CurrentPID().Return(proc.PID(3))
			input.EXPECT().WaitForInput(
				proc.PID(3), uint64(0), uint64(0x5000), uint64(4))
			sched.EXPECT().Block("read")

			call(SysRead, 0, 0x5000, 4)

			// Deferred: the number is still in AX, the result arrives
			// through the saved context on wake-up.
			Expect(frame.AX).To(Equal(uint64(SysRead)))
		})

		ginkgo.It("should reject a bad handle", func() {
			files.EXPECT().
				Read(uint64(7), gomock.Any()).
				Return(0, errors.New("bad handle"))

			call(SysRead, 7, 0x5000, 4)

			Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoBadFileDescriptor))
		})

		ginkgo.It("should reject an oversized count", func() {
			call(SysRead, 0, 0x5000, 1<<21)

			Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoInvalidArgument))
		})
	})

	ginkgo.Context("write", func() {
		ginkgo.It("should copy the user buffer out and report bytes written", func() {
			mem.EXPECT().
				ReadUser(uint64(0x6000), gomock.Len(3)).
				DoAndReturn(func(_ uint64, buf []byte) error {
					copy(buf, "abc")
					return nil
				})
			files.EXPECT().Write(uint64(1), []byte("abc")).Return(3, nil)

			call(SysWrite, 1, 0x6000, 3)

			Expect(frame.AX).To(Equal(uint64(3)))
		})

		ginkgo.It("should fail when the user buffer is not readable", func() {
			mem.EXPECT().
				ReadUser(uint64(0x6000), gomock.Any()).
				Return(errors.New("unmapped page"))

			call(SysWrite, 1, 0x6000, 3)

			Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoInvalidArgument))
		})
	})

	ginkgo.Context("open and close", func() {
		ginkgo.It("should report FileNotFound for open", func() {
			call(SysOpen)

			Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoFileNotFound))
		})

		ginkgo.It("should succeed close", func() {
			call(SysClose, 1)

			Expect(frame.AX).To(BeZero())
		})
	})

	ginkgo.Context("wait", func() {
		ginkgo.It("should reject waiting on yourself", func() {
			sched.EXPECT().CurrentPID().Return(proc.PID(1))

			call(SysWait, 1)

			Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoInvalidArgument))
		})

		ginkgo.It("should reject an unknown pid", func() {
			sched.EXPECT().CurrentPID().Return(proc.PID(1))
			sched.EXPECT().Lookup(proc.PID(9)).Return(nil, false)

			call(SysWait, 9)

			Expect(DecodeErrno(frame.AX)).To(Equal(ErrnoNoSuchProcess))
		})

		ginkgo.It("should return immediately for a terminated child", func() {
			sched.EXPECT().CurrentPID().Return(proc.PID(1))
			sched.EXPECT().Lookup(proc.PID(2)).Return(&proc.Process{
				PID:      2,
				State:    proc.Terminated,
				ExitCode: 5,
			}, true)

			call(SysWait, 2)

			Expect(frame.AX).To(Equal(uint64(5)))
		})

		ginkgo.It("should keep a killed child's status out of the errno range", func() {
			sched.EXPECT().CurrentPID().Return(proc.PID(1))
			sched.EXPECT().Lookup(proc.PID(2)).Return(&proc.Process{
				PID:      2,
				State:    proc.Terminated,
				ExitCode: -9,
			}, true)

			call(SysWait, 2)

			Expect(frame.AX).To(Equal(uint64(247)))
			Expect(DecodeErrno(frame.AX)).To(Equal(Errno(0)))
		})

		ginkgo.It("should block until the child exits", func() {
			sched.EXPECT().CurrentPID().Return(proc.PID(1))
			sched.EXPECT().Lookup(proc.PID(2)).Return(&proc.Process{
				PID:   2,
				State: proc.Running,
			}, true)
			sched.EXPECT().Block("wait")

			call(SysWait, 2)

			sched.EXPECT().WakeWithResult(proc.PID(1), uint64(5)).Return(true)

			h.NotifyExit(&proc.Process{PID: 2, ExitCode: 5})
		})

		ginkgo.It("should deliver a faulted child's status to a blocked waiter",
			func() {
				sched.EXPECT().CurrentPID().Return(proc.PID(1))
				sched.EXPECT().Lookup(proc.PID(2)).Return(&proc.Process{
					PID:   2,
					State: proc.Running,
				}, true)
				sched.EXPECT().Block("wait")

				call(SysWait, 2)

				sched.EXPECT().
					WakeWithResult(proc.PID(1), uint64(245)).
					Return(true)

				h.NotifyExit(&proc.Process{PID: 2, ExitCode: -11})
			})
	})

	ginkgo.Context("process identity", func() {
		ginkgo.It("should return the caller's pid", func() {
			sched.EXPECT().CurrentPID().Return(proc.PID(4))

			call(SysGetPid)

			Expect(frame.AX).To(Equal(uint64(4)))
		})

		ginkgo.It("should copy the process name, truncated to the buffer", func() {
			sched.EXPECT().CurrentPID().Return(proc.PID(4))
			sched.EXPECT().Lookup(proc.PID(4)).Return(&proc.Process{
				PID:  4,
				Name: "shell",
			}, true)
			mem.EXPECT().WriteUser(uint64(0x7000), []byte("she")).Return(nil)

			call(SysGetProcessName, 0x7000, 3)

			Expect(frame.AX).To(Equal(uint64(3)))
		})
	})

	ginkgo.Context("yield", func() {
		ginkgo.It("should place the result before switching away", func() {
			var axAtYield uint64
			sched.EXPECT().Yield().Do(func() {
				axAtYield = frame.AX
			})

			call(SysYield)

			Expect(axAtYield).To(BeZero())
		})
	})
})
