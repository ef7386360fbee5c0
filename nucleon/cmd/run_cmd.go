package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/kernlab/nucleon/cpu"
	"github.com/kernlab/nucleon/datarecording"
	"github.com/kernlab/nucleon/kernel"
	"github.com/kernlab/nucleon/ktrace"
	"github.com/kernlab/nucleon/monitoring"
	"github.com/kernlab/nucleon/syscall"
	"github.com/kernlab/nucleon/timing"
)

var runFlags = struct {
	frames      uint64
	heapFrames  uint64
	timeSlice   int
	timerPeriod uint64
	maxCycles   uint64
	trace       string
	monitor     bool
	monitorPort int
	openBrowser bool
	input       string
	inputAt     uint64
}{}

var runCmd = &cobra.Command{
	Use:   "run [image]...",
	Short: "Boot the machine and run program images until they all exit",
	Long: `Boot the machine and run the given raw program images as ` +
		`processes. With no images, a built-in demo workload runs instead.`,
	RunE: runMachine,
}

func init() {
	f := runCmd.Flags()

	f.Uint64Var(&runFlags.frames, "frames",
		envUint("NUCLEON_FRAMES", 1024), "physical memory size in frames")
	f.Uint64Var(&runFlags.heapFrames, "heap-frames",
		envUint("NUCLEON_HEAP_FRAMES", 64), "kernel heap size in frames")
	f.IntVar(&runFlags.timeSlice, "time-slice",
		int(envUint("NUCLEON_TIME_SLICE", 5)), "time slice in timer ticks")
	f.Uint64Var(&runFlags.timerPeriod, "timer-period",
		envUint("NUCLEON_TIMER_PERIOD", 10), "timer period in cycles")
	f.Uint64Var(&runFlags.maxCycles, "max-cycles",
		envUint("NUCLEON_MAX_CYCLES", 1_000_000), "cycle cap for the run")
	f.StringVar(&runFlags.trace, "trace",
		os.Getenv("NUCLEON_TRACE"), "record a trace database at this path")
	f.BoolVar(&runFlags.monitor, "monitor", false,
		"serve machine state over HTTP while running")
	f.IntVar(&runFlags.monitorPort, "monitor-port",
		int(envUint("NUCLEON_MONITOR_PORT", 0)), "monitoring server port")
	f.BoolVar(&runFlags.openBrowser, "open", false,
		"open the monitoring page in a browser")
	f.StringVar(&runFlags.input, "input", "",
		"bytes typed on the keyboard during the run")
	f.Uint64Var(&runFlags.inputAt, "input-at", 100,
		"cycle at which typed input starts arriving")

	rootCmd.AddCommand(runCmd)
}

func runMachine(_ *cobra.Command, args []string) error {
	k := kernel.MakeBuilder().
		WithFrameCount(runFlags.frames).
		WithHeapFrames(runFlags.heapFrames).
		WithTimeSlice(runFlags.timeSlice).
		WithTimerPeriod(timing.Cycle(runFlags.timerPeriod)).
		WithMaxCycles(timing.Cycle(runFlags.maxCycles)).
		WithConsoleMirror(os.Stdout).
		Build()

	if runFlags.trace != "" {
		recorder := datarecording.New(runFlags.trace)
		tracer := ktrace.NewTracer(recorder, k.Engine)
		ktrace.Attach(tracer, k.Sched, k.Traps, k.Syscalls)
	}

	if runFlags.monitor {
		monitor := monitoring.NewMonitor()
		monitor.RegisterEngine(k.Engine)
		monitor.RegisterKernel(k)
		port := monitor.StartServer()

		if runFlags.openBrowser {
			url := fmt.Sprintf("http://localhost:%d", port)
			if err := browser.OpenURL(url); err != nil {
				fmt.Fprintf(os.Stderr, "cannot open browser: %v\n", err)
			}
		}
	}

	if err := spawnWorkload(k, args); err != nil {
		return err
	}

	if runFlags.input != "" {
		k.Keyboard.TypeString(timing.Cycle(runFlags.inputAt), runFlags.input)
	}

	if err := k.Run(); err != nil {
		return err
	}

	for _, p := range k.Sched.Processes() {
		fmt.Fprintf(os.Stderr, "pid %d (%s): %s, exit code %d\n",
			p.PID, p.Name, p.State, p.ExitCode)
	}

	atexit.Exit(0)

	return nil
}

func spawnWorkload(k *kernel.Kernel, images []string) error {
	if len(images) == 0 {
		return spawnDemo(k)
	}

	for _, path := range images {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("load image %s: %w", path, err)
		}

		p := kernel.Program{Name: filepath.Base(path), Text: text}
		if _, err := k.Spawn(p); err != nil {
			return err
		}
	}

	return nil
}

// spawnDemo runs two yielding loopers and one process that reads a byte of
// keyboard input before exiting.
func spawnDemo(k *kernel.Kernel) error {
	looper := cpu.NewAsm().
		Movi(cpu.RegAX, uint64(syscall.SysYield)).
		Syscall().
		Movi(cpu.RegAX, uint64(syscall.SysExit)).
		Movi(cpu.RegBX, 0).
		Syscall().
		Bytes()

	reader := cpu.NewAsm().
		Movi(cpu.RegAX, uint64(syscall.SysRead)).
		Movi(cpu.RegBX, 0).
		Movi(cpu.RegCX, kernel.UserStackBase).
		Movi(cpu.RegDX, 1).
		Syscall().
		Movi(cpu.RegAX, uint64(syscall.SysExit)).
		Movi(cpu.RegBX, 0).
		Syscall().
		Bytes()

	for _, p := range []kernel.Program{
		{Name: "looper-a", Text: looper},
		{Name: "looper-b", Text: looper},
		{Name: "reader", Text: reader},
	} {
		if _, err := k.Spawn(p); err != nil {
			return err
		}
	}

	if runFlags.input == "" {
		runFlags.input = "x"
	}

	return nil
}

func envUint(name string, fallback uint64) uint64 {
	s := os.Getenv(name)
	if s == "" {
		return fallback
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s=%q, using %d\n", name, s, fallback)
		return fallback
	}

	return v
}
