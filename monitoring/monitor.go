// Package monitoring turns a running machine into a web server for external
// inspection and control: pause and resume the engine, walk process state,
// read the console, and profile the host process.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/kernlab/nucleon/kernel"
	"github.com/kernlab/nucleon/proc"
	"github.com/kernlab/nucleon/timing"
)

// Monitor serves machine state over HTTP while the engine runs.
type Monitor struct {
	engine     timing.Engine
	kernel     *kernel.Kernel
	portNumber int
}

// NewMonitor creates a Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port of the monitoring server. Ports below 1000
// are rejected and a random port is used instead.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine driving the machine.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterKernel registers the machine to be inspected.
func (m *Monitor) RegisterKernel(k *kernel.Kernel) {
	m.kernel = k
}

// StartServer starts serving. It returns the port actually bound.
func (m *Monitor) StartServer() int {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/process/{pid}", m.processDetails)
	r.HandleFunc("/api/readyqueue", m.readyQueue)
	r.HandleFunc("/api/console", m.consoleOutput)
	r.HandleFunc("/api/memory", m.memoryStats)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/", m.index)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr,
		"Monitoring machine with http://localhost:%d\n", port)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	return port
}

func (m *Monitor) index(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `<html><body><h1>nucleon</h1>
<ul>
<li><a href="/api/now">now</a></li>
<li><a href="/api/processes">processes</a></li>
<li><a href="/api/readyqueue">ready queue</a></li>
<li><a href="/api/console">console</a></li>
<li><a href="/api/memory">memory</a></li>
<li><a href="/api/resource">resource</a></li>
</ul></body></html>`)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.engine.CurrentCycle())
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	go func() {
		if err := m.kernel.Run(); err != nil {
			panic(err)
		}
	}()
}

type processRsp struct {
	PID       uint64 `json:"pid"`
	Name      string `json:"name"`
	State     string `json:"state"`
	WaitingOn string `json:"waiting_on,omitempty"`
	ExitCode  int64  `json:"exit_code"`
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	procs := m.kernel.Sched.Processes()

	rsp := make([]processRsp, 0, len(procs))
	for _, p := range procs {
		rsp = append(rsp, processRsp{
			PID:       uint64(p.PID),
			Name:      p.Name,
			State:     p.State.String(),
			WaitingOn: p.WaitingOn,
			ExitCode:  p.ExitCode,
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) processDetails(w http.ResponseWriter, r *http.Request) {
	pidStr := mux.Vars(r)["pid"]

	pid, err := strconv.ParseUint(pidStr, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	p, ok := m.kernel.Sched.Lookup(proc.PID(pid))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Process not found"))
		dieOnErr(err)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(p)
	serializer.SetMaxDepth(2)

	dieOnErr(serializer.Serialize(w))
}

func (m *Monitor) readyQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.kernel.Sched.ReadyQueue())
}

func (m *Monitor) consoleOutput(w http.ResponseWriter, _ *http.Request) {
	_, err := w.Write([]byte(m.kernel.Console.Output()))
	dieOnErr(err)
}

type memoryRsp struct {
	FramesFree  uint64 `json:"frames_free"`
	FramesTotal uint64 `json:"frames_total"`
	HeapFree    uint64 `json:"heap_free"`
}

func (m *Monitor) memoryStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, memoryRsp{
		FramesFree:  m.kernel.Frames.FreeCount(),
		FramesTotal: m.kernel.Mem.FrameCount(),
		HeapFree:    m.kernel.Heap.FreeBytes(),
	})
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	hostProc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := hostProc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := hostProc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
