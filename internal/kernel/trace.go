package kernel

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync/atomic"
)

// TraceKind represents the type of kernel trace event.
type TraceKind int

const (
	TraceSpawn TraceKind = iota
	TraceDispatch
	TraceYield
	TracePreempt
	TraceBlock
	TraceWake
	TraceSleep
	TraceSuspend
	TraceResume
	TraceExit
	TraceKill
	TraceTick
	TraceFault
)

func (k TraceKind) String() string {
	switch k {
	case TraceSpawn:
		return "Spawn"
	case TraceDispatch:
		return "Dispatch"
	case TraceYield:
		return "Yield"
	case TracePreempt:
		return "Preempt"
	case TraceBlock:
		return "Block"
	case TraceWake:
		return "Wake"
	case TraceSleep:
		return "Sleep"
	case TraceSuspend:
		return "Suspend"
	case TraceResume:
		return "Resume"
	case TraceExit:
		return "Exit"
	case TraceKill:
		return "Kill"
	case TraceTick:
		return "Tick"
	case TraceFault:
		return "Fault"
	default:
		return "Unknown"
	}
}

// TraceEvent is emitted on every scheduling decision and state transition.
type TraceEvent struct {
	Tick     uint64
	Kind     TraceKind
	Task     TaskID
	Priority int
}

// Tracer collects kernel trace events on a buffered channel with an optional
// CSV sink. Emission never blocks: when the consumer falls behind, events are
// dropped and counted, so tracing is safe inside critical sections.
type Tracer struct {
	ch      chan TraceEvent
	dropped atomic.Uint64

	csvFile   *os.File
	csvWriter *csv.Writer
}

// NewTracer creates a tracer with the given channel buffer.
func NewTracer(buffer int) *Tracer {
	return &Tracer{ch: make(chan TraceEvent, buffer)}
}

// Events exposes the read-only event stream.
func (tr *Tracer) Events() <-chan TraceEvent { return tr.ch }

// Dropped returns how many events were discarded because the buffer was full.
func (tr *Tracer) Dropped() uint64 { return tr.dropped.Load() }

// EnableCSV opens the given file path for CSV logging of events.
// Must be called before the kernel starts.
func (tr *Tracer) EnableCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	w.Write([]string{"tick", "event", "task_id", "priority"})
	w.Flush()
	tr.csvFile = f
	tr.csvWriter = w
	return nil
}

// Record writes the event to the CSV sink, if one is enabled. Tick events are
// skipped for the brevity of output.
func (tr *Tracer) Record(ev TraceEvent) {
	if tr.csvWriter == nil || ev.Kind == TraceTick {
		return
	}
	tr.csvWriter.Write([]string{
		strconv.FormatUint(ev.Tick, 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.Task), 10),
		strconv.Itoa(ev.Priority),
	})
	tr.csvWriter.Flush()
}

// Close flushes and closes the CSV sink.
func (tr *Tracer) Close() {
	if tr.csvFile != nil {
		tr.csvWriter.Flush()
		tr.csvFile.Close()
	}
}

func (tr *Tracer) emit(ev TraceEvent) {
	select {
	case tr.ch <- ev:
	default:
		tr.dropped.Add(1)
	}
}

// emit sends a trace event if a tracer is attached.
func (k *Kernel) emit(kind TraceKind, id TaskID, priority int) {
	if k.tracer == nil {
		return
	}
	k.tracer.emit(TraceEvent{
		Tick:     k.port.CurrentTick(),
		Kind:     kind,
		Task:     id,
		Priority: priority,
	})
}
