package backend

import "time"

// Stage describes one phase of the function pipeline.
type Stage string

const (
	// StageVerify is the IR verification stage.
	StageVerify Stage = "verify"
	// StageOptimize is the IR optimization stage.
	StageOptimize Stage = "optimize"
	// StageLower is the IR-to-assembly lowering stage.
	StageLower Stage = "lower"
	// StageRegalloc is the register allocation stage.
	StageRegalloc Stage = "regalloc"
	// StageEmit is the whole-module serialization stage.
	StageEmit Stage = "emit"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the function is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the function is currently compiling.
	StatusWorking Status = "working"
	// StatusDone indicates the function compiled cleanly.
	StatusDone Status = "done"
	// StatusError indicates the function failed to compile.
	StatusError Status = "error"
)

// Event reports progress for one function, or for the overall build when
// Func is empty.
type Event struct {
	Func    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must tolerate
// concurrent calls: compilation workers report independently.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// Timings holds accumulated stage durations. Per-function stage times
// are summed across the whole build.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Add accumulates a duration for the given stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] += dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
