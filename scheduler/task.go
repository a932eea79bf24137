package scheduler

import (
	"github.com/zplc/zplc-core/vm"
)

// TaskType matches the loader's task-definition type field.
type TaskType uint8

const (
	TaskCyclic TaskType = iota
	TaskEvent
	TaskInit
)

func (t TaskType) String() string {
	switch t {
	case TaskCyclic:
		return "cyclic"
	case TaskEvent:
		return "event"
	case TaskInit:
		return "init"
	default:
		return "unknown"
	}
}

// State is a task's runtime state, independent of its static config.
type State int

const (
	StateIdle State = iota
	StateReady
	StateRunning
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Stats accumulates a task's execution history across scans.
type Stats struct {
	CycleCount   uint64
	OverrunCount uint64
	LastExecUs   uint32
	MaxExecUs    uint32
	totalExecUs  uint64
}

// AvgExecUs returns the mean execution time across all recorded cycles, 0
// if none have run yet.
func (s *Stats) AvgExecUs() uint32 {
	if s.CycleCount == 0 {
		return 0
	}
	return uint32(s.totalExecUs / s.CycleCount)
}

func (s *Stats) record(execUs uint32, overran bool) {
	s.CycleCount++
	s.LastExecUs = execUs
	s.totalExecUs += uint64(execUs)
	if execUs > s.MaxExecUs {
		s.MaxExecUs = execUs
	}
	if overran {
		s.OverrunCount++
	}
}

// TaskConfig is a task's persistent definition, as decoded from the
// loader's task table.
type TaskConfig struct {
	ID         uint16
	Type       TaskType
	Priority   uint8
	IntervalUs uint32
	EntryPoint uint16
	StackSize  uint16
}

// Task pairs a task's config and runtime state with its own VM instance.
// Tasks share the Scheduler's memory.Memory (the process image and code
// segment) but own an independent evaluation/call stack and PC, matching
// spec.md's "per-task VM state, no locking required within a single task".
type Task struct {
	Config TaskConfig
	VM     *vm.VM
	State  State
	Stats  Stats

	lastRunMs uint32
}

func newTask(cfg TaskConfig, v *vm.VM) *Task {
	return &Task{Config: cfg, VM: v, State: StateIdle}
}

// due reports whether nowMs has reached or passed this task's next
// scheduled scan, for cyclic tasks. A cyclic task that has never run is
// due on the first poll. Event and init tasks are never "due" via the
// poll clock; they are invoked explicitly.
func (t *Task) due(nowMs uint32) bool {
	if t.Config.Type != TaskCyclic {
		return false
	}
	if t.Stats.CycleCount == 0 {
		return true
	}
	intervalMs := t.Config.IntervalUs / 1000
	if intervalMs == 0 {
		intervalMs = 1
	}
	return nowMs-t.lastRunMs >= intervalMs
}
