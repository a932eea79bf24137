// Package scheduler implements the cooperative, non-preemptive multitask
// scheduler: a fixed task table, the read-input/execute/write-output scan
// discipline, a shared process-image mutex, and per-task execution
// statistics. It can be driven by a hosted clock goroutine (Run) or
// single-stepped deterministically by a caller-owned tick source (Poll),
// so the core makes no assumption about its host's threading model.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/zplc/zplc-core/hal"
	"github.com/zplc/zplc-core/memory"
	"github.com/zplc/zplc-core/vm"
)

// MaxTasks is the fixed capacity of the task table; Config may lower it
// but never raise it, since it bounds an array, not a slice.
const MaxTasks = 8

// Config tunes the scheduler's timing without touching code.
type Config struct {
	// WatchdogMultiplier scales a cyclic task's configured interval into
	// its instruction-budget deadline: a task with interval 10ms and
	// multiplier 2 must finish its scan within the instruction budget
	// implied by 20ms.
	WatchdogMultiplier float64
	// InstructionsPerMicrosecond estimates execution speed to convert a
	// microsecond deadline into an instruction budget for RunCycle.
	InstructionsPerMicrosecond float64
	// MutexTimeout bounds how long a scan waits for the process-image
	// lock before giving up and counting the scan as an overrun.
	MutexTimeout time.Duration
	// IOMap binds HAL channels to fixed IPI/OPI offsets; RunTaskCycle
	// walks it on every scan to perform the HAL input/output latch.
	IOMap []IOMapping
}

// DefaultConfig matches the values spec.md treats as sane defaults for a
// microcontroller-class target.
func DefaultConfig() Config {
	return Config{
		WatchdogMultiplier:         2.0,
		InstructionsPerMicrosecond: 1.0,
		MutexTimeout:               50 * time.Millisecond,
	}
}

// Scheduler owns the shared memory.Memory, the HAL, and up to MaxTasks
// registered tasks.
type Scheduler struct {
	Mem   *memory.Memory
	HAL   hal.HAL
	Cfg   Config
	IOMap []IOMapping

	tasks     [MaxTasks]*Task
	taskCount int
	imageLock *processMutex

	startMs uint32
	started bool
}

// New constructs a Scheduler bound to mem and h. h may be nil for
// tests that never call Run/Poll's clock-dependent paths.
func New(mem *memory.Memory, h hal.HAL, cfg Config) *Scheduler {
	return &Scheduler{
		Mem:       mem,
		HAL:       h,
		Cfg:       cfg,
		IOMap:     cfg.IOMap,
		imageLock: newProcessMutex(),
	}
}

// RegisterTask adds a task bound to its own VM instance sharing s.Mem. It
// returns an error if the task table is already full (MaxTasks reached).
func (s *Scheduler) RegisterTask(cfg TaskConfig) (*Task, error) {
	if s.taskCount >= MaxTasks {
		return nil, fmt.Errorf("scheduler: task table full (max %d)", MaxTasks)
	}
	v := vm.New(s.Mem, cfg.EntryPoint)
	t := newTask(cfg, v)
	s.tasks[s.taskCount] = t
	s.taskCount++
	return t, nil
}

// Tasks returns the registered tasks in registration order.
func (s *Scheduler) Tasks() []*Task {
	return s.tasks[:s.taskCount]
}

// instructionBudget converts a task's interval into a RunCycle budget
// scaled by the configured watchdog multiplier.
func (s *Scheduler) instructionBudget(t *Task) int {
	deadlineUs := float64(t.Config.IntervalUs) * s.Cfg.WatchdogMultiplier
	if deadlineUs <= 0 {
		deadlineUs = 1000 // event/init tasks: a generous default deadline
	}
	budget := int(deadlineUs * s.Cfg.InstructionsPerMicrosecond)
	if budget < 1 {
		budget = 1
	}
	return budget
}

// RunTaskCycle executes exactly one scan of t: acquire the process-image
// lock, latch HAL inputs into IPI, refresh the system registers, run the
// task to completion or watchdog, latch OPI out to the HAL, release the
// lock, and record statistics. It is the single scan primitive both Poll
// and Run build on.
func (s *Scheduler) RunTaskCycle(t *Task, isFirstScan bool) error {
	if !s.imageLock.TryLockTimeout(s.Cfg.MutexTimeout) {
		t.Stats.record(0, true)
		return fmt.Errorf("scheduler: task %d could not acquire process image within %v", t.Config.ID, s.Cfg.MutexTimeout)
	}
	defer s.imageLock.Unlock()

	t.State = StateRunning

	s.latchInputs()

	var sysFlags byte = memory.FlagRunning
	if isFirstScan {
		sysFlags |= memory.FlagFirstScan
	}

	uptimeMs := s.uptimeMs()
	s.Mem.SetSysRegs(0, uptimeMs, uint8(t.Config.ID), sysFlags)

	start := s.clockUs()
	budget := s.instructionBudget(t)
	status := t.VM.RunCycle(budget)
	elapsed := s.clockUs() - start

	s.latchOutputs()

	overran := status == vm.StatusFault && t.VM.LastError == vm.FaultWatchdog
	if overran {
		sysFlags |= memory.FlagWatchdogWrn
	}
	s.Mem.SetSysRegs(elapsed, uptimeMs, uint8(t.Config.ID), sysFlags)

	t.Stats.record(elapsed, overran)
	t.lastRunMs = uptimeMs

	switch status {
	case vm.StatusHalted:
		t.State = StateIdle
	case vm.StatusPaused:
		t.State = StatePaused
	case vm.StatusFault:
		t.State = StateError
	default:
		t.State = StateReady
	}

	return nil
}

func (s *Scheduler) uptimeMs() uint32 {
	if s.HAL == nil {
		return 0
	}
	now := s.HAL.Tick()
	if !s.started {
		s.startMs = now
		s.started = true
	}
	return now - s.startMs
}

// clockUs is a coarse execution-time estimate derived from the HAL's
// millisecond tick; a target with a finer clock can override this by
// wiring a HAL whose Tick resolution is sub-millisecond.
func (s *Scheduler) clockUs() uint32 {
	if s.HAL == nil {
		return 0
	}
	return s.HAL.Tick() * 1000
}

// Poll drives exactly the cyclic tasks whose interval has elapsed as of
// nowMs, in registration order, and is intended for
// deterministic tests and bare-metal-style callers that own their own
// tick source rather than a goroutine.
func (s *Scheduler) Poll(nowMs uint32) error {
	for _, t := range s.tasks[:s.taskCount] {
		if !t.due(nowMs) {
			continue
		}
		firstScan := t.Stats.CycleCount == 0
		if err := s.RunTaskCycle(t, firstScan); err != nil {
			return err
		}
		t.lastRunMs = nowMs
	}
	return nil
}

// Run drives every cyclic task from its own goroutine, ticking at its
// configured interval, until ctx is cancelled. Event and init tasks are
// not polled here; a host invokes them directly via RunTaskCycle.
func (s *Scheduler) Run(ctx context.Context) error {
	errCh := make(chan error, s.taskCount)
	running := 0

	for _, t := range s.tasks[:s.taskCount] {
		if t.Config.Type != TaskCyclic {
			continue
		}
		running++
		go s.runTaskLoop(ctx, t, errCh)
	}

	if running == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scheduler) runTaskLoop(ctx context.Context, t *Task, errCh chan<- error) {
	intervalUs := t.Config.IntervalUs
	if intervalUs == 0 {
		intervalUs = 1000
	}
	ticker := time.NewTicker(time.Duration(intervalUs) * time.Microsecond)
	defer ticker.Stop()

	firstScan := true
	for {
		select {
		case <-ctx.Done():
			errCh <- nil
			return
		case <-ticker.C:
			if err := s.RunTaskCycle(t, firstScan); err != nil {
				errCh <- err
				return
			}
			firstScan = false
		}
	}
}
