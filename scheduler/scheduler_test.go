package scheduler_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/zplc/zplc-core/hal/simulated"
	"github.com/zplc/zplc-core/memory"
	"github.com/zplc/zplc-core/scheduler"
	"github.com/zplc/zplc-core/vm"
)

func op0(op vm.Opcode) []byte { return []byte{byte(op)} }
func op8(op vm.Opcode, operand uint8) []byte { return []byte{byte(op), operand} }
func op16(op vm.Opcode, operand uint16) []byte {
	b := make([]byte, 3)
	b[0] = byte(op)
	binary.LittleEndian.PutUint16(b[1:], operand)
	return b
}
func asm(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func newSchedWithCounterTask(t *testing.T, intervalUs uint32) (*scheduler.Scheduler, *scheduler.Task, *memory.Memory) {
	t.Helper()
	mem, err := memory.New(memory.Config{})
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	code := asm(
		op16(vm.LOAD32, memory.OPIBase),
		op8(vm.PUSH8, 1),
		op0(vm.ADD),
		op16(vm.STORE32, memory.OPIBase),
		op0(vm.HALT),
	)
	if err := mem.WriteCode(code); err != nil {
		t.Fatalf("WriteCode: %v", err)
	}

	h := simulated.New(simulated.Config{ManualClock: true})
	h.Init()

	sched := scheduler.New(mem, h, scheduler.DefaultConfig())
	task, err := sched.RegisterTask(scheduler.TaskConfig{
		ID:         1,
		Type:       scheduler.TaskCyclic,
		IntervalUs: intervalUs,
		EntryPoint: memory.CodeBase,
	})
	if err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}
	return sched, task, mem
}

func TestRegisterTaskRejectsNinthTask(t *testing.T) {
	mem, err := memory.New(memory.Config{})
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	sched := scheduler.New(mem, nil, scheduler.DefaultConfig())
	for i := 0; i < scheduler.MaxTasks; i++ {
		if _, err := sched.RegisterTask(scheduler.TaskConfig{ID: uint16(i), EntryPoint: memory.CodeBase}); err != nil {
			t.Fatalf("task %d: unexpected error: %v", i, err)
		}
	}
	if _, err := sched.RegisterTask(scheduler.TaskConfig{ID: 99, EntryPoint: memory.CodeBase}); err == nil {
		t.Fatalf("expected error registering a 9th task")
	}
}

func TestRunTaskCycleIncrementsCounterAndStats(t *testing.T) {
	sched, task, mem := newSchedWithCounterTask(t, 10000)

	if err := sched.RunTaskCycle(task, true); err != nil {
		t.Fatalf("RunTaskCycle: %v", err)
	}
	if task.Stats.CycleCount != 1 {
		t.Fatalf("expected cycle count 1, got %d", task.Stats.CycleCount)
	}
	got, err := mem.ReadU32(memory.OPIBase)
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected OPI counter=1, got %d", got)
	}
	if task.State != scheduler.StateIdle {
		t.Fatalf("expected idle state after clean halt, got %v", task.State)
	}
}

func TestPollOnlyRunsDueTasks(t *testing.T) {
	sched, task, mem := newSchedWithCounterTask(t, 10000) // 10ms interval

	if err := sched.Poll(0); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if task.Stats.CycleCount != 1 {
		t.Fatalf("expected first poll to run the task, got count=%d", task.Stats.CycleCount)
	}

	if err := sched.Poll(5); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if task.Stats.CycleCount != 1 {
		t.Fatalf("expected second poll (5ms later, interval 10ms) to skip, got count=%d", task.Stats.CycleCount)
	}

	if err := sched.Poll(15); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if task.Stats.CycleCount != 2 {
		t.Fatalf("expected third poll (15ms later) to run, got count=%d", task.Stats.CycleCount)
	}

	got, _ := mem.ReadU32(memory.OPIBase)
	if got != 2 {
		t.Fatalf("expected OPI counter=2 after two scans, got %d", got)
	}
}

func TestWatchdogFaultSetsErrorStateAndOverrunStat(t *testing.T) {
	mem, err := memory.New(memory.Config{})
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	code := asm(op8(vm.JR, 0xFE)) // tight self-loop, never halts
	if err := mem.WriteCode(code); err != nil {
		t.Fatalf("WriteCode: %v", err)
	}
	h := simulated.New(simulated.Config{ManualClock: true})
	h.Init()
	cfg := scheduler.DefaultConfig()
	cfg.InstructionsPerMicrosecond = 0.001 // tiny budget forces the watchdog
	sched := scheduler.New(mem, h, cfg)
	task, err := sched.RegisterTask(scheduler.TaskConfig{ID: 1, Type: scheduler.TaskCyclic, IntervalUs: 1000, EntryPoint: memory.CodeBase})
	if err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}

	if err := sched.RunTaskCycle(task, true); err != nil {
		t.Fatalf("RunTaskCycle: %v", err)
	}
	if task.State != scheduler.StateError {
		t.Fatalf("expected error state after watchdog, got %v", task.State)
	}
	if task.Stats.OverrunCount != 1 {
		t.Fatalf("expected overrun count 1, got %d", task.Stats.OverrunCount)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sched, _, _ := newSchedWithCounterTask(t, 1000)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil && err != context.DeadlineExceeded {
			t.Fatalf("unexpected error from Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop within timeout after context cancel")
	}
}
