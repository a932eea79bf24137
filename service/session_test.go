package service

import (
	"context"
	"testing"
	"time"

	"github.com/zplc/zplc-core/hal"
	"github.com/zplc/zplc-core/hal/simulated"
	"github.com/zplc/zplc-core/memory"
	"github.com/zplc/zplc-core/vm"
)

func newTestSession(t *testing.T, allowRaw bool) *Session {
	t.Helper()
	s, err := New(Config{
		HAL:          simulated.New(simulated.Config{}),
		AllowRawLoad: allowRaw,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestSession_LoadRawDisabledByDefault(t *testing.T) {
	s := newTestSession(t, false)
	if err := s.LoadRaw([]byte{0x00, 0x01}); err == nil {
		t.Fatal("expected LoadRaw to be rejected when AllowRawLoad is false")
	}
}

func TestSession_LoadRawAndStep(t *testing.T) {
	s := newTestSession(t, true)
	// NOP, HALT
	if err := s.LoadRaw([]byte{0x00, 0x01}); err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}

	st, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st != vm.StatusContinue {
		t.Fatalf("expected CONTINUE after NOP, got %s", st)
	}

	st, err = s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st != vm.StatusHalted {
		t.Fatalf("expected HALTED after HALT, got %s", st)
	}

	halted, err := s.IsHalted()
	if err != nil {
		t.Fatalf("IsHalted: %v", err)
	}
	if !halted {
		t.Error("expected IsHalted to report true")
	}
}

func TestSession_GetStateAndStack(t *testing.T) {
	s := newTestSession(t, true)
	// PUSH32 imm, HALT
	bytecode := []byte{0xC0, 0x2A, 0x00, 0x00, 0x00, 0x01}
	if _, err := s.Run(0); err == nil {
		t.Fatal("expected Run before any load to fail")
	}
	if err := s.LoadRaw(bytecode); err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}

	executed, st, err := s.Run(100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st != vm.StatusHalted {
		t.Fatalf("expected HALTED, got %s", st)
	}
	if executed != 2 {
		t.Fatalf("expected 2 instructions executed, got %d", executed)
	}

	snap, err := s.GetState()
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !snap.Halted {
		t.Error("snapshot should report halted")
	}

	sp, err := s.GetSP()
	if err != nil {
		t.Fatalf("GetSP: %v", err)
	}
	if sp != 1 {
		t.Fatalf("expected SP 1 after a single push, got %d", sp)
	}

	val, err := s.GetStack(0)
	if err != nil {
		t.Fatalf("GetStack: %v", err)
	}
	if val != 0x2A {
		t.Fatalf("expected stack[0] == 0x2A, got 0x%X", val)
	}
}

func TestSession_ResetRestoresEntryPoint(t *testing.T) {
	s := newTestSession(t, true)
	if err := s.LoadRaw([]byte{0x00, 0x01}); err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	if _, err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if _, err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	halted, _ := s.IsHalted()
	if halted {
		t.Error("expected Reset to clear halted")
	}
}

func TestSession_BreakpointPausesStep(t *testing.T) {
	s := newTestSession(t, true)
	// NOP, NOP, HALT
	if err := s.LoadRaw([]byte{0x00, 0x00, 0x01}); err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}

	if _, err := s.AddBreakpoint(memory.CodeBase+1, "", false); err != nil {
		t.Fatalf("AddBreakpoint: %v", err)
	}

	if _, _, err := s.Run(10); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, err := s.GetState()
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if snap.PC != memory.CodeBase+1 || !snap.Paused {
		t.Fatalf("expected to pause at PC=0x%04X, got PC=0x%04X paused=%v", memory.CodeBase+1, snap.PC, snap.Paused)
	}
}

func TestSession_WatchPseudoRegister(t *testing.T) {
	s := newTestSession(t, true)
	if err := s.LoadRaw([]byte{0x00, 0x00, 0x01}); err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}

	wp, err := s.Watch("write", 0, "pc")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if !wp.IsPseudo || wp.Pseudo != "pc" {
		t.Fatalf("expected pseudo watch on pc, got %+v", wp)
	}

	list, err := s.ListWatches()
	if err != nil {
		t.Fatalf("ListWatches: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 watchpoint, got %d", len(list))
	}
}

func TestSession_IPIRoundTrip(t *testing.T) {
	s := newTestSession(t, true)
	if err := s.SetIPI(0, 0xDEADBEEF); err != nil {
		t.Fatalf("SetIPI: %v", err)
	}
	if err := s.SetIPI16(4, 0xBEEF); err != nil {
		t.Fatalf("SetIPI16: %v", err)
	}
	win, err := s.MemoryDump(0, 6)
	if err != nil {
		t.Fatalf("MemoryDump: %v", err)
	}
	if len(win.Data) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(win.Data))
	}
}

func TestSession_SchedulerStartStop(t *testing.T) {
	s := newTestSession(t, true)
	if err := s.LoadRaw([]byte{0x00, 0x01}); err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.StartScheduler(ctx); err != nil {
		t.Fatalf("StartScheduler: %v", err)
	}
	if err := s.StartScheduler(ctx); err == nil {
		t.Error("expected starting an already-running scheduler to fail")
	}
	if err := s.StopScheduler(); err != nil {
		t.Fatalf("StopScheduler: %v", err)
	}

	// Loading while stopped-but-not-yet-observed-stopped may race; give the
	// background goroutine a moment to record the stop.
	time.Sleep(10 * time.Millisecond)
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset after stop: %v", err)
	}
}

// TestSession_RetainRoundTrip exercises spec.md §8's retentive round-trip
// property through Session rather than memory/hal in isolation: write
// bytes to the retentive region, save, shut down, build a fresh Session
// over the same HAL (same in-memory store), init, and confirm the bytes
// came back.
func TestSession_RetainRoundTrip(t *testing.T) {
	store := simulated.New(simulated.Config{})

	s, err := New(Config{HAL: store, AllowRawLoad: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if res := s.Init(); res != hal.OK {
		t.Fatalf("Init: %v", res)
	}

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := s.mem.WriteU32(memory.RetainBase, 0xEFBEADDE); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}

	if res := s.Shutdown(); res != hal.OK {
		t.Fatalf("Shutdown: %v", res)
	}

	s2, err := New(Config{HAL: store, AllowRawLoad: true})
	if err != nil {
		t.Fatalf("New (second session): %v", err)
	}
	if res := s2.Init(); res != hal.OK {
		t.Fatalf("Init (second session): %v", res)
	}

	got := s2.mem.RetainSnapshot()
	if len(got) < 4 {
		t.Fatalf("expected at least 4 retained bytes, got %d", len(got))
	}
	for i, b := range want {
		if got[i] != b {
			t.Fatalf("retain byte %d: got 0x%02X, want 0x%02X", i, got[i], b)
		}
	}
}

func TestSession_GetSchedStats(t *testing.T) {
	s := newTestSession(t, true)
	if err := s.LoadRaw([]byte{0x00, 0x01}); err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	stats, err := s.GetSchedStats()
	if err != nil {
		t.Fatalf("GetSchedStats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 task, got %d", len(stats))
	}
	if stats[0].ID != 0 {
		t.Fatalf("expected implicit task id 0, got %d", stats[0].ID)
	}

	task, err := s.GetTask(0)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Type != "cyclic" {
		t.Fatalf("expected implicit task type cyclic, got %s", task.Type)
	}
}
