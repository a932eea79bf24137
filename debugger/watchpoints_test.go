package debugger

import (
	"testing"

	"github.com/zplc/zplc-core/memory"
	"github.com/zplc/zplc-core/vm"
)

func newTestVM(t *testing.T) *vm.VM {
	t.Helper()
	mem, err := memory.New(memory.Config{})
	if err != nil {
		t.Fatalf("memory.New failed: %v", err)
	}
	return vm.New(mem, 0)
}

func TestWatchpointManager_AddWatchpoint(t *testing.T) {
	wm := NewWatchpointManager()

	wp := wm.AddWatchpoint(WatchWrite, "pc", 0, true, "pc")

	if wp == nil {
		t.Fatal("AddWatchpoint returned nil")
	}

	if wp.ID != 1 {
		t.Errorf("Expected ID 1, got %d", wp.ID)
	}

	if wp.Type != WatchWrite {
		t.Errorf("Wrong watchpoint type: got %d, want %d", wp.Type, WatchWrite)
	}

	if wp.Expression != "pc" {
		t.Errorf("Expression = %s, want pc", wp.Expression)
	}

	if !wp.IsPseudo {
		t.Error("Should be a pseudo-register watchpoint")
	}

	if !wp.Enabled {
		t.Error("Watchpoint should be enabled by default")
	}

	if wp.HitCount != 0 {
		t.Errorf("Initial hit count should be 0, got %d", wp.HitCount)
	}
}

func TestWatchpointManager_AddMultiple(t *testing.T) {
	wm := NewWatchpointManager()

	wp1 := wm.AddWatchpoint(WatchWrite, "pc", 0, true, "pc")
	wp2 := wm.AddWatchpoint(WatchRead, "[0x2000]", 0x2000, false, "")

	if wp1.ID == wp2.ID {
		t.Error("Watchpoint IDs should be unique")
	}

	if wm.Count() != 2 {
		t.Errorf("Expected 2 watchpoints, got %d", wm.Count())
	}
}

func TestWatchpointManager_DeleteWatchpoint(t *testing.T) {
	wm := NewWatchpointManager()

	wp := wm.AddWatchpoint(WatchWrite, "pc", 0, true, "pc")

	err := wm.DeleteWatchpoint(wp.ID)
	if err != nil {
		t.Fatalf("DeleteWatchpoint failed: %v", err)
	}

	if wm.GetWatchpoint(wp.ID) != nil {
		t.Error("Watchpoint not deleted")
	}

	// Try to delete non-existent watchpoint
	err = wm.DeleteWatchpoint(999)
	if err == nil {
		t.Error("Expected error when deleting non-existent watchpoint")
	}
}

func TestWatchpointManager_EnableDisable(t *testing.T) {
	wm := NewWatchpointManager()

	wp := wm.AddWatchpoint(WatchWrite, "pc", 0, true, "pc")

	// Disable
	err := wm.DisableWatchpoint(wp.ID)
	if err != nil {
		t.Fatalf("DisableWatchpoint failed: %v", err)
	}

	if wp.Enabled {
		t.Error("Watchpoint not disabled")
	}

	// Enable
	err = wm.EnableWatchpoint(wp.ID)
	if err != nil {
		t.Fatalf("EnableWatchpoint failed: %v", err)
	}

	if !wp.Enabled {
		t.Error("Watchpoint not enabled")
	}
}

func TestWatchpointManager_CheckWatchpoints_Pseudo(t *testing.T) {
	wm := NewWatchpointManager()
	machine := newTestVM(t)

	// Add calldepth watchpoint
	wp := wm.AddWatchpoint(WatchWrite, "calldepth", 0, true, "calldepth")

	// Initialize watchpoint
	machine.CallDepth = 1
	err := wm.InitializeWatchpoint(wp.ID, machine)
	if err != nil {
		t.Fatalf("InitializeWatchpoint failed: %v", err)
	}

	if wp.LastValue != 1 {
		t.Errorf("LastValue = %d, want 1", wp.LastValue)
	}

	// No change
	triggered, changed := wm.CheckWatchpoints(machine)
	if triggered != nil || changed {
		t.Error("Should not trigger when value hasn't changed")
	}

	// Change value
	machine.CallDepth = 2
	triggered, changed = wm.CheckWatchpoints(machine)
	if triggered == nil || !changed {
		t.Fatal("Should trigger when value changes")
	}

	if triggered.ID != wp.ID {
		t.Errorf("Wrong watchpoint triggered: got %d, want %d", triggered.ID, wp.ID)
	}

	if wp.HitCount != 1 {
		t.Errorf("Hit count = %d, want 1", wp.HitCount)
	}

	if wp.LastValue != 2 {
		t.Errorf("LastValue not updated: got %d, want 2", wp.LastValue)
	}
}

func TestWatchpointManager_CheckWatchpoints_Memory(t *testing.T) {
	wm := NewWatchpointManager()
	machine := newTestVM(t)

	addr := uint16(memory.WorkBase)

	// Add memory watchpoint
	wp := wm.AddWatchpoint(WatchWrite, "[0x2000]", addr, false, "")

	// Initialize watchpoint
	if err := machine.Mem.WriteU32(int(addr), 0x12345678); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	err := wm.InitializeWatchpoint(wp.ID, machine)
	if err != nil {
		t.Fatalf("InitializeWatchpoint failed: %v", err)
	}

	// No change
	triggered, changed := wm.CheckWatchpoints(machine)
	if triggered != nil || changed {
		t.Error("Should not trigger when value hasn't changed")
	}

	// Change value
	if err := machine.Mem.WriteU32(int(addr), 0xABCDEF00); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	triggered, changed = wm.CheckWatchpoints(machine)
	if triggered == nil || !changed {
		t.Fatal("Should trigger when value changes")
	}

	if triggered.ID != wp.ID {
		t.Errorf("Wrong watchpoint triggered: got %d, want %d", triggered.ID, wp.ID)
	}
}

func TestWatchpointManager_Disabled(t *testing.T) {
	wm := NewWatchpointManager()
	machine := newTestVM(t)

	// Add and disable watchpoint
	wp := wm.AddWatchpoint(WatchWrite, "calldepth", 0, true, "calldepth")
	_ = wm.InitializeWatchpoint(wp.ID, machine)
	_ = wm.DisableWatchpoint(wp.ID)

	// Change value
	machine.CallDepth = 3

	// Should not trigger
	triggered, _ := wm.CheckWatchpoints(machine)
	if triggered != nil {
		t.Error("Disabled watchpoint should not trigger")
	}
}

func TestWatchpointManager_GetAllWatchpoints(t *testing.T) {
	wm := NewWatchpointManager()

	wm.AddWatchpoint(WatchWrite, "pc", 0, true, "pc")
	wm.AddWatchpoint(WatchRead, "sp", 0, true, "sp")
	wm.AddWatchpoint(WatchReadWrite, "[0x2000]", 0x2000, false, "")

	all := wm.GetAllWatchpoints()

	if len(all) != 3 {
		t.Errorf("Expected 3 watchpoints, got %d", len(all))
	}
}

func TestWatchpointManager_Clear(t *testing.T) {
	wm := NewWatchpointManager()

	wm.AddWatchpoint(WatchWrite, "pc", 0, true, "pc")
	wm.AddWatchpoint(WatchRead, "sp", 0, true, "sp")

	wm.Clear()

	if wm.Count() != 0 {
		t.Errorf("Expected 0 watchpoints after clear, got %d", wm.Count())
	}
}

func TestWatchpoint_Types(t *testing.T) {
	wm := NewWatchpointManager()

	wpWrite := wm.AddWatchpoint(WatchWrite, "pc", 0, true, "pc")
	wpRead := wm.AddWatchpoint(WatchRead, "sp", 0, true, "sp")
	wpAccess := wm.AddWatchpoint(WatchReadWrite, "bp", 0, true, "bp")

	if wpWrite.Type != WatchWrite {
		t.Error("Wrong type for write watchpoint")
	}

	if wpRead.Type != WatchRead {
		t.Error("Wrong type for read watchpoint")
	}

	if wpAccess.Type != WatchReadWrite {
		t.Error("Wrong type for access watchpoint")
	}
}
