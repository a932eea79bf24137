package memory_test

import (
	"testing"

	"github.com/zplc/zplc-core/memory"
)

func newMemory(t *testing.T) *memory.Memory {
	t.Helper()
	m, err := memory.New(memory.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestDefaultConfigFillsWorkRetainSpan(t *testing.T) {
	m := newMemory(t)
	if m.RegionAt(memory.WorkBase) != memory.RegionWork {
		t.Fatalf("expected work region at WorkBase")
	}
	if m.RegionAt(memory.RetainBase-1) != memory.RegionWork {
		t.Fatalf("expected work region to extend up to RetainBase")
	}
	if m.RegionAt(memory.CodeBase-1) != memory.RegionRetain {
		t.Fatalf("expected retain region to extend up to CodeBase")
	}
}

func TestReadWriteRoundTrip32(t *testing.T) {
	m := newMemory(t)
	if err := m.WriteU32(memory.WorkBase, 0x12345678); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	got, err := m.ReadU32(memory.WorkBase)
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	if got != 0x12345678 {
		t.Fatalf("expected 0x12345678, got 0x%X", got)
	}
}

func TestCrossRegionAccessFaults(t *testing.T) {
	m := newMemory(t)
	// Two bytes before IPI/OPI boundary plus a 4-byte read crosses into OPI.
	_, err := m.ReadU32(memory.OPIBase - 2)
	if err == nil {
		t.Fatalf("expected out-of-bounds error crossing IPI/OPI boundary")
	}
	var oob *memory.OutOfBoundsError
	if !asOutOfBounds(err, &oob) {
		t.Fatalf("expected OutOfBoundsError, got %T: %v", err, err)
	}
}

func TestWriteToCodeSegmentForbidden(t *testing.T) {
	m := newMemory(t)
	err := m.WriteU8(memory.CodeBase, 0xFF)
	if err == nil {
		t.Fatalf("expected write-forbidden error")
	}
}

func TestReadPastAddressSpaceFaults(t *testing.T) {
	m := newMemory(t)
	_, err := m.ReadU8(memory.TotalSize)
	if err == nil {
		t.Fatalf("expected out-of-bounds error past end of address space")
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	m := newMemory(t)
	if err := m.WriteF32(memory.WorkBase, 9.5); err != nil {
		t.Fatalf("WriteF32: %v", err)
	}
	got, err := m.ReadF32(memory.WorkBase)
	if err != nil {
		t.Fatalf("ReadF32: %v", err)
	}
	if got != 9.5 {
		t.Fatalf("expected 9.5, got %v", got)
	}
}

func TestSysRegsOccupyLast16BytesOfIPI(t *testing.T) {
	m := newMemory(t)
	m.SetSysRegs(1234, 56789, 3, memory.FlagFirstScan|memory.FlagRunning)

	execTime, err := m.ReadU32(memory.SysRegExecTimeUs)
	if err != nil || execTime != 1234 {
		t.Fatalf("expected exec time 1234, got %d (err=%v)", execTime, err)
	}
	uptime, err := m.ReadU32(memory.SysRegUptimeMs)
	if err != nil || uptime != 56789 {
		t.Fatalf("expected uptime 56789, got %d (err=%v)", uptime, err)
	}
	taskID, err := m.ReadU8(memory.SysRegCurrentTask)
	if err != nil || taskID != 3 {
		t.Fatalf("expected task id 3, got %d (err=%v)", taskID, err)
	}
	flags, err := m.ReadU8(memory.SysRegFlags)
	if err != nil || flags != memory.FlagFirstScan|memory.FlagRunning {
		t.Fatalf("unexpected flags 0x%02X (err=%v)", flags, err)
	}
}

func TestConfigRejectsOversizedWorkAndRetain(t *testing.T) {
	_, err := memory.New(memory.Config{WorkSize: memory.DefaultWorkSize, RetainSize: memory.DefaultRetainSize + 1})
	if err == nil {
		t.Fatalf("expected error when work+retain exceeds the fixed span")
	}
}

func TestRetainSnapshotRestoreRoundTrip(t *testing.T) {
	m := newMemory(t)
	if err := m.WriteU32(memory.RetainBase, 0xCAFEBABE); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	snap := m.RetainSnapshot()

	m2 := newMemory(t)
	m2.RetainRestore(snap)
	got, err := m2.ReadU32(memory.RetainBase)
	if err != nil || got != 0xCAFEBABE {
		t.Fatalf("expected restored 0xCAFEBABE, got 0x%X (err=%v)", got, err)
	}
}

// asOutOfBounds is a tiny errors.As wrapper kept local to this test file to
// avoid importing errors just for one assertion helper.
func asOutOfBounds(err error, target **memory.OutOfBoundsError) bool {
	oob, ok := err.(*memory.OutOfBoundsError)
	if ok {
		*target = oob
	}
	return ok
}
