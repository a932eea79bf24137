package osadapter_test

import (
	"path/filepath"
	"testing"

	"github.com/zplc/zplc-core/hal"
	"github.com/zplc/zplc-core/hal/osadapter"
)

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := osadapter.New(dir, nil)
	if res := h.Init(); res != hal.OK {
		t.Fatalf("Init: %v", res)
	}

	if res := h.PersistSave("retain", []byte{7, 8, 9}); res != hal.OK {
		t.Fatalf("PersistSave: %v", res)
	}
	data, found, res := h.PersistLoad("retain")
	if res != hal.OK || !found {
		t.Fatalf("PersistLoad: found=%v res=%v", found, res)
	}
	if string(data) != string([]byte{7, 8, 9}) {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestPersistLoadMissingKeyIsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	h := osadapter.New(dir, nil)
	h.Init()
	_, found, res := h.PersistLoad("never-saved")
	if res != hal.OK || found {
		t.Fatalf("expected OK/not-found, got found=%v res=%v", found, res)
	}
}

func TestPersistSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	h := osadapter.New(dir, nil)
	h.Init()
	h.PersistSave("code", []byte{1})

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no leftover temp files, found %v", matches)
	}
}

func TestGPIOReportsNotImpl(t *testing.T) {
	dir := t.TempDir()
	h := osadapter.New(dir, nil)
	h.Init()
	if _, res := h.GPIORead(0); res != hal.NotImpl {
		t.Fatalf("expected NotImpl, got %v", res)
	}
	if res := h.GPIOWrite(0, true); res != hal.NotImpl {
		t.Fatalf("expected NotImpl, got %v", res)
	}
}

func TestTickIsMonotonicNonNegative(t *testing.T) {
	dir := t.TempDir()
	h := osadapter.New(dir, nil)
	h.Init()
	a := h.Tick()
	b := h.Tick()
	if b < a {
		t.Fatalf("expected non-decreasing tick, got %d then %d", a, b)
	}
}
