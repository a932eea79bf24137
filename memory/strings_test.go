package memory_test

import (
	"testing"

	"github.com/zplc/zplc-core/memory"
)

func TestStringInitAndLen(t *testing.T) {
	m := newMemory(t)
	if err := m.InitString(memory.WorkBase, 15, "hello"); err != nil {
		t.Fatalf("InitString: %v", err)
	}
	n, err := m.StrLen(memory.WorkBase)
	if err != nil || n != 5 {
		t.Fatalf("expected length 5, got %d (err=%v)", n, err)
	}
}

func TestStringCopyTruncatesToCapacity(t *testing.T) {
	m := newMemory(t)
	const srcAddr = memory.WorkBase
	const dstAddr = memory.WorkBase + 64

	if err := m.InitString(srcAddr, 31, "this is a longer source string"); err != nil {
		t.Fatalf("InitString src: %v", err)
	}
	if err := m.InitString(dstAddr, 4, ""); err != nil {
		t.Fatalf("InitString dst: %v", err)
	}
	if err := m.StrCpy(dstAddr, srcAddr); err != nil {
		t.Fatalf("StrCpy: %v", err)
	}
	n, err := m.StrLen(dstAddr)
	if err != nil || n != 4 {
		t.Fatalf("expected truncated length 4, got %d (err=%v)", n, err)
	}
}

func TestStringConcatenation(t *testing.T) {
	m := newMemory(t)
	const a = memory.WorkBase
	const b = memory.WorkBase + 64

	if err := m.InitString(a, 31, "foo"); err != nil {
		t.Fatalf("InitString a: %v", err)
	}
	if err := m.InitString(b, 15, "bar"); err != nil {
		t.Fatalf("InitString b: %v", err)
	}
	if err := m.StrCat(a, b); err != nil {
		t.Fatalf("StrCat: %v", err)
	}
	n, err := m.StrLen(a)
	if err != nil || n != 6 {
		t.Fatalf("expected length 6 after concat, got %d (err=%v)", n, err)
	}
}

func TestStringCompare(t *testing.T) {
	m := newMemory(t)
	const a = memory.WorkBase
	const b = memory.WorkBase + 64

	if err := m.InitString(a, 15, "abc"); err != nil {
		t.Fatalf("InitString a: %v", err)
	}
	if err := m.InitString(b, 15, "abd"); err != nil {
		t.Fatalf("InitString b: %v", err)
	}
	cmp, err := m.StrCmp(a, b)
	if err != nil || cmp != -1 {
		t.Fatalf("expected -1, got %d (err=%v)", cmp, err)
	}

	cmp, err = m.StrCmp(a, a)
	if err != nil || cmp != 0 {
		t.Fatalf("expected 0 comparing string to itself, got %d (err=%v)", cmp, err)
	}
}

func TestStringClear(t *testing.T) {
	m := newMemory(t)
	if err := m.InitString(memory.WorkBase, 15, "nonempty"); err != nil {
		t.Fatalf("InitString: %v", err)
	}
	if err := m.StrClr(memory.WorkBase); err != nil {
		t.Fatalf("StrClr: %v", err)
	}
	n, err := m.StrLen(memory.WorkBase)
	if err != nil || n != 0 {
		t.Fatalf("expected length 0 after StrClr, got %d (err=%v)", n, err)
	}
}
