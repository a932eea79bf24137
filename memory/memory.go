// Package memory implements the fixed 64 KiB process-image address space
// shared by the loader, the virtual machine, and the scheduler.
package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Fixed region bases, per the address-space layout in the specification.
const (
	IPIBase    = 0x0000
	IPISize    = 0x1000
	OPIBase    = 0x1000
	OPISize    = 0x1000
	WorkBase   = 0x2000
	RetainBase = 0x4000
	CodeBase   = 0x5000
	CodeMax    = 0xB000 // 44 KiB: [0x5000, 0x10000)
	TotalSize  = 0x10000

	// DefaultWorkSize and DefaultRetainSize are the spec's stated defaults;
	// Work and Retain share the fixed 0x3000-byte gap between WorkBase and
	// CodeBase, so WorkSize+RetainSize must never exceed workRetainSpan.
	DefaultWorkSize   = 0x2000
	DefaultRetainSize = 0x1000
	workRetainSpan    = CodeBase - WorkBase

	// System registers occupy the last 16 bytes of IPI.
	SysRegBase        = IPIBase + IPISize - 16
	SysRegExecTimeUs  = SysRegBase + 0  // u32
	SysRegUptimeMs    = SysRegBase + 4  // u32
	SysRegCurrentTask = SysRegBase + 8  // u8
	SysRegFlags       = SysRegBase + 9  // u8
	sysRegReserved    = SysRegBase + 10 // 6 bytes, always zero
)

// Flags bits for SysRegFlags.
const (
	FlagFirstScan   byte = 1 << 0
	FlagWatchdogWrn byte = 1 << 1
	FlagRunning     byte = 1 << 2
)

// Region names, reported in OutOfBoundsError and used by the debugger to
// label a watch.
const (
	RegionNone   = ""
	RegionIPI    = "ipi"
	RegionOPI    = "opi"
	RegionWork   = "work"
	RegionRetain = "retain"
	RegionCode   = "code"
)

type region struct {
	name  string
	base  int
	size  int
	write bool // writable by VM instructions
}

// Memory is the single owned byte buffer backing IPI/OPI/Work/Retain/Code.
// It is not safe for concurrent use; callers (the scheduler) serialize
// access with their own lock, per the concurrency model in the spec.
type Memory struct {
	buf     []byte
	regions []region
}

// Config carries the two configurable region sizes; zero values select the
// spec's defaults.
type Config struct {
	WorkSize   int
	RetainSize int
}

// New builds a Memory with the given configurable sizes. It returns an
// error if WorkSize+RetainSize would overflow the fixed gap between
// WorkBase and CodeBase.
func New(cfg Config) (*Memory, error) {
	workSize := cfg.WorkSize
	if workSize == 0 {
		workSize = DefaultWorkSize
	}
	retainSize := cfg.RetainSize
	if retainSize == 0 {
		retainSize = DefaultRetainSize
	}
	if workSize < 0 || retainSize < 0 || workSize+retainSize > workRetainSpan {
		return nil, fmt.Errorf("memory: work size %d + retain size %d exceeds available span %d", workSize, retainSize, workRetainSpan)
	}

	m := &Memory{
		buf: make([]byte, TotalSize),
		regions: []region{
			{name: RegionIPI, base: IPIBase, size: IPISize, write: true},
			{name: RegionOPI, base: OPIBase, size: OPISize, write: true},
			{name: RegionWork, base: WorkBase, size: workSize, write: true},
			{name: RegionRetain, base: RetainBase, size: retainSize, write: true},
			{name: RegionCode, base: CodeBase, size: CodeMax, write: false},
		},
	}
	return m, nil
}

// OutOfBoundsError reports an access whose byte range did not lie fully
// inside exactly one region.
type OutOfBoundsError struct {
	Addr  int
	Width int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("memory: address 0x%04X width %d out of bounds", e.Addr, e.Width)
}

// WriteForbiddenError reports a VM write targeting the read-only code
// segment.
type WriteForbiddenError struct {
	Addr int
}

func (e *WriteForbiddenError) Error() string {
	return fmt.Sprintf("memory: write to code segment at 0x%04X forbidden", e.Addr)
}

// resolve finds the single region fully containing [addr, addr+width) and
// reports whether it permits VM writes. It is the sole bounds-checking
// chokepoint; every accessor below goes through it.
func (m *Memory) resolve(addr, width int, forWrite bool) (*region, error) {
	if addr < 0 || width <= 0 {
		return nil, &OutOfBoundsError{Addr: addr, Width: width}
	}
	end := addr + width
	for i := range m.regions {
		r := &m.regions[i]
		if addr >= r.base && end <= r.base+r.size {
			if forWrite && !r.write {
				return nil, &WriteForbiddenError{Addr: addr}
			}
			return r, nil
		}
	}
	return nil, &OutOfBoundsError{Addr: addr, Width: width}
}

// RegionAt returns the name of the region containing addr, or RegionNone.
func (m *Memory) RegionAt(addr int) string {
	r, err := m.resolve(addr, 1, false)
	if err != nil {
		return RegionNone
	}
	return r.name
}

// --- unsigned integer accessors ---

func (m *Memory) ReadU8(addr int) (uint8, error) {
	if _, err := m.resolve(addr, 1, false); err != nil {
		return 0, err
	}
	return m.buf[addr], nil
}

func (m *Memory) WriteU8(addr int, v uint8) error {
	if _, err := m.resolve(addr, 1, true); err != nil {
		return err
	}
	m.buf[addr] = v
	return nil
}

func (m *Memory) ReadU16(addr int) (uint16, error) {
	if _, err := m.resolve(addr, 2, false); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[addr:]), nil
}

func (m *Memory) WriteU16(addr int, v uint16) error {
	if _, err := m.resolve(addr, 2, true); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[addr:], v)
	return nil
}

func (m *Memory) ReadU32(addr int) (uint32, error) {
	if _, err := m.resolve(addr, 4, false); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[addr:]), nil
}

func (m *Memory) WriteU32(addr int, v uint32) error {
	if _, err := m.resolve(addr, 4, true); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[addr:], v)
	return nil
}

func (m *Memory) ReadU64(addr int) (uint64, error) {
	if _, err := m.resolve(addr, 8, false); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[addr:]), nil
}

func (m *Memory) WriteU64(addr int, v uint64) error {
	if _, err := m.resolve(addr, 8, true); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[addr:], v)
	return nil
}

// --- float accessors ---

func (m *Memory) ReadF32(addr int) (float32, error) {
	bits, err := m.ReadU32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (m *Memory) WriteF32(addr int, v float32) error {
	return m.WriteU32(addr, math.Float32bits(v))
}

func (m *Memory) ReadF64(addr int) (float64, error) {
	bits, err := m.ReadU64(addr)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (m *Memory) WriteF64(addr int, v float64) error {
	return m.WriteU64(addr, math.Float64bits(v))
}

// --- raw segment access used by the loader and persistence ---

// WriteCode copies code directly into the code segment, bypassing the
// write-forbidden check (only the loader may call this).
func (m *Memory) WriteCode(data []byte) error {
	if len(data) > CodeMax {
		return fmt.Errorf("memory: code size %d exceeds code segment capacity %d", len(data), CodeMax)
	}
	copy(m.buf[CodeBase:CodeBase+CodeMax], make([]byte, CodeMax)) // clear stale code
	copy(m.buf[CodeBase:], data)
	return nil
}

// ReadCodeByte is the VM's instruction-fetch path: it never goes through
// resolve's write-permission branch, only bounds checks.
func (m *Memory) ReadCodeByte(addr int) (byte, error) {
	if addr < CodeBase || addr >= CodeBase+CodeMax {
		return 0, &OutOfBoundsError{Addr: addr, Width: 1}
	}
	return m.buf[addr], nil
}

// RetainSnapshot returns a copy of the retentive region's current bytes,
// sized to the configured RetainSize.
func (m *Memory) RetainSnapshot() []byte {
	for _, r := range m.regions {
		if r.name == RegionRetain {
			out := make([]byte, r.size)
			copy(out, m.buf[r.base:r.base+r.size])
			return out
		}
	}
	return nil
}

// RetainRestore overwrites the retentive region with snapshot, truncating
// or zero-padding to the configured RetainSize.
func (m *Memory) RetainRestore(snapshot []byte) {
	for _, r := range m.regions {
		if r.name != RegionRetain {
			continue
		}
		n := copy(m.buf[r.base:r.base+r.size], snapshot)
		for i := r.base + n; i < r.base+r.size; i++ {
			m.buf[i] = 0
		}
	}
}

// WriteIPIRaw lets the scheduler's input latch populate IPI bytes directly
// without going through the write-forbidden check (IPI is always
// writable, this just avoids an extra bounds round-trip for bulk copies).
func (m *Memory) WriteIPIRaw(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > IPISize {
		return &OutOfBoundsError{Addr: IPIBase + offset, Width: len(data)}
	}
	copy(m.buf[IPIBase+offset:], data)
	return nil
}

// ReadOPIRaw lets the scheduler's output latch read OPI bytes directly.
func (m *Memory) ReadOPIRaw(offset, length int) ([]byte, error) {
	if offset < 0 || offset+length > OPISize {
		return nil, &OutOfBoundsError{Addr: OPIBase + offset, Width: length}
	}
	out := make([]byte, length)
	copy(out, m.buf[OPIBase+offset:OPIBase+offset+length])
	return out, nil
}

// ZeroIPI clears IPI (used when an input-latch read fails, per the spec's
// HAL error handling: input-latch failures zero the corresponding bytes).
func (m *Memory) ZeroIPI(offset, length int) {
	if offset < 0 || offset+length > IPISize {
		length = IPISize - offset
	}
	if length <= 0 {
		return
	}
	clear(m.buf[IPIBase+offset : IPIBase+offset+length])
}

// SetSysRegs writes the four system registers the scheduler must refresh
// before handing control to the VM.
func (m *Memory) SetSysRegs(execTimeUs, uptimeMs uint32, taskID uint8, flags byte) {
	binary.LittleEndian.PutUint32(m.buf[SysRegExecTimeUs:], execTimeUs)
	binary.LittleEndian.PutUint32(m.buf[SysRegUptimeMs:], uptimeMs)
	m.buf[SysRegCurrentTask] = taskID
	m.buf[SysRegFlags] = flags
	clear(m.buf[sysRegReserved : SysRegBase+16])
}
