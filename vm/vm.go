// Package vm implements the stack-based bytecode interpreter: a ~75-opcode
// instruction set over an evaluation stack, call stack, program counter,
// and status flags, run in single-step, fixed-budget, or full-cycle modes.
package vm

import (
	"github.com/zplc/zplc-core/memory"
)

// Fixed capacities from the data model.
const (
	StackDepth     = 256
	CallStackDepth = 32
)

// Flags holds the VM's four status bits, updated by arithmetic, bitwise,
// and comparison instructions.
type Flags struct {
	Zero     bool
	Carry    bool
	Overflow bool
	Negative bool
}

// VM is the per-program state record described in the data model: program
// counter, evaluation stack pointer, base pointer, call-stack depth,
// status flags, last error, halted/paused booleans, breakpoint set, and
// the two fixed-size stack arrays.
type VM struct {
	Mem *memory.Memory

	PC        uint16
	SP        int // 0..StackDepth, number of live elements
	BP        int
	CallDepth int // 0..CallStackDepth, number of live return addresses
	Flags     Flags

	LastError Fault
	Halted    bool
	Paused    bool

	Breakpoints map[uint16]bool

	EvalStack [StackDepth]uint32
	CallStack [CallStackDepth]uint16

	EntryPoint uint16

	// Clock is the HAL's monotonic millisecond tick, injected by the host
	// that owns this VM (typically the scheduler). GET_TICKS calls it
	// exactly once. A nil Clock makes GET_TICKS push 0.
	Clock func() uint32

	Stats *Stats
}

// New creates a VM bound to mem with PC at entryPoint, not halted, ready
// for Step or Run.
func New(mem *memory.Memory, entryPoint uint16) *VM {
	return &VM{
		Mem:         mem,
		EntryPoint:  entryPoint,
		PC:          entryPoint,
		Breakpoints: make(map[uint16]bool),
	}
}

// Reset returns the VM to its post-load state: PC at EntryPoint, SP 0,
// call depth 0, not halted, LastError cleared. Breakpoints and injected
// Clock survive a reset.
func (v *VM) Reset() {
	v.PC = v.EntryPoint
	v.SP = 0
	v.BP = 0
	v.CallDepth = 0
	v.Flags = Flags{}
	v.LastError = FaultNone
	v.Halted = false
	v.Paused = false
}

func (v *VM) fault(f Fault) Status {
	v.LastError = f
	v.Halted = true
	return StatusFault
}

func (v *VM) push(val uint32) Status {
	if v.SP >= StackDepth {
		return v.fault(FaultStackOverflow)
	}
	v.EvalStack[v.SP] = val
	v.SP++
	return StatusContinue
}

// pop returns (value, status); status is StatusFault (and the VM has
// already been faulted) on underflow.
func (v *VM) pop() (uint32, Status) {
	if v.SP <= 0 {
		return 0, v.fault(FaultStackUnderflow)
	}
	v.SP--
	return v.EvalStack[v.SP], StatusContinue
}

// peek returns the n-th element from the top without popping (n=0 is TOS).
func (v *VM) peek(n int) (uint32, Status) {
	idx := v.SP - 1 - n
	if idx < 0 {
		return 0, v.fault(FaultStackUnderflow)
	}
	return v.EvalStack[idx], StatusContinue
}

func (v *VM) callPush(retAddr uint16) Status {
	if v.CallDepth >= CallStackDepth {
		return v.fault(FaultCallOverflow)
	}
	v.CallStack[v.CallDepth] = retAddr
	v.CallDepth++
	return StatusContinue
}

// callPop returns (addr, ok); ok is false when the call stack is already
// empty — per the spec this is NOT a fault, it is a clean halt (RET with
// nothing to return to ends the program).
func (v *VM) callPop() (uint16, bool) {
	if v.CallDepth <= 0 {
		return 0, false
	}
	v.CallDepth--
	return v.CallStack[v.CallDepth], true
}

func (v *VM) setNZ32(result int32) {
	v.Flags.Zero = result == 0
	v.Flags.Negative = result < 0
}

func (v *VM) tick() uint32 {
	if v.Clock == nil {
		return 0
	}
	return v.Clock()
}

// fetch reads the opcode and its operand (zero/sign handling left to the
// handler) at PC, returning the decoded Opcode, the raw little-endian
// operand value, and the address of the next instruction.
func (v *VM) fetch() (Opcode, uint32, uint16, Status) {
	b, err := v.Mem.ReadCodeByte(int(v.PC))
	if err != nil {
		return 0, 0, 0, v.fault(FaultOutOfBounds)
	}
	op := Opcode(b)
	width := OperandWidth(op)

	var operand uint32
	for i := 0; i < width; i++ {
		ob, err := v.Mem.ReadCodeByte(int(v.PC) + 1 + i)
		if err != nil {
			return 0, 0, 0, v.fault(FaultOutOfBounds)
		}
		operand |= uint32(ob) << (8 * i)
	}

	next := v.PC + uint16(InstructionLength(op))
	return op, operand, next, StatusContinue
}

// Step executes exactly one instruction and returns its outcome.
func (v *VM) Step() Status {
	if v.Halted {
		return StatusHalted
	}
	if v.Paused {
		return StatusPaused
	}

	op, operand, next, st := v.fetch()
	if st == StatusFault {
		return st
	}

	handler := opTable[op]
	if handler == nil {
		return v.fault(FaultInvalidOpcode)
	}

	// PC is advanced to the following instruction before the handler
	// runs, so control-flow handlers can simply overwrite v.PC.
	v.PC = next

	result := handler(v, operand)

	if v.Stats != nil {
		v.Stats.record(op, result, v.LastError)
	}

	if result == StatusContinue {
		if v.Breakpoints[v.PC] {
			v.Paused = true
			return StatusPaused
		}
	}
	return result
}

// Run executes at most budget instructions, stopping early on HALT,
// PAUSED, or any fault. It returns the number of instructions actually
// executed and the terminal status (StatusContinue if the budget was
// exhausted without halting, pausing, or faulting).
func (v *VM) Run(budget int) (int, Status) {
	executed := 0
	for executed < budget {
		st := v.Step()
		executed++
		switch st {
		case StatusHalted, StatusPaused, StatusFault:
			return executed, st
		}
	}
	return executed, StatusContinue
}

// RunCycle resets PC to EntryPoint, sets the first-scan condition if
// applicable (the caller — the scheduler — is responsible for reflecting
// first-scan into the IPI flags byte; RunCycle itself only runs code),
// and executes until HALT or budget exhaustion. Budget exhaustion is
// reported as FaultWatchdog rather than StatusContinue, since a cycle
// that does not finish is itself the fault.
func (v *VM) RunCycle(instructionBudget int) Status {
	v.PC = v.EntryPoint
	v.SP = 0
	v.BP = 0
	v.CallDepth = 0
	v.Halted = false
	v.Paused = false
	v.LastError = FaultNone

	_, st := v.Run(instructionBudget)
	if st == StatusContinue {
		return v.fault(FaultWatchdog)
	}
	return st
}

// AddBreakpoint arms a pause at pc.
func (v *VM) AddBreakpoint(pc uint16) {
	v.Breakpoints[pc] = true
}

// RemoveBreakpoint disarms a pause at pc.
func (v *VM) RemoveBreakpoint(pc uint16) {
	delete(v.Breakpoints, pc)
}

// Resume clears Paused so Step/Run can proceed again.
func (v *VM) Resume() {
	v.Paused = false
}

// StackValue returns the index-th element of the evaluation stack
// (0 = bottom), used by introspection and the debugger's stack view.
func (v *VM) StackValue(index int) (uint32, bool) {
	if index < 0 || index >= v.SP {
		return 0, false
	}
	return v.EvalStack[index], true
}
