// Package debugger implements the interactive PC/memory/tag-level
// debugger described in spec.md: breakpoints and watchpoints over the
// process image, a small expression evaluator for conditions and the
// print/set commands, a gdb-style command dispatcher, and a tview-based
// text UI on top of it.
package debugger

import (
	"fmt"
	"strings"

	"github.com/zplc/zplc-core/vm"
)

// Debugger represents the debugger state and functionality, wrapping a
// single task's VM instance.
type Debugger struct {
	VM *vm.VM

	// Breakpoint management
	Breakpoints *BreakpointManager

	// Watchpoint management
	Watchpoints *WatchpointManager

	// Command history
	History *CommandHistory

	// Expression evaluator
	Evaluator *ExpressionEvaluator

	// Execution control
	Running           bool
	StepMode          StepMode
	StepOverCallDepth int    // Call depth captured when a step-over begins
	StepOverPC        uint16 // PC to stop at after step over

	// Symbol table: tag names and loader labels resolved to addresses
	Symbols map[string]uint16

	// Source/listing map: address -> a human-readable line (e.g. the
	// decoded mnemonic, or a line from a debug-map segment)
	SourceMap map[uint16]string

	// Last command (for repeat on empty input)
	LastCommand string

	// Output buffer
	Output strings.Builder
}

// StepMode represents different stepping modes
type StepMode int

const (
	StepNone   StepMode = iota // Not stepping
	StepSingle                 // Step one instruction
	StepOver                   // Step over CALL instructions
	StepOut                    // Step out of the current call
)

// NewDebugger creates a new debugger instance with the default command
// history capacity. Use NewDebuggerWithHistorySize to bound it to a
// host's configured debug.history_size.
func NewDebugger(machine *vm.VM) *Debugger {
	return NewDebuggerWithHistorySize(machine, DefaultHistorySize)
}

// NewDebuggerWithHistorySize creates a debugger instance whose command
// history holds at most historySize entries (<= 0 selects the default).
func NewDebuggerWithHistorySize(machine *vm.VM, historySize int) *Debugger {
	return &Debugger{
		VM:          machine,
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		History:     NewCommandHistory(historySize),
		Evaluator:   NewExpressionEvaluator(),
		Running:     false,
		StepMode:    StepNone,
		Symbols:     make(map[string]uint16),
		SourceMap:   make(map[uint16]string),
	}
}

// LoadSymbols loads the symbol table for tag/label resolution
func (d *Debugger) LoadSymbols(symbols map[string]uint16) {
	d.Symbols = symbols
}

// LoadSourceMap loads the address -> listing-line mapping
func (d *Debugger) LoadSourceMap(sourceMap map[uint16]string) {
	d.SourceMap = sourceMap
}

// ResolveAddress resolves a tag/label to an address, or parses a numeric address
func (d *Debugger) ResolveAddress(addrStr string) (uint16, error) {
	// Try to resolve as symbol first
	if addr, exists := d.Symbols[addrStr]; exists {
		return addr, nil
	}

	// Try to parse as numeric address
	var addr uint32
	if strings.HasPrefix(addrStr, "0x") || strings.HasPrefix(addrStr, "0X") {
		_, err := fmt.Sscanf(addrStr, "0x%x", &addr)
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
	} else {
		_, err := fmt.Sscanf(addrStr, "%d", &addr)
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
	}

	return uint16(addr), nil
}

// ExecuteCommand processes and executes a debugger command
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	// Trim whitespace
	cmdLine = strings.TrimSpace(cmdLine)

	// Empty command repeats last command (for step, next, etc.)
	if cmdLine == "" {
		cmdLine = d.LastCommand
	}

	// Don't store empty commands
	if cmdLine != "" {
		d.History.Add(cmdLine)
		d.LastCommand = cmdLine
	}

	// Parse command
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	// gdb-style "x/8xw addr": pass the "/8xw" suffix to x as its first argument
	if strings.HasPrefix(cmd, "x/") {
		args = append([]string{parts[0][1:]}, args...)
		cmd = "x"
	}

	// Execute command
	return d.handleCommand(cmd, args)
}

// handleCommand dispatches commands to appropriate handlers
func (d *Debugger) handleCommand(cmd string, args []string) error {
	switch cmd {
	// Execution control
	case "run", "r":
		return d.cmdRun(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "step", "s", "si":
		return d.cmdStep(args)
	case "next", "n":
		return d.cmdNext(args)
	case "finish", "fin":
		return d.cmdFinish(args)

	// Breakpoints
	case "break", "b":
		return d.cmdBreak(args)
	case "tbreak", "tb":
		return d.cmdTBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnable(args)
	case "disable":
		return d.cmdDisable(args)

	// Watchpoints
	case "watch", "w":
		return d.cmdWatch(args)
	case "rwatch":
		return d.cmdRWatch(args)
	case "awatch":
		return d.cmdAWatch(args)

	// Inspection
	case "print", "p":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "backtrace", "bt", "where":
		return d.cmdBacktrace(args)
	case "list", "l":
		return d.cmdList(args)

	// State modification
	case "set":
		return d.cmdSet(args)

	// Program control
	case "load":
		return d.cmdLoad(args)
	case "reset":
		return d.cmdReset(args)

	// Help
	case "help", "h", "?":
		return d.cmdHelp(args)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// ShouldBreak checks if execution should pause at the current PC
func (d *Debugger) ShouldBreak() (bool, string) {
	pc := d.VM.PC

	// Check step mode
	switch d.StepMode {
	case StepSingle:
		d.StepMode = StepNone
		return true, "single step"

	case StepOver:
		// Continue until we return to the same call depth
		if pc == d.StepOverPC && d.VM.CallDepth <= d.StepOverCallDepth {
			d.StepMode = StepNone
			return true, "step over complete"
		}

	case StepOut:
		if d.VM.CallDepth < d.StepOverCallDepth {
			d.StepMode = StepNone
			return true, "step out complete"
		}
	}

	// Check breakpoints
	if bp := d.Breakpoints.GetBreakpoint(pc); bp != nil {
		if !bp.Enabled {
			return false, ""
		}

		// Evaluate condition if present
		if bp.Condition != "" {
			result, err := d.Evaluator.Evaluate(bp.Condition, d.VM, d.Symbols)
			if err != nil {
				return true, fmt.Sprintf("breakpoint %d (condition error: %v)", bp.ID, err)
			}
			if !result {
				return false, ""
			}
		}

		// Increment hit count
		bp.HitCount++

		// Check if temporary breakpoint
		if bp.Temporary {
			d.VM.RemoveBreakpoint(bp.Address)
			_ = d.Breakpoints.DeleteBreakpoint(bp.ID) // Ignore error on cleanup
		}

		return true, fmt.Sprintf("breakpoint %d", bp.ID)
	}

	// Check watchpoints
	if wp, changed := d.Watchpoints.CheckWatchpoints(d.VM); wp != nil && changed {
		return true, fmt.Sprintf("watchpoint %d: %s", wp.ID, wp.Expression)
	}

	return false, ""
}

// GetOutput returns and clears the output buffer
func (d *Debugger) GetOutput() string {
	output := d.Output.String()
	d.Output.Reset()
	return output
}

// Printf writes formatted output to the output buffer
func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

// Println writes a line to the output buffer
func (d *Debugger) Println(args ...interface{}) {
	d.Output.WriteString(fmt.Sprintln(args...))
}

// SetStepOver configures the debugger to step over a CALL instruction at
// the current PC, or falls back to a single step if the instruction
// can't be read or isn't a CALL.
func (d *Debugger) SetStepOver() {
	op, err := d.VM.Mem.ReadCodeByte(int(d.VM.PC))
	if err != nil {
		d.StepMode = StepSingle
		d.Running = true
		return
	}

	if vm.Opcode(op) == vm.CALL {
		d.StepOverCallDepth = d.VM.CallDepth
		d.StepOverPC = d.VM.PC + uint16(vm.InstructionLength(vm.CALL))
		d.StepMode = StepOver
		d.Running = true
	} else {
		d.StepMode = StepSingle
		d.Running = true
	}
}

// SetStepOut configures the debugger to step out of the current call.
func (d *Debugger) SetStepOut() {
	d.StepOverCallDepth = d.VM.CallDepth
	d.StepMode = StepOut
	d.Running = true
}
