package debugger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command handler implementations

// cmdRun resets the VM to its entry point and starts execution.
func (d *Debugger) cmdRun(args []string) error {
	d.VM.Reset()
	d.Running = true
	d.StepMode = StepNone

	d.Println("Starting scan from entry point...")
	return nil
}

// cmdContinue continues execution from the current point
func (d *Debugger) cmdContinue(args []string) error {
	if d.VM.Halted {
		return fmt.Errorf("program is not running")
	}

	d.VM.Resume()
	d.Running = true
	d.StepMode = StepNone

	d.Println("Continuing...")
	return nil
}

// cmdStep executes a single instruction
func (d *Debugger) cmdStep(args []string) error {
	d.StepMode = StepSingle
	d.Running = true
	return nil
}

// cmdNext steps over CALL instructions (step to next instruction at the same call depth)
func (d *Debugger) cmdNext(args []string) error {
	d.SetStepOver()
	return nil
}

// cmdFinish steps out of the current call
func (d *Debugger) cmdFinish(args []string) error {
	d.SetStepOut()
	return nil
}

// cmdBreak sets a breakpoint
func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <address|tag> [if <condition>]")
	}

	// Parse address/tag
	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	// Parse condition if present
	var condition string
	if len(args) > 1 && strings.ToLower(args[1]) == "if" {
		condition = strings.Join(args[2:], " ")
	}

	// Add breakpoint
	bp := d.Breakpoints.AddBreakpoint(address, false, condition)
	d.VM.AddBreakpoint(address)

	if condition != "" {
		d.Printf("Breakpoint %d at 0x%04X (condition: %s)\n", bp.ID, address, condition)
	} else {
		d.Printf("Breakpoint %d at 0x%04X\n", bp.ID, address)
	}

	return nil
}

// cmdTBreak sets a temporary breakpoint (auto-delete after hit)
func (d *Debugger) cmdTBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbreak <address|tag>")
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, true, "")
	d.VM.AddBreakpoint(address)
	d.Printf("Temporary breakpoint %d at 0x%04X\n", bp.ID, address)

	return nil
}

// cmdDelete deletes breakpoint(s)
func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		// Delete all breakpoints
		for _, bp := range d.Breakpoints.GetAllBreakpoints() {
			d.VM.RemoveBreakpoint(bp.Address)
		}
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}

	// Delete specific breakpoint
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	bp := d.Breakpoints.GetBreakpointByID(id)
	if bp == nil {
		return fmt.Errorf("breakpoint %d not found", id)
	}
	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}
	d.VM.RemoveBreakpoint(bp.Address)

	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

// cmdEnable enables breakpoint(s)
func (d *Debugger) cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.EnableBreakpoint(id); err != nil {
		return err
	}
	if bp := d.Breakpoints.GetBreakpointByID(id); bp != nil {
		d.VM.AddBreakpoint(bp.Address)
	}

	d.Printf("Breakpoint %d enabled\n", id)
	return nil
}

// cmdDisable disables breakpoint(s)
func (d *Debugger) cmdDisable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: disable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DisableBreakpoint(id); err != nil {
		return err
	}
	if bp := d.Breakpoints.GetBreakpointByID(id); bp != nil {
		d.VM.RemoveBreakpoint(bp.Address)
	}

	d.Printf("Breakpoint %d disabled\n", id)
	return nil
}

// cmdWatch sets a write watchpoint
func (d *Debugger) cmdWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <expression>")
	}
	return d.addWatch(args, WatchWrite, "Watchpoint")
}

// cmdRWatch sets a read watchpoint
func (d *Debugger) cmdRWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rwatch <expression>")
	}
	return d.addWatch(args, WatchRead, "Read watchpoint")
}

// cmdAWatch sets a read/write watchpoint
func (d *Debugger) cmdAWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: awatch <expression>")
	}
	return d.addWatch(args, WatchReadWrite, "Access watchpoint")
}

func (d *Debugger) addWatch(args []string, wpType WatchType, label string) error {
	expression := strings.Join(args, " ")
	isPseudo, pseudo, address, err := d.parseWatchExpression(expression)
	if err != nil {
		return err
	}

	wp := d.Watchpoints.AddWatchpoint(wpType, expression, address, isPseudo, pseudo)

	if err := d.Watchpoints.InitializeWatchpoint(wp.ID, d.VM); err != nil {
		_ = d.Watchpoints.DeleteWatchpoint(wp.ID)
		return err
	}

	d.Printf("%s %d: %s\n", label, wp.ID, expression)
	return nil
}

// parseWatchExpression parses a watch expression (pseudo-register or memory address)
func (d *Debugger) parseWatchExpression(expr string) (isPseudo bool, pseudo string, address uint16, err error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	switch expr {
	case "pc", "sp", "bp", "calldepth", "flags":
		return true, expr, 0, nil
	}

	// Check if it's a memory address in brackets [0x1000] or [tag]
	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		addrStr := strings.TrimSuffix(strings.TrimPrefix(expr, "["), "]")
		addr, err := d.ResolveAddress(addrStr)
		if err != nil {
			return false, "", 0, err
		}
		return false, "", addr, nil
	}

	// Try to resolve as address or tag
	addr, err := d.ResolveAddress(expr)
	if err != nil {
		return false, "", 0, fmt.Errorf("invalid watch expression: %s", expr)
	}

	return false, "", addr, nil
}

// cmdPrint evaluates and prints an expression
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <expression>")
	}

	expression := strings.Join(args, " ")
	result, err := d.Evaluator.EvaluateExpression(expression, d.VM, d.Symbols)
	if err != nil {
		return err
	}

	if result > uint32(math.MaxInt32) {
		d.Printf("$%d = 0x%08X (out of int32 range: %d)\n", d.Evaluator.GetValueNumber(), result, result)
	} else {
		d.Printf("$%d = 0x%08X (%d)\n", d.Evaluator.GetValueNumber(), result, int32(result))
	}
	return nil
}

// cmdExamine examines process-image memory at an address
func (d *Debugger) cmdExamine(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: x[/nfu] <address>\n  n: count, f: format (x/d/u/o/t), u: unit size (b/h/w)")
	}

	// Parse format specifier (e.g., "x/8xw")
	count := 1
	format := 'x'
	unit := 'w'
	addrArg := args[0]

	if strings.HasPrefix(args[0], "/") {
		formatStr := args[0][1:]
		if len(args) < 2 {
			return fmt.Errorf("missing address")
		}
		addrArg = args[1]

		// Parse count
		i := 0
		for i < len(formatStr) && formatStr[i] >= '0' && formatStr[i] <= '9' {
			i++
		}
		if i > 0 {
			if n, err := strconv.Atoi(formatStr[:i]); err == nil {
				count = n
			}
			formatStr = formatStr[i:]
		}

		// Parse format character
		if len(formatStr) > 0 {
			format = rune(formatStr[0])
			formatStr = formatStr[1:]
		}

		// Parse unit size
		if len(formatStr) > 0 {
			unit = rune(formatStr[0])
		}
	}

	address, err := d.ResolveAddress(addrArg)
	if err != nil {
		return err
	}
	addr := int(address)

	d.Printf("0x%04X:", addr)
	for i := 0; i < count; i++ {
		var value uint32
		var readErr error

		switch unit {
		case 'b':
			var v8 uint8
			v8, readErr = d.VM.Mem.ReadU8(addr)
			value = uint32(v8)
			addr++
		case 'h':
			var v16 uint16
			v16, readErr = d.VM.Mem.ReadU16(addr)
			value = uint32(v16)
			addr += 2
		default: // 'w' - word
			value, readErr = d.VM.Mem.ReadU32(addr)
			addr += 4
		}

		if readErr != nil {
			return readErr
		}

		switch format {
		case 'x':
			d.Printf(" 0x%08X", value)
		case 'd':
			d.Printf(" %d", int32(value))
		case 'u':
			d.Printf(" %d", value)
		case 'o':
			d.Printf(" %o", value)
		case 't':
			d.Printf(" %b", value)
		default:
			d.Printf(" 0x%08X", value)
		}
	}
	d.Println()

	return nil
}

// cmdInfo displays information about program state
func (d *Debugger) cmdInfo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: info <state|breakpoints|watchpoints|stack>")
	}

	switch strings.ToLower(args[0]) {
	case "state", "registers", "reg", "r":
		return d.showState()
	case "breakpoints", "break", "b":
		return d.showBreakpoints()
	case "watchpoints", "watch", "w":
		return d.showWatchpoints()
	case "stack", "s":
		return d.showStack()
	default:
		return fmt.Errorf("unknown info command: %s", args[0])
	}
}

// showState displays the VM's PC, stack pointers, call depth, and flags
func (d *Debugger) showState() error {
	d.Println("State:")
	d.Printf("  PC        = 0x%04X\n", d.VM.PC)
	d.Printf("  SP        = %d\n", d.VM.SP)
	d.Printf("  BP        = %d\n", d.VM.BP)
	d.Printf("  CallDepth = %d\n", d.VM.CallDepth)

	f := d.VM.Flags
	flags := ""
	if f.Zero {
		flags += "Z"
	} else {
		flags += "-"
	}
	if f.Carry {
		flags += "C"
	} else {
		flags += "-"
	}
	if f.Overflow {
		flags += "O"
	} else {
		flags += "-"
	}
	if f.Negative {
		flags += "N"
	} else {
		flags += "-"
	}
	d.Printf("  Flags     = [%s]\n", flags)
	d.Printf("  Halted=%v Paused=%v LastError=%s\n", d.VM.Halted, d.VM.Paused, d.VM.LastError)

	return nil
}

// showBreakpoints displays all breakpoints
func (d *Debugger) showBreakpoints() error {
	breakpoints := d.Breakpoints.GetAllBreakpoints()
	if len(breakpoints) == 0 {
		d.Println("No breakpoints")
		return nil
	}

	d.Println("Breakpoints:")
	for _, bp := range breakpoints {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}

		temp := ""
		if bp.Temporary {
			temp = " (temporary)"
		}

		condition := ""
		if bp.Condition != "" {
			condition = fmt.Sprintf(" if %s", bp.Condition)
		}

		d.Printf("  %d: 0x%04X %s%s%s (hit %d times)\n",
			bp.ID, bp.Address, status, temp, condition, bp.HitCount)
	}

	return nil
}

// showWatchpoints displays all watchpoints
func (d *Debugger) showWatchpoints() error {
	watchpoints := d.Watchpoints.GetAllWatchpoints()
	if len(watchpoints) == 0 {
		d.Println("No watchpoints")
		return nil
	}

	d.Println("Watchpoints:")
	for _, wp := range watchpoints {
		status := "enabled"
		if !wp.Enabled {
			status = "disabled"
		}

		wpType := "write"
		if wp.Type == WatchRead {
			wpType = "read"
		} else if wp.Type == WatchReadWrite {
			wpType = "access"
		}

		d.Printf("  %d: %s %s %s (hit %d times, last value: 0x%08X)\n",
			wp.ID, wp.Expression, wpType, status, wp.HitCount, wp.LastValue)
	}

	return nil
}

// showStack displays the evaluation stack
func (d *Debugger) showStack() error {
	d.Printf("Evaluation stack (SP = %d):\n", d.VM.SP)

	for i := d.VM.SP - 1; i >= 0; i-- {
		value, _ := d.VM.StackValue(i)
		marker := "  "
		if i == d.VM.SP-1 {
			marker = "->"
		}
		d.Printf("  %s [%d]: 0x%08X (%d)\n", marker, i, value, int32(value))
	}

	return nil
}

// cmdBacktrace shows the call stack
func (d *Debugger) cmdBacktrace(args []string) error {
	d.Println("Call stack:")
	d.Printf("  #0  PC=0x%04X\n", d.VM.PC)

	for i := d.VM.CallDepth - 1; i >= 0; i-- {
		d.Printf("  #%d  return=0x%04X\n", d.VM.CallDepth-i, d.VM.CallStack[i])
	}

	return nil
}

// cmdList shows the listing around the current PC
func (d *Debugger) cmdList(args []string) error {
	pc := d.VM.PC

	if source, exists := d.SourceMap[pc]; exists {
		d.Printf("=> 0x%04X: %s\n", pc, source)
	} else {
		d.Printf("=> 0x%04X: <no listing>\n", pc)
	}

	for offset := uint16(1); offset <= 8; offset++ {
		addr := pc + offset
		if source, exists := d.SourceMap[addr]; exists {
			d.Printf("   0x%04X: %s\n", addr, source)
		}
	}

	return nil
}

// cmdSet modifies a pseudo-register or memory value
func (d *Debugger) cmdSet(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: set <pc|sp|bp|*address> = <value>")
	}

	if args[1] != "=" {
		return fmt.Errorf("usage: set <pc|sp|bp|*address> = <value>")
	}

	target := strings.ToLower(args[0])
	valueStr := args[2]

	value, err := d.Evaluator.EvaluateExpression(valueStr, d.VM, d.Symbols)
	if err != nil {
		return err
	}

	// Check if memory dereference
	if strings.HasPrefix(target, "*") {
		addrStr := target[1:]
		address, err := d.ResolveAddress(addrStr)
		if err != nil {
			return err
		}

		if err := d.VM.Mem.WriteU32(int(address), value); err != nil {
			return err
		}

		d.Printf("Memory 0x%04X set to 0x%08X\n", address, value)
		return nil
	}

	switch target {
	case "pc":
		d.VM.PC = uint16(value)
	case "sp":
		d.VM.SP = int(value)
	case "bp":
		d.VM.BP = int(value)
	default:
		return fmt.Errorf("invalid target: %s", target)
	}

	d.Printf("%s set to 0x%08X\n", target, value)
	return nil
}

// cmdLoad loads a compiled program into the VM's memory
func (d *Debugger) cmdLoad(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: load <filename>")
	}

	d.Printf("Load command delegates to the host's loader for file: %s\n", args[0])
	return nil
}

// cmdReset resets the VM
func (d *Debugger) cmdReset(args []string) error {
	d.VM.Reset()
	d.Println("VM reset")
	return nil
}

// cmdHelp displays help information
func (d *Debugger) cmdHelp(args []string) error {
	if len(args) > 0 {
		return d.showCommandHelp(args[0])
	}

	d.Println("Debugger Commands:")
	d.Println()
	d.Println("Execution Control:")
	d.Println("  run (r)           - Reset and start execution")
	d.Println("  continue (c)      - Continue execution")
	d.Println("  step (s, si)      - Execute single instruction")
	d.Println("  next (n)          - Step over CALL instructions")
	d.Println("  finish (fin)      - Step out of the current call")
	d.Println()
	d.Println("Breakpoints:")
	d.Println("  break (b) <addr>  - Set breakpoint")
	d.Println("  tbreak (tb) <addr>- Set temporary breakpoint")
	d.Println("  delete (d) [id]   - Delete breakpoint(s)")
	d.Println("  enable <id>       - Enable breakpoint")
	d.Println("  disable <id>      - Disable breakpoint")
	d.Println()
	d.Println("Watchpoints:")
	d.Println("  watch (w) <expr>  - Watch for writes")
	d.Println("  rwatch <expr>     - Watch for reads")
	d.Println("  awatch <expr>     - Watch for access")
	d.Println()
	d.Println("Inspection:")
	d.Println("  print (p) <expr>  - Evaluate expression")
	d.Println("  x[/nfu] <addr>    - Examine memory")
	d.Println("  info (i) <what>   - Show information")
	d.Println("  backtrace (bt)    - Show call stack")
	d.Println("  list (l)          - List source/listing")
	d.Println()
	d.Println("Modification:")
	d.Println("  set <var> = <val> - Modify pc/sp/bp/memory")
	d.Println()
	d.Println("Control:")
	d.Println("  reset             - Reset VM")
	d.Println("  help (h, ?)       - Show this help")
	d.Println()
	d.Println("Type 'help <command>' for detailed help on a specific command.")

	return nil
}

// showCommandHelp shows detailed help for a specific command
func (d *Debugger) showCommandHelp(cmd string) error {
	helpText := map[string]string{
		"break": "break <address|tag> [if <condition>]\n  Set a breakpoint at the specified address or tag.\n  Optional condition will be evaluated each time.",
		"step":  "step\n  Execute a single instruction.",
		"next":  "next\n  Step over CALL instructions (execute until the next instruction at the same call depth).",
		"print": "print <expression>\n  Evaluate and print an expression.\n  Expressions can include pseudo-registers, memory, tags, and arithmetic.",
		"x":     "x[/nfu] <address>\n  Examine memory.\n  n: count, f: format (x/d/u/o/t), u: unit (b/h/w)",
		"info":  "info <state|breakpoints|watchpoints|stack>\n  Display information about program state.",
	}

	if help, exists := helpText[cmd]; exists {
		d.Println(help)
		return nil
	}

	return fmt.Errorf("no help available for command: %s", cmd)
}
