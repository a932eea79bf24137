package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zplc/zplc-core/vm"
)

// TUI represents the text user interface for the debugger
type TUI struct {
	// Core components
	Debugger *Debugger
	App      *tview.Application
	Pages    *tview.Pages

	// Layout containers
	MainLayout *tview.Flex
	LeftPanel  *tview.Flex
	RightPanel *tview.Flex

	// View panels
	SourceView      *tview.TextView
	StateView       *tview.TextView
	MemoryView      *tview.TextView
	StackView       *tview.TextView
	DisassemblyView *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	// State
	MemoryAddress uint16
	Running       bool
}

// NewTUI creates a new text user interface
func NewTUI(debugger *Debugger) *TUI {
	tui := &TUI{
		Debugger:      debugger,
		App:           tview.NewApplication(),
		MemoryAddress: 0,
		Running:       false,
	}

	tui.initializeViews()
	tui.buildLayout()
	tui.setupKeyBindings()

	return tui
}

// NewTUIWithScreen creates a TUI bound to an explicit tcell screen, for
// headless testing with a tcell.SimulationScreen.
func NewTUIWithScreen(debugger *Debugger, screen tcell.Screen) *TUI {
	tui := NewTUI(debugger)
	tui.App.SetScreen(screen)
	return tui
}

// initializeViews creates all the view panels
func (t *TUI) initializeViews() {
	// Source/listing view
	t.SourceView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.SourceView.SetBorder(true).SetTitle(" Listing ")

	// State view (PC, SP, BP, CallDepth, Flags)
	t.StateView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	t.StateView.SetBorder(true).SetTitle(" State ")

	// Process-image memory view
	t.MemoryView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	// Evaluation stack view
	t.StackView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.StackView.SetBorder(true).SetTitle(" Eval Stack ")

	// Disassembly view
	t.DisassemblyView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.DisassemblyView.SetBorder(true).SetTitle(" Disassembly ")

	// Breakpoints/watchpoints view
	t.BreakpointsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints/Watchpoints ")

	// Output view
	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	// Command input
	t.CommandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

// buildLayout constructs the TUI layout
func (t *TUI) buildLayout() {
	// Left panel: listing and disassembly
	t.LeftPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.SourceView, 0, 3, false).
		AddItem(t.DisassemblyView, 0, 2, false)

	// Right panel top: state, memory, stack
	rightTop := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.StateView, StateViewRows, 0, false).
		AddItem(t.MemoryView, 0, 1, false).
		AddItem(t.StackView, 0, 1, false)

	// Right panel: top + breakpoints
	t.RightPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(rightTop, 0, 3, false).
		AddItem(t.BreakpointsView, BreakpointsViewRows, 0, false)

	// Main content: left and right panels
	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.LeftPanel, 0, 2, false).
		AddItem(t.RightPanel, 0, 1, false)

	// Main layout: content + output + command
	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, 8, 0, false).
		AddItem(t.CommandInput, 3, 0, true)

	t.Pages = tview.NewPages().
		AddPage("main", t.MainLayout, true, true)
}

// setupKeyBindings sets up keyboard shortcuts
func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			t.executeCommand("help")
			return nil
		case tcell.KeyF5:
			t.executeCommand("continue")
			return nil
		case tcell.KeyF9:
			t.executeCommand("break")
			return nil
		case tcell.KeyF10:
			t.executeCommand("next")
			return nil
		case tcell.KeyF11:
			t.executeCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

// handleCommand processes command input
func (t *TUI) handleCommand(key tcell.Key) {
	if key == tcell.KeyEnter {
		cmd := t.CommandInput.GetText()
		if cmd != "" {
			t.executeCommand(cmd)
			t.CommandInput.SetText("")
		}
	}
}

// executeCommand executes a debugger command
func (t *TUI) executeCommand(cmd string) {
	t.Debugger.Output.Reset()

	err := t.Debugger.ExecuteCommand(cmd)

	output := t.Debugger.GetOutput()

	if err != nil {
		t.WriteOutput(fmt.Sprintf("[red]Error:[white] %v\n", err))
	}
	if output != "" {
		t.WriteOutput(output)
	}

	t.RefreshAll()
}

// WriteOutput writes to the output view
func (t *TUI) WriteOutput(text string) {
	_, _ = t.OutputView.Write([]byte(text)) // Ignore write errors in TUI
	t.OutputView.ScrollToEnd()
}

// RefreshAll refreshes all view panels
func (t *TUI) RefreshAll() {
	t.UpdateSourceView()
	t.UpdateStateView()
	t.UpdateMemoryView()
	t.UpdateStackView()
	t.UpdateDisassemblyView()
	t.UpdateBreakpointsView()
	t.App.Draw()
}

// UpdateSourceView updates the listing view
func (t *TUI) UpdateSourceView() {
	t.SourceView.Clear()

	if len(t.Debugger.SourceMap) == 0 {
		t.SourceView.SetText("[yellow]No listing available[white]")
		return
	}

	pc := t.Debugger.VM.PC

	var startAddr uint16
	if pc > ListingLinesBefore {
		startAddr = pc - ListingLinesBefore
	}

	var lines []string
	for addr := startAddr; addr < pc+ListingLinesAfter; addr++ {
		sourceLine, exists := t.Debugger.SourceMap[addr]
		if !exists {
			continue
		}

		marker := "  "
		color := "white"
		if addr == pc {
			marker = "->"
			color = "yellow"
		}
		if t.Debugger.Breakpoints.GetBreakpoint(addr) != nil {
			marker = "* "
		}

		lines = append(lines, fmt.Sprintf("[%s]%s 0x%04X: %s[white]", color, marker, addr, sourceLine))
	}

	t.SourceView.SetText(strings.Join(lines, "\n"))
}

// UpdateStateView updates the PC/SP/BP/CallDepth/Flags view
func (t *TUI) UpdateStateView() {
	t.StateView.Clear()

	machine := t.Debugger.VM
	var lines []string

	lines = append(lines, fmt.Sprintf("PC: 0x%04X   SP: %-4d  BP: %-4d", machine.PC, machine.SP, machine.BP))
	lines = append(lines, fmt.Sprintf("CallDepth: %d", machine.CallDepth))

	f := machine.Flags
	flagChar := func(set bool, letter string) string {
		if set {
			return "[green]" + letter + "[white]"
		}
		return strings.ToLower(letter)
	}
	lines = append(lines, fmt.Sprintf("Flags: %s%s%s%s",
		flagChar(f.Zero, "Z"), flagChar(f.Carry, "C"), flagChar(f.Overflow, "O"), flagChar(f.Negative, "N")))

	status := "running"
	if machine.Halted {
		status = "halted"
	} else if machine.Paused {
		status = "paused"
	}
	lines = append(lines, fmt.Sprintf("Status: %s  LastError: %s", status, machine.LastError))

	t.StateView.SetText(strings.Join(lines, "\n"))
}

// UpdateMemoryView updates the process-image memory view
func (t *TUI) UpdateMemoryView() {
	t.MemoryView.Clear()

	addr := t.MemoryAddress
	if addr == 0 {
		addr = t.Debugger.VM.PC
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]Address: 0x%04X[white]", addr))

	for row := 0; row < MemoryDisplayRows; row++ {
		rowAddr := int(addr) + row*MemoryDisplayBytesPerRow

		line := fmt.Sprintf("0x%04X: ", rowAddr)

		var hexBytes []string
		var asciiBytes []byte

		for col := 0; col < MemoryDisplayBytesPerRow; col++ {
			b, err := t.Debugger.VM.Mem.ReadU8(rowAddr + col)
			if err != nil {
				hexBytes = append(hexBytes, "??")
				asciiBytes = append(asciiBytes, '.')
				continue
			}
			hexBytes = append(hexBytes, fmt.Sprintf("%02X", b))
			if b >= 32 && b < 127 {
				asciiBytes = append(asciiBytes, b)
			} else {
				asciiBytes = append(asciiBytes, '.')
			}
		}

		line += strings.Join(hexBytes, " ") + "  " + string(asciiBytes)
		lines = append(lines, line)
	}

	t.MemoryView.SetText(strings.Join(lines, "\n"))
}

// UpdateStackView updates the evaluation stack view
func (t *TUI) UpdateStackView() {
	t.StackView.Clear()

	machine := t.Debugger.VM
	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]SP: %d[white]", machine.SP))

	for i := machine.SP - 1; i >= 0 && i >= machine.SP-StackDisplayDepth; i-- {
		value, _ := machine.StackValue(i)

		marker := "  "
		if i == machine.SP-1 {
			marker = "->"
		}

		lines = append(lines, fmt.Sprintf("%s [%d]: 0x%08X", marker, i, value))
	}

	t.StackView.SetText(strings.Join(lines, "\n"))
}

// UpdateDisassemblyView updates the disassembly view
func (t *TUI) UpdateDisassemblyView() {
	t.DisassemblyView.Clear()

	machine := t.Debugger.VM
	pc := machine.PC

	var startAddr uint16
	if pc > DisassemblyLinesBefore {
		startAddr = pc - DisassemblyLinesBefore
	}

	var lines []string
	addr := startAddr
	for i := 0; i < DisassemblyLinesShown && int(addr) < memorySize(machine); i++ {
		opByte, err := machine.Mem.ReadCodeByte(int(addr))
		if err != nil {
			break
		}
		op := vm.Opcode(opByte)
		width := vm.OperandWidth(op)

		marker := "  "
		color := "white"
		if addr == pc {
			marker = "->"
			color = "yellow"
		}
		if t.Debugger.Breakpoints.GetBreakpoint(addr) != nil {
			marker = "* "
		}

		line := fmt.Sprintf("[%s]%s 0x%04X: %s[white]", color, marker, addr, op.Name())
		if sym := t.findSymbolForAddress(addr); sym != "" {
			line = fmt.Sprintf("[%s]%s 0x%04X: %s  <%s>[white]", color, marker, addr, op.Name(), sym)
		}
		lines = append(lines, line)

		addr += uint16(vm.InstructionLength(op))
		_ = width
	}

	t.DisassemblyView.SetText(strings.Join(lines, "\n"))
}

func memorySize(machine *vm.VM) int {
	// An instruction-length upper bound for the disassembly loop; any
	// ReadCodeByte past the end of the code segment fails and stops the
	// loop, so this just needs to be large enough not to cut it short.
	return 1 << 16
}

// UpdateBreakpointsView updates the breakpoints and watchpoints view
func (t *TUI) UpdateBreakpointsView() {
	t.BreakpointsView.Clear()

	var lines []string

	bps := t.Debugger.Breakpoints.GetAllBreakpoints()
	if len(bps) > 0 {
		lines = append(lines, "[yellow]Breakpoints:[white]")
		for _, bp := range bps {
			status := "enabled"
			color := "green"
			if !bp.Enabled {
				status = "disabled"
				color = "red"
			}

			line := fmt.Sprintf("  %d: [%s]%s[white] 0x%04X", bp.ID, color, status, bp.Address)

			if sym := t.findSymbolForAddress(bp.Address); sym != "" {
				line += fmt.Sprintf(" <%s>", sym)
			}
			if bp.Condition != "" {
				line += fmt.Sprintf(" if %s", bp.Condition)
			}
			line += fmt.Sprintf(" (hits: %d)", bp.HitCount)

			lines = append(lines, line)
		}
	} else {
		lines = append(lines, "[yellow]No breakpoints set[white]")
	}

	lines = append(lines, "")

	wps := t.Debugger.Watchpoints.GetAllWatchpoints()
	if len(wps) > 0 {
		lines = append(lines, "[yellow]Watchpoints:[white]")
		for _, wp := range wps {
			typeStr := "watch"
			if wp.Type == WatchRead {
				typeStr = "rwatch"
			} else if wp.Type == WatchReadWrite {
				typeStr = "awatch"
			}

			line := fmt.Sprintf("  %d: %s %s = 0x%08X", wp.ID, typeStr, wp.Expression, wp.LastValue)
			lines = append(lines, line)
		}
	}

	t.BreakpointsView.SetText(strings.Join(lines, "\n"))
}

// findSymbolForAddress finds a tag/label name for an address
func (t *TUI) findSymbolForAddress(addr uint16) string {
	for sym, symAddr := range t.Debugger.Symbols {
		if symAddr == addr {
			return sym
		}
	}
	return ""
}

// Run starts the TUI application
func (t *TUI) Run() error {
	t.RefreshAll()

	t.WriteOutput("[green]zplc debugger[white]\n")
	t.WriteOutput("Press F1 for help, F5 to continue, F10 to step over, F11 to step\n")
	t.WriteOutput("Type 'help' for command list\n\n")

	return t.App.SetRoot(t.Pages, true).SetFocus(t.CommandInput).Run()
}

// Stop stops the TUI application
func (t *TUI) Stop() {
	t.App.Stop()
}
