package debugger

// TUI Display Update Constants
const (
	// DisplayUpdateFrequency controls how often the TUI display updates during continuous execution
	// (every N cycles to keep display responsive without overwhelming the terminal)
	DisplayUpdateFrequency = 100
)

// Listing View Context Constants
const (
	// ListingLinesBefore is how many code addresses before PC the listing view scans for source lines
	ListingLinesBefore = 20

	// ListingLinesAfter is how many code addresses after PC the listing view scans for source lines
	ListingLinesAfter = 40

	// DisassemblyLinesBefore is how many bytes before PC the disassembly view starts decoding
	DisassemblyLinesBefore = 32

	// DisassemblyLinesShown is the total number of instructions shown in the disassembly view
	DisassemblyLinesShown = 16
)

// Memory Display Constants
const (
	// MemoryDisplayRows is the number of rows to show in the memory hex dump view
	MemoryDisplayRows = 16

	// MemoryDisplayBytesPerRow is the number of bytes displayed per row
	MemoryDisplayBytesPerRow = 16
)

// Stack Display Constants
const (
	// StackDisplayDepth is the number of evaluation-stack slots to show in the stack view
	StackDisplayDepth = 16

	// StackInspectionMaxOffset is the maximum slot offset when inspecting the
	// evaluation stack in debugger commands (x/stack)
	StackInspectionMaxOffset = 16
)

// State View Constants
const (
	// StateViewRows is the fixed height of the PC/SP/BP/CallDepth/Flags panel
	// (state lines + status line + borders)
	StateViewRows = 8

	// BreakpointsViewRows is the fixed height of the breakpoints/watchpoints panel
	BreakpointsViewRows = 8
)
