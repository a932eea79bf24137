package service

// StateSnapshot is the point-in-time view of a single VM's execution
// state returned by get_state: program counter, stack depths, status
// flags, and the terminal condition if any.
type StateSnapshot struct {
	PC        uint16
	SP        int
	BP        int
	CallDepth int
	Flags     FlagsSnapshot
	Status    string // CONTINUE, HALTED, PAUSED, FAULT
	Halted    bool
	Paused    bool
	LastError string // fault name, "OK" if none
}

// FlagsSnapshot mirrors vm.Flags for JSON/DTO consumption without the api
// package importing vm directly.
type FlagsSnapshot struct {
	Zero     bool
	Carry    bool
	Overflow bool
	Negative bool
}

// BreakpointInfo is the host-facing view of one debugger.Breakpoint.
type BreakpointInfo struct {
	ID        int
	Address   uint16
	Enabled   bool
	Temporary bool
	Condition string
	HitCount  int
}

// WatchpointInfo is the host-facing view of one debugger.Watchpoint.
type WatchpointInfo struct {
	ID         int
	Type       string
	Expression string
	Address    uint16
	IsPseudo   bool
	Pseudo     string
	Enabled    bool
	LastValue  uint32
	HitCount   int
}

// TaskSnapshot is the host-facing view of one scheduler.Task: its static
// config, its runtime state, and its accumulated statistics.
type TaskSnapshot struct {
	ID         uint16
	Type       string
	Priority   uint8
	IntervalUs uint32
	EntryPoint uint16
	StackSize  uint16
	State      string
	Stats      TaskStatsSnapshot
}

// TaskStatsSnapshot is the host-facing view of scheduler.Stats.
type TaskStatsSnapshot struct {
	CycleCount   uint64
	OverrunCount uint64
	LastExecUs   uint32
	MaxExecUs    uint32
	AvgExecUs    uint32
}

// MemoryWindow is a contiguous slice of the process image, returned by
// GetOPI and the debugger's memory-dump window.
type MemoryWindow struct {
	Start uint16
	Data  []byte
}

// DisassemblyLine is one decoded instruction, used by the debugger's
// listing view and the API's disassembly endpoint.
type DisassemblyLine struct {
	Address  uint16
	Opcode   uint8
	Mnemonic string
	Operand  uint32
	Length   int
	Symbol   string
}
