// Package service is the wiring layer connecting the loader, the VM, the
// multitask scheduler, and the debugger into the single-object surface
// the host-facing control API and the CLI both call through: load a
// program, drive execution (single VM or full scheduler), inspect state,
// and reach the debugger's breakpoints/watchpoints. It owns the one
// mutex that serializes every one of those operations against the
// scheduler's own background goroutines.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/zplc/zplc-core/debugger"
	"github.com/zplc/zplc-core/hal"
	"github.com/zplc/zplc-core/loader"
	"github.com/zplc/zplc-core/memory"
	"github.com/zplc/zplc-core/scheduler"
	"github.com/zplc/zplc-core/vm"
)

// Version is the control surface's reported protocol/build version, for
// the host-facing "version" operation.
const Version = "zplc-core 1.0"

// Lock ordering: Session holds exactly one mutex (mu) guarding every
// field below, including the pointer to the Scheduler, which has its
// own internal process-image lock. A running scheduler's background
// goroutines call Scheduler methods directly, never back into Session,
// so there is no reverse-order path and no deadlock risk.
type Session struct {
	mu sync.RWMutex

	hal hal.HAL
	mem *memory.Memory

	schedCfg     scheduler.Config
	sched        *scheduler.Scheduler
	schedCancel  context.CancelFunc
	schedRunning bool

	debugHistorySize int

	// primary is the task the single-VM operations (Step/Run/RunCycle/
	// GetState/breakpoints/watchpoints) address: the first task decoded
	// from the loaded artifact, or the implicit task LoadRaw creates.
	primary *scheduler.Task
	dbg     *debugger.Debugger

	artifact     *loader.Artifact
	allowRawLoad bool
}

// Config carries the construction-time choices a host makes once: the
// HAL to bind, the process-image sizing, the scheduler's timing, and
// whether the unsafe LoadRaw path is permitted at all (the CLI's
// -allow-raw-load flag is the only place this should ever be true).
type Config struct {
	HAL          hal.HAL
	Memory       memory.Config
	Scheduler    scheduler.Config
	AllowRawLoad bool
	// DebugHistorySize bounds the debugger's command history; <= 0
	// selects debugger.DefaultHistorySize.
	DebugHistorySize int
}

// New constructs a Session with its own process image and scheduler, but
// no program loaded: Status calls before a Load report halted/no-error.
func New(cfg Config) (*Session, error) {
	mem, err := memory.New(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return &Session{
		hal:              cfg.HAL,
		mem:              mem,
		schedCfg:         cfg.Scheduler,
		sched:            scheduler.New(mem, cfg.HAL, cfg.Scheduler),
		allowRawLoad:     cfg.AllowRawLoad,
		debugHistorySize: cfg.DebugHistorySize,
	}, nil
}

// retainKey is the persistence key spec.md §6.4 assigns the retentive
// region snapshot.
const retainKey = "retain"

// --- Lifecycle ---

// Init prepares the bound HAL for use and restores the retentive region
// from the HAL's persistent store, if a prior save left one. A Session
// with a nil HAL (tests, or a host that never wired one) treats
// Init/Shutdown/SaveRetain as no-ops.
func (s *Session) Init() hal.Result {
	if s.hal == nil {
		return hal.OK
	}
	if res := s.hal.Init(); res != hal.OK {
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, found, res := s.hal.PersistLoad(hal.SanitizeKey(retainKey))
	if res != hal.OK {
		return res
	}
	if found {
		s.mem.RetainRestore(data)
	}
	return hal.OK
}

// SaveRetain commits the current retentive region to the HAL's persistent
// store, for a host-initiated save per spec.md §5 ("committed to the HAL
// persistent store on a host-initiated save or at clean shutdown").
func (s *Session) SaveRetain() hal.Result {
	if s.hal == nil {
		return hal.OK
	}
	s.mu.RLock()
	snapshot := s.mem.RetainSnapshot()
	s.mu.RUnlock()
	return s.hal.PersistSave(hal.SanitizeKey(retainKey), snapshot)
}

// Shutdown stops a running scheduler (if any), commits the retentive
// region to persistent storage, and releases the HAL.
func (s *Session) Shutdown() hal.Result {
	_ = s.StopScheduler()
	if s.hal == nil {
		return hal.OK
	}
	if res := s.SaveRetain(); res != hal.OK {
		return res
	}
	return s.hal.Shutdown()
}

// VersionString reports the control surface's version, per the
// host-facing "version" operation.
func (s *Session) VersionString() string {
	return Version
}

// --- Program management ---

// Load validates buf as a signed .zplc artifact, installs its code and
// task table, and rebuilds the scheduler and debugger around the newly
// decoded tasks.
func (s *Session) Load(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	art, err := loader.Load(s.mem, buf)
	if err != nil {
		return err
	}
	return s.installArtifact(art)
}

// LoadRaw bypasses artifact validation and loads bytecode directly with
// a single implicit task at entry zero. It returns an error unless the
// Session was constructed with AllowRawLoad.
func (s *Session) LoadRaw(bytecode []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowRawLoad {
		return fmt.Errorf("service: raw load disabled (start with -allow-raw-load to enable)")
	}
	art, err := loader.LoadRaw(s.mem, bytecode)
	if err != nil {
		return err
	}
	return s.installArtifact(art)
}

// installArtifact rebuilds the scheduler's task table and the primary
// debug target from a freshly loaded artifact. Caller holds s.mu.
func (s *Session) installArtifact(art *loader.Artifact) error {
	if s.schedRunning {
		return fmt.Errorf("service: cannot load while scheduler is running, stop it first")
	}

	s.artifact = art
	s.sched = scheduler.New(s.mem, s.hal, s.schedCfg)
	s.primary = nil

	tasks := art.Tasks
	if len(tasks) == 0 {
		tasks = []loader.TaskDef{{ID: 0, Type: 0, EntryPoint: art.Header.EntryPoint}}
	}

	for _, td := range tasks {
		t, err := s.sched.RegisterTask(scheduler.TaskConfig{
			ID:         td.ID,
			Type:       scheduler.TaskType(td.Type),
			Priority:   td.Priority,
			IntervalUs: td.IntervalUs,
			EntryPoint: td.EntryPoint,
			StackSize:  td.StackSize,
		})
		if err != nil {
			return err
		}
		if s.primary == nil || td.ID == 0 {
			s.primary = t
		}
	}
	if s.primary == nil {
		s.primary = s.sched.Tasks()[0]
	}

	s.dbg = debugger.NewDebuggerWithHistorySize(s.primary.VM, s.debugHistorySize)
	if art.SymbolTable != nil {
		s.dbg.LoadSymbols(decodeSymbolTable(art.SymbolTable))
	}
	if art.DebugMap != nil {
		s.dbg.LoadSourceMap(decodeDebugMap(art.DebugMap))
	}
	return nil
}

// Reset returns every registered task's VM to its post-load state. It
// refuses while the scheduler is running, matching Load's restriction.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedRunning {
		return fmt.Errorf("service: cannot reset while scheduler is running, stop it first")
	}
	if s.sched == nil {
		return fmt.Errorf("service: no program loaded")
	}
	for _, t := range s.sched.Tasks() {
		t.VM.Reset()
	}
	return nil
}

// --- Execution ---

// Step executes exactly one instruction of the primary task's VM.
func (s *Session) Step() (vm.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePrimary(); err != nil {
		return vm.StatusFault, err
	}
	return s.primary.VM.Step(), nil
}

// Run executes at most budget instructions of the primary task's VM.
func (s *Session) Run(budget int) (int, vm.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePrimary(); err != nil {
		return 0, vm.StatusFault, err
	}
	executed, st := s.primary.VM.Run(budget)
	return executed, st, nil
}

// RunCycle executes exactly one scan of the primary task through the
// scheduler's RunTaskCycle, so system registers and statistics are kept
// consistent with scheduler-driven execution.
func (s *Session) RunCycle() (vm.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePrimary(); err != nil {
		return vm.StatusFault, err
	}
	if s.primary.VM.Paused {
		return vm.StatusPaused, nil
	}
	firstScan := s.primary.Stats.CycleCount == 0
	if err := s.sched.RunTaskCycle(s.primary, firstScan); err != nil {
		return vm.StatusFault, err
	}
	return lastStatus(s.primary.VM), nil
}

// StartScheduler launches every registered cyclic task on its own
// goroutine, ticking at its configured interval, until ctx is cancelled
// or StopScheduler is called.
func (s *Session) StartScheduler(ctx context.Context) error {
	s.mu.Lock()
	if s.sched == nil {
		s.mu.Unlock()
		return fmt.Errorf("service: no program loaded")
	}
	if s.schedRunning {
		s.mu.Unlock()
		return fmt.Errorf("service: scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.schedCancel = cancel
	s.schedRunning = true
	sched := s.sched
	s.mu.Unlock()

	go func() {
		_ = sched.Run(runCtx)
		s.mu.Lock()
		s.schedRunning = false
		s.schedCancel = nil
		s.mu.Unlock()
	}()
	return nil
}

// StopScheduler cancels a running scheduler's context and returns once
// the cancellation has been requested; it does not block for every
// per-task goroutine to exit.
func (s *Session) StopScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.schedRunning || s.schedCancel == nil {
		return nil
	}
	s.schedCancel()
	return nil
}

// Pause marks the primary task's VM paused, which Step/Run/RunCycle
// honor by reporting StatusPaused without advancing.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePrimary(); err != nil {
		return err
	}
	s.primary.VM.Paused = true
	return nil
}

// Resume clears the primary task's VM paused flag.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePrimary(); err != nil {
		return err
	}
	s.primary.VM.Resume()
	return nil
}

// --- Introspection ---

// GetState returns a snapshot of the primary task's VM state.
func (s *Session) GetState() (StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requirePrimary(); err != nil {
		return StateSnapshot{}, err
	}
	return snapshotVM(s.primary.VM), nil
}

// GetSP returns the primary task's current evaluation-stack depth.
func (s *Session) GetSP() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requirePrimary(); err != nil {
		return 0, err
	}
	return s.primary.VM.SP, nil
}

// GetStack returns the index-th element of the primary task's evaluation
// stack (0 = bottom).
func (s *Session) GetStack(index int) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requirePrimary(); err != nil {
		return 0, err
	}
	val, ok := s.primary.VM.StackValue(index)
	if !ok {
		return 0, fmt.Errorf("service: stack index %d out of range (SP=%d)", index, s.primary.VM.SP)
	}
	return val, nil
}

// GetError returns the primary task's last fault, "OK" if none.
func (s *Session) GetError() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requirePrimary(); err != nil {
		return "", err
	}
	return s.primary.VM.LastError.String(), nil
}

// IsHalted reports whether the primary task's VM is halted.
func (s *Session) IsHalted() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requirePrimary(); err != nil {
		return false, err
	}
	return s.primary.VM.Halted, nil
}

// GetOPI returns a copy of length bytes of the output process image
// starting at offset.
func (s *Session) GetOPI(offset, length int) (MemoryWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.mem.ReadOPIRaw(offset, length)
	if err != nil {
		return MemoryWindow{}, err
	}
	return MemoryWindow{Start: uint16(memory.OPIBase + offset), Data: data}, nil
}

// GetTask returns the snapshot of the task with the given ID.
func (s *Session) GetTask(id uint16) (TaskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sched == nil {
		return TaskSnapshot{}, fmt.Errorf("service: no program loaded")
	}
	for _, t := range s.sched.Tasks() {
		if t.Config.ID == id {
			return snapshotTask(t), nil
		}
	}
	return TaskSnapshot{}, fmt.Errorf("service: no task with id %d", id)
}

// GetSchedStats returns a snapshot of every registered task, in
// registration order.
func (s *Session) GetSchedStats() ([]TaskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sched == nil {
		return nil, fmt.Errorf("service: no program loaded")
	}
	tasks := s.sched.Tasks()
	out := make([]TaskSnapshot, len(tasks))
	for i, t := range tasks {
		out[i] = snapshotTask(t)
	}
	return out, nil
}

// --- Testing hooks ---

// SetIPI writes a 32-bit value into the input process image at offset,
// for host-side test harnesses to stage inputs before a scan.
func (s *Session) SetIPI(offset int, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.WriteU32(memory.IPIBase+offset, value)
}

// SetIPI16 writes a 16-bit value into the input process image at offset.
func (s *Session) SetIPI16(offset int, value uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.WriteU16(memory.IPIBase+offset, value)
}

// --- Debugger operations ---

// AddBreakpoint arms a breakpoint at pc in both the bookkeeping manager
// and the VM's own pause set, and returns the bookkeeping record.
func (s *Session) AddBreakpoint(pc uint16, condition string, temporary bool) (BreakpointInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDebugger(); err != nil {
		return BreakpointInfo{}, err
	}
	bp := s.dbg.Breakpoints.AddBreakpoint(pc, temporary, condition)
	s.primary.VM.AddBreakpoint(pc)
	return snapshotBreakpoint(bp), nil
}

// RemoveBreakpoint disarms the breakpoint with the given ID.
func (s *Session) RemoveBreakpoint(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDebugger(); err != nil {
		return err
	}
	bp := s.dbg.Breakpoints.GetBreakpointByID(id)
	if bp == nil {
		return fmt.Errorf("service: no breakpoint with id %d", id)
	}
	s.primary.VM.RemoveBreakpoint(bp.Address)
	return s.dbg.Breakpoints.DeleteBreakpoint(id)
}

// ListBreakpoints returns every bookkept breakpoint.
func (s *Session) ListBreakpoints() ([]BreakpointInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireDebugger(); err != nil {
		return nil, err
	}
	all := s.dbg.Breakpoints.GetAllBreakpoints()
	out := make([]BreakpointInfo, len(all))
	for i, bp := range all {
		out[i] = snapshotBreakpoint(bp)
	}
	return out, nil
}

// Watch adds a watchpoint over a memory address or a pseudo-register
// name (one of pc, sp, bp, calldepth, flags).
func (s *Session) Watch(watchType string, addr uint16, pseudo string) (WatchpointInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDebugger(); err != nil {
		return WatchpointInfo{}, err
	}

	wt, err := parseWatchType(watchType)
	if err != nil {
		return WatchpointInfo{}, err
	}

	isPseudo := pseudo != ""
	expr := pseudo
	if !isPseudo {
		expr = fmt.Sprintf("[0x%04X]", addr)
	}
	wp := s.dbg.Watchpoints.AddWatchpoint(wt, expr, addr, isPseudo, pseudo)
	if err := s.dbg.Watchpoints.InitializeWatchpoint(wp.ID, s.primary.VM); err != nil {
		return WatchpointInfo{}, err
	}
	return snapshotWatchpoint(wp), nil
}

// RemoveWatch deletes the watchpoint with the given ID.
func (s *Session) RemoveWatch(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDebugger(); err != nil {
		return err
	}
	return s.dbg.Watchpoints.DeleteWatchpoint(id)
}

// ListWatches returns every watchpoint.
func (s *Session) ListWatches() ([]WatchpointInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.requireDebugger(); err != nil {
		return nil, err
	}
	all := s.dbg.Watchpoints.GetAllWatchpoints()
	out := make([]WatchpointInfo, len(all))
	for i, wp := range all {
		out[i] = snapshotWatchpoint(wp)
	}
	return out, nil
}

// DebugCommand feeds one line to the debugger's gdb-style command
// dispatcher and returns whatever it wrote to its output buffer, for a
// host's interactive debug console (local TUI or a remote debug stream).
func (s *Session) DebugCommand(line string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDebugger(); err != nil {
		return "", err
	}
	if err := s.dbg.ExecuteCommand(line); err != nil {
		return s.dbg.GetOutput(), err
	}
	return s.dbg.GetOutput(), nil
}

// MemoryDump returns a length-byte window of the process image starting
// at start, for the debugger's memory view and the DBG:QUERY:MEM
// command.
func (s *Session) MemoryDump(start uint16, length int) (MemoryWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := make([]byte, length)
	for i := 0; i < length; i++ {
		b, err := s.mem.ReadU8(int(start) + i)
		if err != nil {
			return MemoryWindow{}, err
		}
		data[i] = b
	}
	return MemoryWindow{Start: start, Data: data}, nil
}

// Debugger returns the session's debugger for a host-side interactive
// front end (e.g. the TUI). It is nil until a program has been loaded.
func (s *Session) Debugger() *debugger.Debugger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbg
}

// --- internal helpers ---

func (s *Session) requirePrimary() error {
	if s.primary == nil {
		return fmt.Errorf("service: no program loaded")
	}
	return nil
}

func (s *Session) requireDebugger() error {
	if s.dbg == nil {
		return fmt.Errorf("service: no program loaded")
	}
	return nil
}

func lastStatus(v *vm.VM) vm.Status {
	switch {
	case v.Halted:
		return vm.StatusHalted
	case v.Paused:
		return vm.StatusPaused
	case v.LastError != vm.FaultNone:
		return vm.StatusFault
	default:
		return vm.StatusContinue
	}
}

func snapshotVM(v *vm.VM) StateSnapshot {
	return StateSnapshot{
		PC:        v.PC,
		SP:        v.SP,
		BP:        v.BP,
		CallDepth: v.CallDepth,
		Flags: FlagsSnapshot{
			Zero:     v.Flags.Zero,
			Carry:    v.Flags.Carry,
			Overflow: v.Flags.Overflow,
			Negative: v.Flags.Negative,
		},
		Status:    lastStatus(v).String(),
		Halted:    v.Halted,
		Paused:    v.Paused,
		LastError: v.LastError.String(),
	}
}

func snapshotTask(t *scheduler.Task) TaskSnapshot {
	return TaskSnapshot{
		ID:         t.Config.ID,
		Type:       t.Config.Type.String(),
		Priority:   t.Config.Priority,
		IntervalUs: t.Config.IntervalUs,
		EntryPoint: t.Config.EntryPoint,
		StackSize:  t.Config.StackSize,
		State:      t.State.String(),
		Stats: TaskStatsSnapshot{
			CycleCount:   t.Stats.CycleCount,
			OverrunCount: t.Stats.OverrunCount,
			LastExecUs:   t.Stats.LastExecUs,
			MaxExecUs:    t.Stats.MaxExecUs,
			AvgExecUs:    t.Stats.AvgExecUs(),
		},
	}
}

func snapshotBreakpoint(bp *debugger.Breakpoint) BreakpointInfo {
	return BreakpointInfo{
		ID:        bp.ID,
		Address:   bp.Address,
		Enabled:   bp.Enabled,
		Temporary: bp.Temporary,
		Condition: bp.Condition,
		HitCount:  bp.HitCount,
	}
}

func snapshotWatchpoint(wp *debugger.Watchpoint) WatchpointInfo {
	return WatchpointInfo{
		ID:         wp.ID,
		Type:       watchTypeName(wp.Type),
		Expression: wp.Expression,
		Address:    wp.Address,
		IsPseudo:   wp.IsPseudo,
		Pseudo:     wp.Pseudo,
		Enabled:    wp.Enabled,
		LastValue:  wp.LastValue,
		HitCount:   wp.HitCount,
	}
}

func watchTypeName(t debugger.WatchType) string {
	switch t {
	case debugger.WatchWrite:
		return "write"
	case debugger.WatchRead:
		return "read"
	case debugger.WatchReadWrite:
		return "readwrite"
	default:
		return "unknown"
	}
}

func parseWatchType(s string) (debugger.WatchType, error) {
	switch s {
	case "write":
		return debugger.WatchWrite, nil
	case "read":
		return debugger.WatchRead, nil
	case "readwrite", "access":
		return debugger.WatchReadWrite, nil
	default:
		return 0, fmt.Errorf("service: unknown watch type %q", s)
	}
}
