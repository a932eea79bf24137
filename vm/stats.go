package vm

// Stats tracks optional execution statistics, collected only when the
// host attaches one via VM.Stats. Unlike Scheduler statistics (per-task
// timing, owned by the scheduler), this is per-program instruction-level
// detail useful for profiling a hot loop during development.
type Stats struct {
	TotalInstructions uint64
	OpcodeCounts      map[Opcode]uint64
	FaultCounts       map[Fault]uint64
}

// NewStats returns an empty, ready-to-use Stats.
func NewStats() *Stats {
	return &Stats{
		OpcodeCounts: make(map[Opcode]uint64),
		FaultCounts:  make(map[Fault]uint64),
	}
}

// record is called by Step after every executed instruction, only when
// v.Stats is non-nil.
func (s *Stats) record(op Opcode, st Status, f Fault) {
	s.TotalInstructions++
	s.OpcodeCounts[op]++
	if st == StatusFault {
		s.FaultCounts[f]++
	}
}
