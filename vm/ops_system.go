package vm

func init() {
	register(NOP, func(v *VM, _ uint32) Status {
		return StatusContinue
	})
	register(HALT, func(v *VM, _ uint32) Status {
		v.Halted = true
		return StatusHalted
	})
	register(BREAK, func(v *VM, _ uint32) Status {
		v.Paused = true
		return StatusPaused
	})
	register(GET_TICKS, func(v *VM, _ uint32) Status {
		return v.push(v.tick())
	})
}
