package vm

func init() {
	register(LOAD8, func(v *VM, operand uint32) Status {
		val, err := v.Mem.ReadU8(int(uint16(operand)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(uint32(val))
	})
	register(LOAD16, func(v *VM, operand uint32) Status {
		val, err := v.Mem.ReadU16(int(uint16(operand)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(uint32(val))
	})
	register(LOAD32, func(v *VM, operand uint32) Status {
		val, err := v.Mem.ReadU32(int(uint16(operand)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(val)
	})
	register(LOAD64, func(v *VM, operand uint32) Status {
		val, err := v.Mem.ReadU64(int(uint16(operand)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		// Low word first, then high word.
		if st := v.push(uint32(val)); st == StatusFault {
			return st
		}
		return v.push(uint32(val >> 32))
	})

	register(STORE8, func(v *VM, operand uint32) Status {
		val, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.WriteU8(int(uint16(operand)), uint8(val)); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})
	register(STORE16, func(v *VM, operand uint32) Status {
		val, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.WriteU16(int(uint16(operand)), uint16(val)); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})
	register(STORE32, func(v *VM, operand uint32) Status {
		val, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.WriteU32(int(uint16(operand)), val); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})
	register(STORE64, func(v *VM, operand uint32) Status {
		// Pops high then low.
		high, st := v.pop()
		if st == StatusFault {
			return st
		}
		low, st := v.pop()
		if st == StatusFault {
			return st
		}
		value := uint64(low) | uint64(high)<<32
		if err := v.Mem.WriteU64(int(uint16(operand)), value); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})

	register(LOADI8, func(v *VM, _ uint32) Status {
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		val, err := v.Mem.ReadU8(int(uint16(addr)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(uint32(val))
	})
	register(LOADI16, func(v *VM, _ uint32) Status {
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		val, err := v.Mem.ReadU16(int(uint16(addr)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(uint32(val))
	})
	register(LOADI32, func(v *VM, _ uint32) Status {
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		val, err := v.Mem.ReadU32(int(uint16(addr)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(val)
	})

	register(STOREI8, func(v *VM, _ uint32) Status {
		value, st := v.pop()
		if st == StatusFault {
			return st
		}
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.WriteU8(int(uint16(addr)), uint8(value)); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})
	register(STOREI16, func(v *VM, _ uint32) Status {
		value, st := v.pop()
		if st == StatusFault {
			return st
		}
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.WriteU16(int(uint16(addr)), uint16(value)); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})
	register(STOREI32, func(v *VM, _ uint32) Status {
		value, st := v.pop()
		if st == StatusFault {
			return st
		}
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.WriteU32(int(uint16(addr)), value); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})
}
