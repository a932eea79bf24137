package vm

func init() {
	register(DUP, func(v *VM, _ uint32) Status {
		val, st := v.peek(0)
		if st == StatusFault {
			return st
		}
		return v.push(val)
	})

	register(DROP, func(v *VM, _ uint32) Status {
		_, st := v.pop()
		return st
	})

	register(SWAP, func(v *VM, _ uint32) Status {
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		if st := v.push(b); st == StatusFault {
			return st
		}
		return v.push(a)
	})

	register(OVER, func(v *VM, _ uint32) Status {
		val, st := v.peek(1)
		if st == StatusFault {
			return st
		}
		return v.push(val)
	})

	register(ROT, func(v *VM, _ uint32) Status {
		// ( a b c -- b c a )
		c, st := v.pop()
		if st == StatusFault {
			return st
		}
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		if st := v.push(b); st == StatusFault {
			return st
		}
		if st := v.push(c); st == StatusFault {
			return st
		}
		return v.push(a)
	})

	register(PICK, func(v *VM, operand uint32) Status {
		val, st := v.peek(int(uint8(operand)))
		if st == StatusFault {
			return st
		}
		return v.push(val)
	})

	register(PUSH8, func(v *VM, operand uint32) Status {
		// Sign-extended 8-bit immediate.
		return v.push(uint32(int32(int8(uint8(operand)))))
	})

	register(PUSH16, func(v *VM, operand uint32) Status {
		// Sign-extended 16-bit immediate.
		return v.push(uint32(int32(int16(uint16(operand)))))
	})

	register(PUSH32, func(v *VM, operand uint32) Status {
		return v.push(operand)
	})
}
