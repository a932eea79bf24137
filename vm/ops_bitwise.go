package vm

func init() {
	register(AND, func(v *VM, _ uint32) Status {
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := a & b
		v.setNZ32(int32(result))
		return v.push(result)
	})
	register(OR, func(v *VM, _ uint32) Status {
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := a | b
		v.setNZ32(int32(result))
		return v.push(result)
	})
	register(XOR, func(v *VM, _ uint32) Status {
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := a ^ b
		v.setNZ32(int32(result))
		return v.push(result)
	})
	register(NOT, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := ^a
		v.setNZ32(int32(result))
		return v.push(result)
	})
	register(SHL, func(v *VM, _ uint32) Status {
		count, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := a << (count % 32)
		v.setNZ32(int32(result))
		return v.push(result)
	})
	register(SHR, func(v *VM, _ uint32) Status {
		count, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := a >> (count % 32)
		v.setNZ32(int32(result))
		return v.push(result)
	})
	register(SAR, func(v *VM, _ uint32) Status {
		count, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := int32(a) >> (count % 32)
		v.setNZ32(result)
		return v.push(uint32(result))
	})
}
