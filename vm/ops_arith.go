package vm

import "math"

// popInts pops two 32-bit signed operands: a was pushed before b, so b is
// on top and is popped first.
func (v *VM) popInts() (a, b int32, st Status) {
	bv, st := v.pop()
	if st == StatusFault {
		return 0, 0, st
	}
	av, st := v.pop()
	if st == StatusFault {
		return 0, 0, st
	}
	return int32(av), int32(bv), StatusContinue
}

func init() {
	register(ADD, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		result := a + b
		v.Flags.Overflow = (b > 0 && a > math.MaxInt32-b) || (b < 0 && a < math.MinInt32-b)
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(SUB, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		result := a - b
		v.Flags.Overflow = (b < 0 && a > math.MaxInt32+b) || (b > 0 && a < math.MinInt32+b)
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(MUL, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		result := a * b
		if a != 0 && result/a != b {
			v.Flags.Overflow = true
		} else {
			v.Flags.Overflow = false
		}
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(DIV, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		if b == 0 {
			return v.fault(FaultDivByZero)
		}
		result := a / b // Go truncates toward zero, matching two's-complement division semantics.
		v.Flags.Overflow = a == math.MinInt32 && b == -1
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(MOD, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		if b == 0 {
			return v.fault(FaultDivByZero)
		}
		result := a % b
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(NEG, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		ia := int32(a)
		result := -ia
		v.Flags.Overflow = ia == math.MinInt32
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(ABS, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		ia := int32(a)
		var result int32
		if ia == math.MinInt32 {
			result = math.MinInt32 // wraps: abs(MinInt32) is not representable
			v.Flags.Overflow = true
		} else {
			if ia < 0 {
				result = -ia
			} else {
				result = ia
			}
			v.Flags.Overflow = false
		}
		v.setNZ32(result)
		return v.push(uint32(result))
	})
}
