package vm

import "math"

func (v *VM) popFloats() (a, b float32, st Status) {
	bv, st := v.pop()
	if st == StatusFault {
		return 0, 0, st
	}
	av, st := v.pop()
	if st == StatusFault {
		return 0, 0, st
	}
	return math.Float32frombits(av), math.Float32frombits(bv), StatusContinue
}

func (v *VM) pushFloat(f float32) Status {
	v.Flags.Zero = f == 0
	v.Flags.Negative = f < 0
	return v.push(math.Float32bits(f))
}

func init() {
	register(ADDF, func(v *VM, _ uint32) Status {
		a, b, st := v.popFloats()
		if st == StatusFault {
			return st
		}
		return v.pushFloat(a + b)
	})
	register(SUBF, func(v *VM, _ uint32) Status {
		a, b, st := v.popFloats()
		if st == StatusFault {
			return st
		}
		return v.pushFloat(a - b)
	})
	register(MULF, func(v *VM, _ uint32) Status {
		a, b, st := v.popFloats()
		if st == StatusFault {
			return st
		}
		return v.pushFloat(a * b)
	})
	register(DIVF, func(v *VM, _ uint32) Status {
		a, b, st := v.popFloats()
		if st == StatusFault {
			return st
		}
		// IEEE-754 division by zero yields +-Inf or NaN, never a fault.
		return v.pushFloat(a / b)
	})
	register(NEGF, func(v *VM, _ uint32) Status {
		bits, st := v.pop()
		if st == StatusFault {
			return st
		}
		return v.pushFloat(-math.Float32frombits(bits))
	})
	register(ABSF, func(v *VM, _ uint32) Status {
		bits, st := v.pop()
		if st == StatusFault {
			return st
		}
		f := math.Float32frombits(bits)
		if f < 0 {
			f = -f
		}
		return v.pushFloat(f)
	})
}
