package vm

import "math"

func init() {
	register(I2F, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		return v.pushFloat(float32(int32(a)))
	})

	register(F2I, func(v *VM, _ uint32) Status {
		bits, st := v.pop()
		if st == StatusFault {
			return st
		}
		f := math.Float32frombits(bits)
		if math.IsNaN(float64(f)) || f < math.MinInt32 || f > math.MaxInt32 {
			v.Flags.Overflow = true
			v.setNZ32(0)
			return v.push(0)
		}
		v.Flags.Overflow = false
		result := int32(f) // truncates toward zero
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(I2B, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := cmpResult(a != 0)
		v.setNZ32(int32(result))
		return v.push(result)
	})

	register(EXT8, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := int32(int8(uint8(a)))
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(EXT16, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := int32(int16(uint16(a)))
		v.setNZ32(result)
		return v.push(uint32(result))
	})

	register(ZEXT8, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := uint32(uint8(a))
		v.setNZ32(int32(result))
		return v.push(result)
	})

	register(ZEXT16, func(v *VM, _ uint32) Status {
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		result := uint32(uint16(a))
		v.setNZ32(int32(result))
		return v.push(result)
	})
}
