package vm

// cmpResult converts a boolean comparison outcome into the stack's 0/1
// encoding.
func cmpResult(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func init() {
	register(EQ, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a == b))
	})
	register(NE, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a != b))
	})
	register(LT, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a < b))
	})
	register(LE, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a <= b))
	})
	register(GT, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a > b))
	})
	register(GE, func(v *VM, _ uint32) Status {
		a, b, st := v.popInts()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a >= b))
	})
	register(LTU, func(v *VM, _ uint32) Status {
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a < b))
	})
	register(GTU, func(v *VM, _ uint32) Status {
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		return v.push(cmpResult(a > b))
	})
}
