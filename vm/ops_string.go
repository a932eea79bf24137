package vm

func init() {
	register(STRLEN, func(v *VM, _ uint32) Status {
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		n, err := v.Mem.StrLen(int(uint16(addr)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(uint32(n))
	})

	register(STRCPY, func(v *VM, _ uint32) Status {
		dst, st := v.pop()
		if st == StatusFault {
			return st
		}
		src, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.StrCpy(int(uint16(dst)), int(uint16(src))); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})

	register(STRCAT, func(v *VM, _ uint32) Status {
		dst, st := v.pop()
		if st == StatusFault {
			return st
		}
		src, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.StrCat(int(uint16(dst)), int(uint16(src))); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})

	register(STRCMP, func(v *VM, _ uint32) Status {
		b, st := v.pop()
		if st == StatusFault {
			return st
		}
		a, st := v.pop()
		if st == StatusFault {
			return st
		}
		cmp, err := v.Mem.StrCmp(int(uint16(a)), int(uint16(b)))
		if err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return v.push(uint32(int32(cmp)))
	})

	register(STRCLR, func(v *VM, _ uint32) Status {
		addr, st := v.pop()
		if st == StatusFault {
			return st
		}
		if err := v.Mem.StrClr(int(uint16(addr))); err != nil {
			return v.fault(FaultOutOfBounds)
		}
		return StatusContinue
	})
}
