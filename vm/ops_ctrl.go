package vm

import "github.com/zplc/zplc-core/memory"

func isCodeAddr(addr uint16) bool {
	a := int(addr)
	return a >= memory.CodeBase && a < memory.CodeBase+memory.CodeMax
}

func init() {
	register(JMP, func(v *VM, operand uint32) Status {
		target := uint16(operand)
		if !isCodeAddr(target) {
			return v.fault(FaultInvalidJump)
		}
		v.PC = target
		return StatusContinue
	})

	register(JZ, func(v *VM, operand uint32) Status {
		cond, st := v.pop()
		if st == StatusFault {
			return st
		}
		if cond != 0 {
			return StatusContinue
		}
		target := uint16(operand)
		if !isCodeAddr(target) {
			return v.fault(FaultInvalidJump)
		}
		v.PC = target
		return StatusContinue
	})

	register(JNZ, func(v *VM, operand uint32) Status {
		cond, st := v.pop()
		if st == StatusFault {
			return st
		}
		if cond == 0 {
			return StatusContinue
		}
		target := uint16(operand)
		if !isCodeAddr(target) {
			return v.fault(FaultInvalidJump)
		}
		v.PC = target
		return StatusContinue
	})

	register(CALL, func(v *VM, operand uint32) Status {
		target := uint16(operand)
		if !isCodeAddr(target) {
			// Calling outside the code segment ends the program cleanly,
			// not a fault.
			v.Halted = true
			return StatusHalted
		}
		if st := v.callPush(v.PC); st == StatusFault {
			return st
		}
		v.PC = target
		return StatusContinue
	})

	register(RET, func(v *VM, _ uint32) Status {
		addr, ok := v.callPop()
		if !ok {
			v.Halted = true
			return StatusHalted
		}
		v.PC = addr
		return StatusContinue
	})

	register(JR, func(v *VM, operand uint32) Status {
		offset := int8(uint8(operand))
		v.PC = uint16(int32(v.PC) + int32(offset))
		return StatusContinue
	})

	register(JRZ, func(v *VM, operand uint32) Status {
		cond, st := v.pop()
		if st == StatusFault {
			return st
		}
		if cond != 0 {
			return StatusContinue
		}
		offset := int8(uint8(operand))
		v.PC = uint16(int32(v.PC) + int32(offset))
		return StatusContinue
	})

	register(JRNZ, func(v *VM, operand uint32) Status {
		cond, st := v.pop()
		if st == StatusFault {
			return st
		}
		if cond == 0 {
			return StatusContinue
		}
		offset := int8(uint8(operand))
		v.PC = uint16(int32(v.PC) + int32(offset))
		return StatusContinue
	})
}
