package vm_test

import (
	"encoding/binary"

	"github.com/zplc/zplc-core/vm"
)

// The tests in this package build bytecode by hand instead of through an
// assembler: the instruction set is small and fixed-width per opcode
// class, so a few byte-slice helpers are all a test needs.

func op0(op vm.Opcode) []byte {
	return []byte{byte(op)}
}

func op8(op vm.Opcode, operand uint8) []byte {
	return []byte{byte(op), operand}
}

func op16(op vm.Opcode, operand uint16) []byte {
	b := make([]byte, 3)
	b[0] = byte(op)
	binary.LittleEndian.PutUint16(b[1:], operand)
	return b
}

func op32(op vm.Opcode, operand uint32) []byte {
	b := make([]byte, 5)
	b[0] = byte(op)
	binary.LittleEndian.PutUint32(b[1:], operand)
	return b
}

func asm(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
