package vm

// opHandler executes one decoded instruction. operand is the raw
// little-endian bytes following the opcode, reinterpreted by each handler
// according to its own opcode semantics (signed immediate, address,
// relative offset, or small count). PC has already been advanced to the
// address of the following instruction by the time the handler runs, so
// control-flow handlers simply overwrite v.PC to redirect.
type opHandler func(v *VM, operand uint32) Status

// opTable is the function-pointer dispatch table indexed by opcode byte,
// built once at package init. A nil entry is an unassigned opcode and
// decodes to FaultInvalidOpcode.
var opTable [256]opHandler

func register(op Opcode, h opHandler) {
	opTable[op] = h
}
