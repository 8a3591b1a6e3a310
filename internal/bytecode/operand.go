package bytecode

// Operand decode helpers over a method's bytecode buffer. Offsets are
// absolute positions in the buffer; callers bound-check through
// State.GetInstruction or pre-slice the buffer.

// U1 reads one unsigned byte.
func U1(code []byte, at int) int { return int(code[at]) }

// U2 reads a big-endian unsigned 16-bit operand.
func U2(code []byte, at int) int {
	return int(code[at])<<8 | int(code[at+1])
}

// S1 reads a signed byte (bipush).
func S1(code []byte, at int) int32 { return int32(int8(code[at])) }

// S2 reads a big-endian signed 16-bit operand (sipush, branch offsets).
func S2(code []byte, at int) int32 {
	return int32(int16(uint16(code[at])<<8 | uint16(code[at+1])))
}

// S4 reads a big-endian signed 32-bit operand (goto_w, switch tables).
func S4(code []byte, at int) int32 {
	return int32(uint32(code[at])<<24 | uint32(code[at+1])<<16 |
		uint32(code[at+2])<<8 | uint32(code[at+3]))
}

// SwitchPadding returns the number of alignment bytes after a
// tableswitch/lookupswitch opcode at pc: the default operand starts at
// the next multiple of four relative to the method start.
func SwitchPadding(pc int) int {
	return (4 - (pc+1)%4) % 4
}
