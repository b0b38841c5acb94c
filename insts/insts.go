// Package insts defines the instruction set of the VM and the packing of
// the 64-bit instruction word.
//
// Every instruction occupies exactly 64 bits, with big-endian field
// packing inside the word:
//
//	bits 63..56  opcode      (8)
//	bits 55..52  addressing  (4)
//	bits 51..48  reg1        (4)
//	bits 47..44  reg2        (4)
//	bits 43..32  unused      (12, zero)
//	bits 31..0   immediate   (32, unsigned)
package insts

// Opcode identifies an instruction. The byte values are part of the
// firmware ABI and must not be renumbered.
type Opcode uint8

// Instruction opcodes.
const (
	// Data movement
	OpMOV   Opcode = 0x01
	OpLOAD  Opcode = 0x02
	OpSTORE Opcode = 0x03
	OpPUSH  Opcode = 0x04
	OpPOP   Opcode = 0x05
	OpHLT   Opcode = 0x06

	// Arithmetic
	OpADD  Opcode = 0x10
	OpSUB  Opcode = 0x11
	OpMUL  Opcode = 0x12
	OpDIV  Opcode = 0x13
	OpMOD  Opcode = 0x14
	OpINC  Opcode = 0x15
	OpDEC  Opcode = 0x16
	OpCMP  Opcode = 0x17
	OpSWAP Opcode = 0x18

	// Logical
	OpAND Opcode = 0x20
	OpOR  Opcode = 0x21
	OpXOR Opcode = 0x22
	OpNOT Opcode = 0x23
	OpSHL Opcode = 0x24
	OpSHR Opcode = 0x25

	// Control flow
	OpJMP  Opcode = 0x30
	OpJZ   Opcode = 0x31
	OpJNZ  Opcode = 0x32
	OpJEQ  Opcode = 0x33 // alias for JZ
	OpJNE  Opcode = 0x34 // alias for JNZ
	OpJC   Opcode = 0x35
	OpJNC  Opcode = 0x36
	OpCALL Opcode = 0x37
	OpRET  Opcode = 0x38
	OpNOP  Opcode = 0x39
	OpJL   Opcode = 0x3A
	OpJLE  Opcode = 0x3B
	OpJG   Opcode = 0x3C
	OpJGE  Opcode = 0x3D
	OpLOOP Opcode = 0x3E

	// System
	OpPRINT Opcode = 0x44
	OpIN    Opcode = 0x45
	OpOUT   Opcode = 0x46
)

var opcodeNames = map[Opcode]string{
	OpMOV: "MOV", OpLOAD: "LOAD", OpSTORE: "STORE", OpPUSH: "PUSH",
	OpPOP: "POP", OpHLT: "HLT",
	OpADD: "ADD", OpSUB: "SUB", OpMUL: "MUL", OpDIV: "DIV",
	OpMOD: "MOD", OpINC: "INC", OpDEC: "DEC", OpCMP: "CMP",
	OpSWAP: "SWAP",
	OpAND:  "AND", OpOR: "OR", OpXOR: "XOR", OpNOT: "NOT",
	OpSHL: "SHL", OpSHR: "SHR",
	OpJMP: "JMP", OpJZ: "JZ", OpJNZ: "JNZ", OpJEQ: "JEQ",
	OpJNE: "JNE", OpJC: "JC", OpJNC: "JNC", OpCALL: "CALL",
	OpRET: "RET", OpNOP: "NOP", OpJL: "JL", OpJLE: "JLE",
	OpJG: "JG", OpJGE: "JGE", OpLOOP: "LOOP",
	OpPRINT: "PRINT", OpIN: "IN", OpOUT: "OUT",
}

// String returns the mnemonic for the opcode.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "???"
}

// Valid reports whether the opcode byte decodes to a known instruction.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// AddressingMode selects how the operand fields are interpreted.
type AddressingMode uint8

// Addressing modes.
const (
	// ModeRegister reads the operand from the register named by the
	// instruction's register field.
	ModeRegister AddressingMode = 0
	// ModeImmediate zero-extends the 32-bit immediate field.
	ModeImmediate AddressingMode = 1
	// ModeMemory reads a 64-bit word at the absolute address given by
	// the immediate field.
	ModeMemory AddressingMode = 2
	// ModeRegisterIndirect reads a 64-bit word at the address held in
	// the register named by the instruction's register field.
	ModeRegisterIndirect AddressingMode = 3
)

// String returns a short name for the addressing mode.
func (m AddressingMode) String() string {
	switch m {
	case ModeRegister:
		return "reg"
	case ModeImmediate:
		return "imm"
	case ModeMemory:
		return "mem"
	case ModeRegisterIndirect:
		return "ind"
	}
	return "?"
}

// Instruction is a decoded instruction word.
type Instruction struct {
	Opcode Opcode
	Mode   AddressingMode
	Reg1   uint8  // first register field (4 bits)
	Reg2   uint8  // second register field (4 bits)
	Imm    uint32 // immediate field
}

// Encode packs the instruction into its 64-bit word form. Register
// fields are masked to 4 bits and the unused bits are written as zero,
// so Encode always produces the canonical byte pattern for the tuple.
func (i Instruction) Encode() uint64 {
	word := uint64(i.Opcode) << 56
	word |= uint64(i.Mode&0xF) << 52
	word |= uint64(i.Reg1&0xF) << 48
	word |= uint64(i.Reg2&0xF) << 44
	word |= uint64(i.Imm)
	return word
}

// New builds an instruction word from its fields.
func New(op Opcode, mode AddressingMode, reg1, reg2 uint8, imm uint32) uint64 {
	return Instruction{Opcode: op, Mode: mode, Reg1: reg1, Reg2: reg2, Imm: imm}.Encode()
}
