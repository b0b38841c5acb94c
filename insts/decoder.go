package insts

import (
	"errors"
	"fmt"
)

// ErrIllegalOpcode is returned when an instruction word's opcode byte
// does not decode to a known instruction.
var ErrIllegalOpcode = errors.New("illegal opcode")

// Decoder unpacks 64-bit instruction words into Instruction values.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode unpacks an instruction word. Unknown opcode bytes are rejected
// with ErrIllegalOpcode rather than falling through to a no-op, so a
// corrupted program cannot execute silently.
func (d *Decoder) Decode(word uint64) (*Instruction, error) {
	inst := &Instruction{
		Opcode: Opcode(word >> 56),
		Mode:   AddressingMode((word >> 52) & 0xF),
		Reg1:   uint8((word >> 48) & 0xF),
		Reg2:   uint8((word >> 44) & 0xF),
		Imm:    uint32(word),
	}

	if !inst.Opcode.Valid() {
		return nil, fmt.Errorf("opcode 0x%02X: %w", uint8(inst.Opcode), ErrIllegalOpcode)
	}

	return inst, nil
}
