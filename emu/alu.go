package emu

import (
	"fmt"
	"math/bits"
)

// ALU implements the arithmetic and logic operations. The destination
// register doubles as the first operand; the second operand arrives
// already resolved by the addressing-mode logic.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Add performs Rd = Rd + op2. CARRY is set on unsigned wrap-around.
func (a *ALU) Add(rd uint8, op2 uint64) {
	op1 := a.regFile.ReadReg(rd)
	result := op1 + op2
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, result < op1, false)
}

// Sub performs Rd = Rd - op2. CARRY is set when a borrow occurred.
func (a *ALU) Sub(rd uint8, op2 uint64) {
	op1 := a.regFile.ReadReg(rd)
	result := op1 - op2
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, op1 < op2, false)
}

// Mul performs Rd = low64(Rd * op2). OVERFLOW is set when the full
// product does not fit in 64 bits.
func (a *ALU) Mul(rd uint8, op2 uint64) {
	op1 := a.regFile.ReadReg(rd)
	hi, lo := bits.Mul64(op1, op2)
	a.regFile.WriteReg(rd, lo)
	a.regFile.UpdateFlags(lo, false, hi != 0)
}

// Div performs Rd = Rd / op2. A zero divisor fails without touching Rd.
func (a *ALU) Div(rd uint8, op2 uint64) error {
	if op2 == 0 {
		return fmt.Errorf("DIV: %w", ErrDivisionByZero)
	}
	result := a.regFile.ReadReg(rd) / op2
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, false, false)
	return nil
}

// Mod performs Rd = Rd % op2. A zero divisor fails without touching Rd.
func (a *ALU) Mod(rd uint8, op2 uint64) error {
	if op2 == 0 {
		return fmt.Errorf("MOD: %w", ErrDivisionByZero)
	}
	result := a.regFile.ReadReg(rd) % op2
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, false, false)
	return nil
}

// Inc performs Rd = Rd + 1, with ADD flag semantics.
func (a *ALU) Inc(rd uint8) {
	a.Add(rd, 1)
}

// Dec performs Rd = Rd - 1, with SUB flag semantics.
func (a *ALU) Dec(rd uint8) {
	a.Sub(rd, 1)
}

// Cmp computes op1 - op2 and updates the flags exactly as Sub would,
// discarding the result.
func (a *ALU) Cmp(op1, op2 uint64) {
	result := op1 - op2
	a.regFile.UpdateFlags(result, op1 < op2, false)
}

// Swap exchanges two registers. Flags reflect the new Rd value.
func (a *ALU) Swap(rd, rs uint8) {
	v1 := a.regFile.ReadReg(rd)
	v2 := a.regFile.ReadReg(rs)
	a.regFile.WriteReg(rd, v2)
	a.regFile.WriteReg(rs, v1)
	a.regFile.UpdateFlags(v2, false, false)
}

// And performs Rd = Rd & op2. CARRY and OVERFLOW are cleared.
func (a *ALU) And(rd uint8, op2 uint64) {
	result := a.regFile.ReadReg(rd) & op2
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, false, false)
}

// Or performs Rd = Rd | op2. CARRY and OVERFLOW are cleared.
func (a *ALU) Or(rd uint8, op2 uint64) {
	result := a.regFile.ReadReg(rd) | op2
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, false, false)
}

// Xor performs Rd = Rd ^ op2. CARRY and OVERFLOW are cleared.
func (a *ALU) Xor(rd uint8, op2 uint64) {
	result := a.regFile.ReadReg(rd) ^ op2
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, false, false)
}

// Not performs Rd = ^Rd. CARRY and OVERFLOW are cleared.
func (a *ALU) Not(rd uint8) {
	result := ^a.regFile.ReadReg(rd)
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, false, false)
}

// Shl performs Rd = Rd << count. The count is masked to the low 6 bits;
// CARRY holds the last bit shifted out (0 when the count is 0).
func (a *ALU) Shl(rd uint8, count uint64) {
	op1 := a.regFile.ReadReg(rd)
	count &= 0x3F

	carry := false
	if count > 0 {
		carry = (op1>>(64-count))&1 == 1
	}

	result := op1 << count
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, carry, false)
}

// Shr performs Rd = Rd >> count. The count is masked to the low 6 bits;
// CARRY holds the last bit shifted out (0 when the count is 0).
func (a *ALU) Shr(rd uint8, count uint64) {
	op1 := a.regFile.ReadReg(rd)
	count &= 0x3F

	carry := false
	if count > 0 {
		carry = (op1>>(count-1))&1 == 1
	}

	result := op1 >> count
	a.regFile.WriteReg(rd, result)
	a.regFile.UpdateFlags(result, carry, false)
}
