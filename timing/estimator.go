// Package timing provides the cycle estimator attached to the emulator
// in timing mode. Estimates combine the per-opcode latency table with
// an optional data-cache model; they never influence execution.
package timing

import (
	"github.com/jmfrouin/vm/emu"
	"github.com/jmfrouin/vm/insts"
	"github.com/jmfrouin/vm/timing/cache"
	"github.com/jmfrouin/vm/timing/latency"
)

// Estimator implements emu.CycleModel.
type Estimator struct {
	table *latency.Table
	cache *cache.Cache
}

// NewEstimator creates an estimator from a latency table and an
// optional cache model (nil disables cache refinement).
func NewEstimator(table *latency.Table, dcache *cache.Cache) *Estimator {
	return &Estimator{table: table, cache: dcache}
}

// Cache returns the attached cache model, if any.
func (e *Estimator) Cache() *cache.Cache {
	return e.cache
}

// Cycles estimates the cost of one instruction given the pre-execution
// register state. Data addresses that would require a memory read to
// resolve (pointer chains through MEMORY-mode operands) are charged as
// a single access; the model is an approximation, not a pipeline.
func (e *Estimator) Cycles(inst *insts.Instruction, regs *emu.RegFile) uint64 {
	cycles := e.table.Latency(inst)

	if e.cache == nil {
		return cycles
	}

	for _, acc := range dataAccesses(inst, regs) {
		var result cache.AccessResult
		if acc.write {
			result = e.cache.Write(acc.addr)
		} else {
			result = e.cache.Read(acc.addr)
		}
		cycles += result.Latency
	}

	return cycles
}

type access struct {
	addr  uint64
	write bool
}

// dataAccesses lists the RAM traffic an instruction generates, as far
// as it is computable from registers alone.
func dataAccesses(inst *insts.Instruction, regs *emu.RegFile) []access {
	switch inst.Opcode {
	case insts.OpLOAD:
		return []access{{addr: pointerOperand(inst, regs, inst.Reg2)}}

	case insts.OpSTORE:
		return []access{{addr: pointerOperand(inst, regs, inst.Reg1), write: true}}

	case insts.OpPUSH, insts.OpCALL:
		return []access{{addr: regs.SP - 8, write: true}}

	case insts.OpPOP, insts.OpRET:
		return []access{{addr: regs.SP}}

	case insts.OpMOV:
		var accs []access
		if src, ok := operandAddress(inst, regs, inst.Reg2); ok {
			accs = append(accs, access{addr: src})
		}
		if dst, ok := operandAddress(inst, regs, inst.Reg1); ok {
			accs = append(accs, access{addr: dst, write: true})
		}
		return accs

	default:
		if addr, ok := operandAddress(inst, regs, inst.Reg2); ok {
			return []access{{addr: addr}}
		}
		return nil
	}
}

// operandAddress returns the RAM address an operand touches, if its
// addressing mode touches RAM at all.
func operandAddress(inst *insts.Instruction, regs *emu.RegFile, reg uint8) (uint64, bool) {
	switch inst.Mode {
	case insts.ModeMemory:
		return uint64(inst.Imm), true
	case insts.ModeRegisterIndirect:
		return regs.ReadReg(reg), true
	}
	return 0, false
}

// pointerOperand resolves the address value LOAD/STORE dereference.
func pointerOperand(inst *insts.Instruction, regs *emu.RegFile, reg uint8) uint64 {
	switch inst.Mode {
	case insts.ModeRegister, insts.ModeRegisterIndirect:
		return regs.ReadReg(reg)
	default:
		return uint64(inst.Imm)
	}
}
