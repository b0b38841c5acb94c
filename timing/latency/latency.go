// Package latency provides per-instruction timing estimates for the
// cycle counter. The values are configurable via Config; nothing here
// influences execution semantics.
package latency

import (
	"github.com/jmfrouin/vm/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *Config
}

// NewTable creates a latency table with default timing values.
func NewTable() *Table {
	return &Table{config: DefaultConfig()}
}

// NewTableWithConfig creates a latency table with a custom
// configuration.
func NewTableWithConfig(config *Config) *Table {
	return &Table{config: config}
}

// Latency returns the base execution latency in cycles for the given
// instruction, not counting memory-operand traffic.
func (t *Table) Latency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Opcode {
	case insts.OpADD, insts.OpSUB, insts.OpINC, insts.OpDEC,
		insts.OpCMP, insts.OpSWAP,
		insts.OpAND, insts.OpOR, insts.OpXOR, insts.OpNOT,
		insts.OpSHL, insts.OpSHR:
		return t.config.ALULatency

	case insts.OpMUL:
		return t.config.MultiplyLatency

	case insts.OpDIV, insts.OpMOD:
		return t.config.DivideLatency

	case insts.OpJMP, insts.OpJZ, insts.OpJNZ, insts.OpJEQ,
		insts.OpJNE, insts.OpJC, insts.OpJNC, insts.OpJL,
		insts.OpJLE, insts.OpJG, insts.OpJGE, insts.OpLOOP,
		insts.OpCALL, insts.OpRET:
		return t.config.BranchLatency

	case insts.OpLOAD, insts.OpPOP:
		return t.config.LoadLatency

	case insts.OpSTORE, insts.OpPUSH:
		return t.config.StoreLatency

	case insts.OpPRINT, insts.OpIN, insts.OpOUT:
		return t.config.IOLatency

	default:
		return 1
	}
}

// IsLoadOp reports whether the instruction reads RAM for its data.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Opcode == insts.OpLOAD || inst.Opcode == insts.OpPOP ||
		inst.Opcode == insts.OpRET
}

// IsStoreOp reports whether the instruction writes RAM.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Opcode == insts.OpSTORE || inst.Opcode == insts.OpPUSH ||
		inst.Opcode == insts.OpCALL
}

// Config returns the current timing configuration.
func (t *Table) Config() *Config {
	return t.config
}
