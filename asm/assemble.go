package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmfrouin/vm/insts"
)

// ErrSyntax is wrapped by all assembly errors past the parser.
var ErrSyntax = errors.New("assembly error")

// Result is an assembled program.
type Result struct {
	// Words are the instruction words, one per source instruction,
	// laid out consecutively from address 0.
	Words []uint64

	// EntryPoint is the byte address selected by `.entry` (0 when the
	// directive is absent).
	EntryPoint uint64

	// Labels maps every label to its byte address.
	Labels map[string]uint64
}

var mnemonics = map[string]insts.Opcode{
	"MOV": insts.OpMOV, "LOAD": insts.OpLOAD, "STORE": insts.OpSTORE,
	"PUSH": insts.OpPUSH, "POP": insts.OpPOP, "HLT": insts.OpHLT,
	"ADD": insts.OpADD, "SUB": insts.OpSUB, "MUL": insts.OpMUL,
	"DIV": insts.OpDIV, "MOD": insts.OpMOD, "INC": insts.OpINC,
	"DEC": insts.OpDEC, "CMP": insts.OpCMP, "SWAP": insts.OpSWAP,
	"AND": insts.OpAND, "OR": insts.OpOR, "XOR": insts.OpXOR,
	"NOT": insts.OpNOT, "SHL": insts.OpSHL, "SHR": insts.OpSHR,
	"JMP": insts.OpJMP, "JZ": insts.OpJZ, "JNZ": insts.OpJNZ,
	"JEQ": insts.OpJEQ, "JNE": insts.OpJNE, "JC": insts.OpJC,
	"JNC": insts.OpJNC, "CALL": insts.OpCALL, "RET": insts.OpRET,
	"NOP": insts.OpNOP, "JL": insts.OpJL, "JLE": insts.OpJLE,
	"JG": insts.OpJG, "JGE": insts.OpJGE, "LOOP": insts.OpLOOP,
	"PRINT": insts.OpPRINT, "IN": insts.OpIN, "OUT": insts.OpOUT,
}

// Assemble parses and assembles a source program.
func Assemble(source string) (*Result, error) {
	prog, err := Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return assemble(prog)
}

func assemble(prog *Program) (*Result, error) {
	result := &Result{Labels: make(map[string]uint64)}

	// Pass 1: assign addresses to labels.
	var stmts []*Statement
	var entry *Directive
	for _, line := range prog.Lines {
		if line.Label != nil {
			name := *line.Label
			if _, dup := result.Labels[name]; dup {
				return nil, fmt.Errorf("%w: duplicate label %q", ErrSyntax, name)
			}
			result.Labels[name] = uint64(len(stmts)) * 8
		}
		if line.Directive != nil {
			switch line.Directive.Name {
			case ".entry":
				entry = line.Directive
			default:
				return nil, fmt.Errorf("%w: %s: unknown directive %s",
					ErrSyntax, line.Directive.Pos, line.Directive.Name)
			}
		}
		if line.Inst != nil {
			stmts = append(stmts, line.Inst)
		}
	}

	// Pass 2: encode.
	for _, stmt := range stmts {
		word, err := encodeStatement(stmt, result.Labels)
		if err != nil {
			return nil, err
		}
		result.Words = append(result.Words, word)
	}

	if entry != nil {
		addr, err := resolveEntry(entry, result.Labels)
		if err != nil {
			return nil, err
		}
		result.EntryPoint = addr
	}

	return result, nil
}

func resolveEntry(d *Directive, labels map[string]uint64) (uint64, error) {
	switch {
	case d.Sym != nil:
		addr, ok := labels[*d.Sym]
		if !ok {
			return 0, fmt.Errorf("%w: %s: unknown entry label %q", ErrSyntax, d.Pos, *d.Sym)
		}
		return addr, nil
	case d.Num != nil:
		n, err := parseNumber(*d.Num)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrSyntax, d.Pos, err)
		}
		return uint64(n), nil
	}
	return 0, fmt.Errorf("%w: %s: .entry needs a label or address", ErrSyntax, d.Pos)
}

// operand is a classified, resolved operand.
type operand struct {
	kind operandKind
	reg  uint8
	num  uint32
}

type operandKind int

const (
	kindRegister operandKind = iota
	kindNumber               // immediate or label address
	kindMemAddr              // [0x100000]
	kindMemReg               // [R3]
)

func classify(op *Operand, labels map[string]uint64) (operand, error) {
	switch {
	case op.Register != nil:
		reg, err := parseRegister(*op.Register)
		if err != nil {
			return operand{}, fmt.Errorf("%w: %s: %v", ErrSyntax, op.Pos, err)
		}
		return operand{kind: kindRegister, reg: reg}, nil

	case op.Number != nil:
		n, err := parseNumber(*op.Number)
		if err != nil {
			return operand{}, fmt.Errorf("%w: %s: %v", ErrSyntax, op.Pos, err)
		}
		return operand{kind: kindNumber, num: n}, nil

	case op.Symbol != nil:
		addr, ok := labels[*op.Symbol]
		if !ok {
			return operand{}, fmt.Errorf("%w: %s: unknown label %q", ErrSyntax, op.Pos, *op.Symbol)
		}
		return operand{kind: kindNumber, num: uint32(addr)}, nil

	case op.Mem != nil:
		if op.Mem.Register != nil {
			reg, err := parseRegister(*op.Mem.Register)
			if err != nil {
				return operand{}, fmt.Errorf("%w: %s: %v", ErrSyntax, op.Pos, err)
			}
			return operand{kind: kindMemReg, reg: reg}, nil
		}
		n, err := parseNumber(*op.Mem.Number)
		if err != nil {
			return operand{}, fmt.Errorf("%w: %s: %v", ErrSyntax, op.Pos, err)
		}
		return operand{kind: kindMemAddr, num: n}, nil
	}

	return operand{}, fmt.Errorf("%w: %s: empty operand", ErrSyntax, op.Pos)
}

func encodeStatement(stmt *Statement, labels map[string]uint64) (uint64, error) {
	name := strings.ToUpper(stmt.Mnemonic)
	opcode, ok := mnemonics[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s: unknown mnemonic %q", ErrSyntax, stmt.Pos, stmt.Mnemonic)
	}

	ops := make([]operand, len(stmt.Operands))
	for i, raw := range stmt.Operands {
		op, err := classify(raw, labels)
		if err != nil {
			return 0, err
		}
		ops[i] = op
	}

	bad := func(format string, args ...any) (uint64, error) {
		detail := fmt.Sprintf(format, args...)
		return 0, fmt.Errorf("%w: %s: %s: %s", ErrSyntax, stmt.Pos, name, detail)
	}

	switch opcode {
	case insts.OpMOV:
		if len(ops) != 2 || ops[0].kind != kindRegister {
			return bad("expects a destination register and a source")
		}
		switch ops[1].kind {
		case kindRegister:
			return insts.New(opcode, insts.ModeRegister, ops[0].reg, ops[1].reg, 0), nil
		case kindNumber:
			return insts.New(opcode, insts.ModeImmediate, ops[0].reg, 0, ops[1].num), nil
		default:
			return bad("cannot move through memory; use LOAD or STORE")
		}

	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpDIV, insts.OpMOD,
		insts.OpCMP, insts.OpAND, insts.OpOR, insts.OpXOR,
		insts.OpSHL, insts.OpSHR:
		if len(ops) != 2 || ops[0].kind != kindRegister {
			return bad("expects a destination register and a source")
		}
		return encodeSecondOperand(opcode, ops[0].reg, ops[1]), nil

	case insts.OpINC, insts.OpDEC, insts.OpNOT, insts.OpPOP:
		if len(ops) != 1 || ops[0].kind != kindRegister {
			return bad("expects one register")
		}
		return insts.New(opcode, insts.ModeRegister, ops[0].reg, 0, 0), nil

	case insts.OpSWAP:
		if len(ops) != 2 || ops[0].kind != kindRegister || ops[1].kind != kindRegister {
			return bad("expects two registers")
		}
		return insts.New(opcode, insts.ModeRegister, ops[0].reg, ops[1].reg, 0), nil

	case insts.OpPUSH, insts.OpPRINT:
		if len(ops) != 1 {
			return bad("expects one source operand")
		}
		switch ops[0].kind {
		case kindRegister:
			return insts.New(opcode, insts.ModeRegister, ops[0].reg, 0, 0), nil
		case kindNumber:
			return insts.New(opcode, insts.ModeImmediate, 0, 0, ops[0].num), nil
		case kindMemAddr:
			return insts.New(opcode, insts.ModeMemory, 0, 0, ops[0].num), nil
		case kindMemReg:
			return insts.New(opcode, insts.ModeRegisterIndirect, ops[0].reg, 0, 0), nil
		}

	case insts.OpLOAD:
		if len(ops) != 2 || ops[0].kind != kindRegister {
			return bad("expects a destination register and an address")
		}
		switch ops[1].kind {
		case kindMemAddr, kindNumber:
			return insts.New(opcode, insts.ModeImmediate, ops[0].reg, 0, ops[1].num), nil
		case kindMemReg, kindRegister:
			return insts.New(opcode, insts.ModeRegister, ops[0].reg, ops[1].reg, 0), nil
		}

	case insts.OpSTORE:
		if len(ops) != 2 || ops[1].kind != kindRegister {
			return bad("expects an address and a source register")
		}
		switch ops[0].kind {
		case kindMemAddr, kindNumber:
			return insts.New(opcode, insts.ModeImmediate, 0, ops[1].reg, ops[0].num), nil
		case kindMemReg:
			return insts.New(opcode, insts.ModeRegister, ops[0].reg, ops[1].reg, 0), nil
		}
		return bad("address must be [addr] or [Rn]")

	case insts.OpJMP, insts.OpJZ, insts.OpJNZ, insts.OpJEQ, insts.OpJNE,
		insts.OpJC, insts.OpJNC, insts.OpJL, insts.OpJLE,
		insts.OpJG, insts.OpJGE, insts.OpCALL:
		if len(ops) != 1 {
			return bad("expects one target")
		}
		switch ops[0].kind {
		case kindNumber:
			return insts.New(opcode, insts.ModeImmediate, 0, 0, ops[0].num), nil
		case kindRegister:
			return insts.New(opcode, insts.ModeRegister, 0, ops[0].reg, 0), nil
		case kindMemAddr:
			return insts.New(opcode, insts.ModeMemory, 0, 0, ops[0].num), nil
		}
		return bad("target must be a label, address or register")

	case insts.OpLOOP:
		if len(ops) != 2 || ops[0].kind != kindRegister {
			return bad("expects a counter register and a target")
		}
		switch ops[1].kind {
		case kindNumber:
			return insts.New(opcode, insts.ModeImmediate, ops[0].reg, 0, ops[1].num), nil
		case kindRegister:
			return insts.New(opcode, insts.ModeRegister, ops[0].reg, ops[1].reg, 0), nil
		}
		return bad("target must be a label, address or register")

	case insts.OpIN, insts.OpOUT:
		if len(ops) != 2 || ops[0].kind != kindRegister || ops[1].kind != kindNumber {
			return bad("expects a register and a port number")
		}
		return insts.New(opcode, insts.ModeImmediate, ops[0].reg, 0, ops[1].num), nil

	case insts.OpRET, insts.OpNOP, insts.OpHLT:
		if len(ops) != 0 {
			return bad("takes no operands")
		}
		return insts.New(opcode, insts.ModeRegister, 0, 0, 0), nil
	}

	return bad("unsupported operand combination")
}

// encodeSecondOperand encodes the common "OP Rd, src" shape where the
// source follows the full addressing-mode rules.
func encodeSecondOperand(opcode insts.Opcode, rd uint8, src operand) uint64 {
	switch src.kind {
	case kindRegister:
		return insts.New(opcode, insts.ModeRegister, rd, src.reg, 0)
	case kindNumber:
		return insts.New(opcode, insts.ModeImmediate, rd, 0, src.num)
	case kindMemAddr:
		return insts.New(opcode, insts.ModeMemory, rd, 0, src.num)
	default: // kindMemReg
		return insts.New(opcode, insts.ModeRegisterIndirect, rd, src.reg, 0)
	}
}

func parseRegister(s string) (uint8, error) {
	n, err := strconv.ParseUint(s[1:], 10, 8)
	if err != nil || n >= 16 {
		return 0, fmt.Errorf("invalid register %q", s)
	}
	return uint8(n), nil
}

func parseNumber(s string) (uint32, error) {
	s = strings.TrimPrefix(s, "#")
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if n > 0xFFFFFFFF {
		return 0, fmt.Errorf("number %q exceeds 32 bits", s)
	}
	return uint32(n), nil
}
