package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/jmfrouin/vm/insts"
)

// State describes where the CPU is in its lifecycle.
type State uint8

// CPU lifecycle states.
const (
	StateFresh State = iota
	StateLoaded
	StateRunning
	StateHalted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	}
	return "?"
}

// StepResult represents the outcome of executing a single instruction.
type StepResult struct {
	// Halted is true if the CPU is no longer running after the step.
	Halted bool

	// Err is set if an error occurred during execution. Errors halt
	// the CPU.
	Err error
}

// CycleModel estimates the cost of an instruction in cycles. It is
// consulted before execution with the pre-execution register state and
// must not mutate anything: cycle accounting is observability only.
type CycleModel interface {
	Cycles(inst *insts.Instruction, regs *RegFile) uint64
}

// Emulator is the CPU: it fetches 64-bit instruction words from its
// memory, decodes them, and executes them against the register file.
// The memory is borrowed for the emulator's lifetime; the vm façade
// owns both.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	branchUnit *BranchUnit
	lsu        *LoadStoreUnit
	bus        *PortBus

	// I/O
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Observability toggles; these never change execution semantics.
	debug      bool
	stepByStep bool

	// Execution state
	state            State
	running          bool
	instructionCount uint64
	cycleCount       uint64
	maxInstructions  uint64 // 0 means no limit
	cycleModel       CycleModel
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer (PRINT and port output).
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer (trace and fault diagnostics).
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithStdin sets a custom input reader (console port, step pauses).
func WithStdin(r io.Reader) EmulatorOption {
	return func(e *Emulator) {
		e.stdin = r
	}
}

// WithMaxInstructions sets the maximum number of instructions to
// execute. A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithCycleModel attaches a cycle estimator.
func WithCycleModel(m CycleModel) EmulatorOption {
	return func(e *Emulator) {
		e.cycleModel = m
	}
}

// NewEmulator creates a CPU bound to the given memory.
func NewEmulator(memory *Memory, opts ...EmulatorOption) *Emulator {
	regFile := &RegFile{}

	e := &Emulator{
		regFile: regFile,
		memory:  memory,
		decoder: insts.NewDecoder(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.alu = NewALU(regFile)
	e.branchUnit = NewBranchUnit(regFile)
	e.lsu = NewLoadStoreUnit(regFile, memory)
	e.bus = NewPortBus(e.stdin, e.stdout)

	e.Reset()

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the memory the emulator executes against.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// Bus returns the I/O port bus.
func (e *Emulator) Bus() *PortBus {
	return e.bus
}

// InstructionCount returns the number of instructions executed since
// the last reset.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// CycleCount returns the estimated cycle count since the last reset.
// Always 0 unless a CycleModel is attached.
func (e *Emulator) CycleCount() uint64 {
	return e.cycleCount
}

// State returns the CPU lifecycle state.
func (e *Emulator) State() State {
	return e.state
}

// Running reports whether the CPU is executing.
func (e *Emulator) Running() bool {
	return e.running
}

// Reset zeroes registers and flags, sets PC to 0 and SP to 16 bytes
// below the top of memory, and stops execution.
func (e *Emulator) Reset() {
	*e.regFile = RegFile{}
	e.regFile.SP = e.memory.Size() - stackMargin
	e.running = false
	e.state = StateFresh
	e.instructionCount = 0
	e.cycleCount = 0
}

// Halt stops execution. Safe to call between steps.
func (e *Emulator) Halt() {
	e.halt()
}

func (e *Emulator) halt() {
	e.running = false
	e.state = StateHalted
}

// Start marks the CPU as running without executing anything.
func (e *Emulator) Start() {
	e.running = true
	e.state = StateRunning
}

// EnableDebug toggles the per-instruction trace.
func (e *Emulator) EnableDebug(enable bool) {
	e.debug = enable
}

// EnableStepByStep toggles the pause-for-input between instructions.
func (e *Emulator) EnableStepByStep(enable bool) {
	e.stepByStep = enable
}

// GetRegister reads general register i. Out-of-range reads return 0.
func (e *Emulator) GetRegister(reg uint8) uint64 {
	return e.regFile.ReadReg(reg)
}

// SetRegister writes general register i. Out-of-range writes are
// ignored.
func (e *Emulator) SetRegister(reg uint8, value uint64) {
	e.regFile.WriteReg(reg, value)
}

// PC returns the program counter.
func (e *Emulator) PC() uint64 {
	return e.regFile.PC
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(addr uint64) {
	e.regFile.PC = addr
	if e.state == StateFresh {
		e.state = StateLoaded
	}
}

// SP returns the stack pointer.
func (e *Emulator) SP() uint64 {
	return e.regFile.SP
}

// SetSP sets the stack pointer.
func (e *Emulator) SetSP(addr uint64) {
	e.regFile.SP = addr
}

// GetFlag reads a condition flag.
func (e *Emulator) GetFlag(flag Flag) bool {
	return e.regFile.GetFlag(flag)
}

// SetFlag writes a condition flag.
func (e *Emulator) SetFlag(flag Flag, value bool) {
	e.regFile.SetFlag(flag, value)
}

// Step fetches, decodes and executes one instruction. It is a no-op
// when the CPU is not running. A fault halts the CPU and surfaces in
// the result.
func (e *Emulator) Step() StepResult {
	if !e.running {
		return StepResult{Halted: true}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		e.halt()
		return StepResult{Halted: true, Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC

	// Fetch. The covering segment must be executable; the word read
	// itself goes through the byte-wise READ path.
	if err := e.memory.CheckExecutable(pc); err != nil {
		return e.fault(err)
	}
	word, err := e.memory.Read64(pc)
	if err != nil {
		return e.fault(err)
	}
	e.regFile.PC += 8

	// Decode
	inst, err := e.decoder.Decode(word)
	if err != nil {
		return e.fault(fmt.Errorf("at PC 0x%X: %w", pc, err))
	}

	if e.debug {
		fmt.Fprintf(e.stderr, "PC: 0x%06X  %-5s %s r1=%d r2=%d imm=0x%X\n",
			pc, inst.Opcode, inst.Mode, inst.Reg1, inst.Reg2, inst.Imm)
	}
	if e.stepByStep {
		e.waitForKey()
	}

	if e.cycleModel != nil {
		e.cycleCount += e.cycleModel.Cycles(inst, e.regFile)
	}

	// Execute
	if err := e.execute(inst); err != nil {
		return e.fault(err)
	}

	e.instructionCount++

	return StepResult{Halted: !e.running}
}

// Run executes instructions until HLT, a fault, or an external Halt.
// It returns nil on a clean HLT.
func (e *Emulator) Run() error {
	e.Start()
	for e.running {
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
	}
	return nil
}

// fault logs the error, halts the CPU, and reports it in the result.
func (e *Emulator) fault(err error) StepResult {
	fmt.Fprintf(e.stderr, "execution fault: %v\n", err)
	e.halt()
	return StepResult{Halted: true, Err: err}
}

// waitForKey blocks until a newline arrives on stdin. Observability
// only.
func (e *Emulator) waitForKey() {
	fmt.Fprint(e.stderr, "-- press Enter to step --\n")
	buf := make([]byte, 1)
	for {
		n, err := e.stdin.Read(buf)
		if err != nil || (n > 0 && buf[0] == '\n') {
			return
		}
	}
}

// operandReg selects the register field for an operand role.
func operandReg(inst *insts.Instruction, role int) uint8 {
	if role == 2 {
		return inst.Reg2
	}
	return inst.Reg1
}

// operand resolves an operand value according to the addressing mode.
func (e *Emulator) operand(inst *insts.Instruction, role int) (uint64, error) {
	reg := operandReg(inst, role)

	switch inst.Mode {
	case insts.ModeRegister:
		return e.regFile.ReadReg(reg), nil
	case insts.ModeImmediate:
		return uint64(inst.Imm), nil
	case insts.ModeMemory:
		return e.memory.Read64(uint64(inst.Imm))
	case insts.ModeRegisterIndirect:
		return e.memory.Read64(e.regFile.ReadReg(reg))
	}
	return 0, nil
}

// setOperand writes a value back through the addressing mode. An
// IMMEDIATE destination falls through to writing the register field,
// so MOV Rn, #imm lands in Rn.
func (e *Emulator) setOperand(inst *insts.Instruction, value uint64, role int) error {
	reg := operandReg(inst, role)

	switch inst.Mode {
	case insts.ModeRegister, insts.ModeImmediate:
		e.regFile.WriteReg(reg, value)
		return nil
	case insts.ModeMemory:
		return e.memory.Write64(uint64(inst.Imm), value)
	case insts.ModeRegisterIndirect:
		return e.memory.Write64(e.regFile.ReadReg(reg), value)
	}
	return nil
}

// execute dispatches a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) error {
	switch inst.Opcode {
	// Data movement
	case insts.OpMOV:
		value, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		return e.setOperand(inst, value, 1)

	case insts.OpLOAD:
		addr, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		return e.lsu.Load(inst.Reg1, addr)

	case insts.OpSTORE:
		addr, err := e.operand(inst, 1)
		if err != nil {
			return err
		}
		return e.lsu.Store(addr, inst.Reg2)

	case insts.OpPUSH:
		value, err := e.operand(inst, 1)
		if err != nil {
			return err
		}
		return e.lsu.Push(value)

	case insts.OpPOP:
		return e.lsu.Pop(inst.Reg1)

	case insts.OpHLT:
		e.halt()
		return nil

	// Arithmetic
	case insts.OpADD:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Add(inst.Reg1, op2)
		return nil

	case insts.OpSUB:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Sub(inst.Reg1, op2)
		return nil

	case insts.OpMUL:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Mul(inst.Reg1, op2)
		return nil

	case insts.OpDIV:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		return e.alu.Div(inst.Reg1, op2)

	case insts.OpMOD:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		return e.alu.Mod(inst.Reg1, op2)

	case insts.OpINC:
		e.alu.Inc(inst.Reg1)
		return nil

	case insts.OpDEC:
		e.alu.Dec(inst.Reg1)
		return nil

	case insts.OpCMP:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Cmp(e.regFile.ReadReg(inst.Reg1), op2)
		return nil

	case insts.OpSWAP:
		e.alu.Swap(inst.Reg1, inst.Reg2)
		return nil

	// Logical
	case insts.OpAND:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.And(inst.Reg1, op2)
		return nil

	case insts.OpOR:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Or(inst.Reg1, op2)
		return nil

	case insts.OpXOR:
		op2, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Xor(inst.Reg1, op2)
		return nil

	case insts.OpNOT:
		e.alu.Not(inst.Reg1)
		return nil

	case insts.OpSHL:
		count, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Shl(inst.Reg1, count)
		return nil

	case insts.OpSHR:
		count, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.alu.Shr(inst.Reg1, count)
		return nil

	// Control flow
	case insts.OpJMP:
		target, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		e.branchUnit.Jump(target)
		return nil

	case insts.OpJZ, insts.OpJEQ:
		return e.condJump(inst, CondZ)
	case insts.OpJNZ, insts.OpJNE:
		return e.condJump(inst, CondNZ)
	case insts.OpJC:
		return e.condJump(inst, CondC)
	case insts.OpJNC:
		return e.condJump(inst, CondNC)
	case insts.OpJL:
		return e.condJump(inst, CondL)
	case insts.OpJLE:
		return e.condJump(inst, CondLE)
	case insts.OpJG:
		return e.condJump(inst, CondG)
	case insts.OpJGE:
		return e.condJump(inst, CondGE)

	case insts.OpLOOP:
		// Decrement the counter without touching flags; branch while
		// it is non-zero.
		count := e.regFile.ReadReg(inst.Reg1) - 1
		e.regFile.WriteReg(inst.Reg1, count)
		if count != 0 {
			target, err := e.operand(inst, 2)
			if err != nil {
				return err
			}
			e.branchUnit.Jump(target)
		}
		return nil

	case insts.OpCALL:
		target, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		// The return address is the post-fetch PC: the instruction
		// right after the CALL.
		if err := e.lsu.Push(e.regFile.PC); err != nil {
			return err
		}
		e.branchUnit.Jump(target)
		return nil

	case insts.OpRET:
		addr, err := e.lsu.PopValue()
		if err != nil {
			return err
		}
		e.branchUnit.Jump(addr)
		return nil

	case insts.OpNOP:
		return nil

	// System
	case insts.OpPRINT:
		value, err := e.operand(inst, 1)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%d\n", value)
		return nil

	case insts.OpIN:
		port, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		value, err := e.bus.Read(uint8(port))
		if err != nil {
			return err
		}
		e.regFile.WriteReg(inst.Reg1, value)
		return nil

	case insts.OpOUT:
		port, err := e.operand(inst, 2)
		if err != nil {
			return err
		}
		return e.bus.Write(uint8(port), e.regFile.ReadReg(inst.Reg1))
	}

	// Unreachable: the decoder rejects unknown opcodes.
	return fmt.Errorf("opcode 0x%02X: %w", uint8(inst.Opcode), insts.ErrIllegalOpcode)
}

// condJump branches to the second-operand target when cond holds.
func (e *Emulator) condJump(inst *insts.Instruction, cond Cond) error {
	target, err := e.operand(inst, 2)
	if err != nil {
		return err
	}
	if e.branchUnit.CheckCondition(cond) {
		e.branchUnit.Jump(target)
	}
	return nil
}

// HandleInterrupt pushes PC then FLAGS, loads PC from the vector table
// at the bottom of memory, and clears the INTERRUPT flag. The current
// ISA never triggers this path; it exists for future instructions.
func (e *Emulator) HandleInterrupt(num int) error {
	if err := e.lsu.Push(e.regFile.PC); err != nil {
		return err
	}
	if err := e.lsu.Push(uint64(e.regFile.Flags)); err != nil {
		return err
	}

	handler, err := e.memory.Read64(uint64(num) * 8)
	if err != nil {
		return err
	}
	e.regFile.PC = handler
	e.regFile.SetFlag(FlagInterrupt, false)

	return nil
}
