// Package vm ties a Memory and an Emulator together behind the
// load/run/step/reset surface that external collaborators use.
package vm

import (
	"errors"
	"fmt"
	"io"

	"github.com/jmfrouin/vm/emu"
	"github.com/jmfrouin/vm/loader"
)

// DefaultMemorySize is the RAM size used when the caller does not
// choose one. Large enough to hold the four default segments without
// overlap.
const DefaultMemorySize = 16 * 1024 * 1024

// ErrLoadTooLarge is returned when a program would extend past the end
// of memory, and for an empty program.
var ErrLoadTooLarge = errors.New("program too large for memory")

// VM owns one Memory and one Emulator and guarantees the CPU never
// outlives the memory it executes against.
type VM struct {
	memory *emu.Memory
	cpu    *emu.Emulator
}

// New creates a virtual machine with the given memory size. Emulator
// options (output writers, instruction limits, cycle models) pass
// through.
func New(memorySize uint64, opts ...emu.EmulatorOption) *VM {
	memory := emu.NewMemory(memorySize)
	return &VM{
		memory: memory,
		cpu:    emu.NewEmulator(memory, opts...),
	}
}

// Memory returns the VM's memory.
func (v *VM) Memory() *emu.Memory {
	return v.memory
}

// CPU returns the VM's CPU.
func (v *VM) CPU() *emu.Emulator {
	return v.cpu
}

// LoadProgram writes the instruction words into memory starting at
// base and points the PC at them.
func (v *VM) LoadProgram(words []uint64, base uint64) error {
	if len(words) == 0 {
		return fmt.Errorf("empty program: %w", ErrLoadTooLarge)
	}

	size := uint64(len(words)) * 8
	if base+size > v.memory.Size() || base+size < base {
		return fmt.Errorf("program of %d bytes at base 0x%X: %w", size, base, ErrLoadTooLarge)
	}

	for i, word := range words {
		if err := v.memory.Write64(base+uint64(i)*8, word); err != nil {
			return err
		}
	}

	v.cpu.SetPC(base)
	return nil
}

// LoadFirmware writes a firmware image's words from address 0 and
// points the PC at its entry point.
func (v *VM) LoadFirmware(fw *loader.Firmware) error {
	if err := v.LoadProgram(fw.Words, 0); err != nil {
		return err
	}
	v.cpu.SetPC(fw.EntryPoint)
	return nil
}

// Run executes until HLT, a fault, or Stop. Returns nil on a clean
// halt.
func (v *VM) Run() error {
	return v.cpu.Run()
}

// Step executes a single instruction, starting the CPU if needed.
func (v *VM) Step() error {
	if !v.cpu.Running() {
		v.cpu.Start()
	}
	return v.cpu.Step().Err
}

// Stop halts the CPU between instructions.
func (v *VM) Stop() {
	v.cpu.Halt()
}

// Reset zeroes memory (the segment table is kept) and resets the CPU.
func (v *VM) Reset() {
	v.cpu.Halt()
	v.memory.Clear()
	v.cpu.Reset()
}

// PrintState writes a human-readable CPU summary. Diagnostic only;
// never fails.
func (v *VM) PrintState(w io.Writer) {
	fmt.Fprintf(w, "=== VM State ===\n")
	fmt.Fprintf(w, "State:  %s\n", v.cpu.State())
	fmt.Fprintf(w, "Memory: %d bytes\n", v.memory.Size())
	fmt.Fprintf(w, "PC:     0x%016X\n", v.cpu.PC())
	fmt.Fprintf(w, "SP:     0x%016X\n", v.cpu.SP())
	fmt.Fprintf(w, "Flags:  Z=%d C=%d N=%d O=%d I=%d\n",
		flagBit(v.cpu, emu.FlagZero), flagBit(v.cpu, emu.FlagCarry),
		flagBit(v.cpu, emu.FlagNegative), flagBit(v.cpu, emu.FlagOverflow),
		flagBit(v.cpu, emu.FlagInterrupt))
	v.DumpRegisters(w)
}

// DumpRegisters writes the register file. Diagnostic only.
func (v *VM) DumpRegisters(w io.Writer) {
	for i := uint8(0); i < emu.RegisterCount; i++ {
		fmt.Fprintf(w, "R%-2d: 0x%016X\n", i, v.cpu.GetRegister(i))
	}
}

// DumpMemory writes a hex+ASCII dump of the given span, truncated to
// the memory size. Diagnostic only.
func (v *VM) DumpMemory(w io.Writer, start, length uint64) {
	io.WriteString(w, v.memory.Dump(start, length))
}

func flagBit(cpu *emu.Emulator, flag emu.Flag) int {
	if cpu.GetFlag(flag) {
		return 1
	}
	return 0
}
