// Package samples provides canned demonstration programs for the VM.
// Each program is a ready-to-load instruction vector with its expected
// behavior described, mirroring the firmwares the interactive tooling
// hands out.
package samples

import (
	"github.com/jmfrouin/vm/emu"
	"github.com/jmfrouin/vm/insts"
)

// Program is a named demonstration program.
type Program struct {
	Name        string
	Description string
	EntryPoint  uint64
	Words       []uint64
}

// All returns the standard demonstration programs.
func All() []Program {
	return []Program{
		Arithmetic(),
		CompareBranch(),
		StackLifo(),
		MemoryRoundTrip(),
		Countdown(),
		CallReturn(),
		Clock(),
	}
}

// ByName looks a demonstration program up by name.
func ByName(name string) (Program, bool) {
	for _, p := range All() {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}

// Arithmetic adds two immediates and round-trips the sum through the
// stack. Halts with R2 = 52.
func Arithmetic() Program {
	return Program{
		Name:        "arithmetic",
		Description: "42 + 10 through the stack; halts with R2 = 52",
		Words: []uint64{
			insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 42),
			insts.New(insts.OpMOV, insts.ModeImmediate, 1, 0, 10),
			insts.New(insts.OpADD, insts.ModeRegister, 0, 1, 0),
			insts.New(insts.OpPUSH, insts.ModeRegister, 0, 0, 0),
			insts.New(insts.OpPOP, insts.ModeRegister, 2, 0, 0),
			insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),
		},
	}
}

// CompareBranch compares two equal values and takes the JEQ path.
// Halts with R2 = 42 (999 on the untaken path).
func CompareBranch() Program {
	return Program{
		Name:        "branch",
		Description: "CMP + JEQ over equal values; halts with R2 = 42",
		Words: []uint64{
			insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 10), // 0x00
			insts.New(insts.OpMOV, insts.ModeImmediate, 1, 0, 10), // 0x08
			insts.New(insts.OpCMP, insts.ModeRegister, 0, 1, 0),   // 0x10
			insts.New(insts.OpJEQ, insts.ModeImmediate, 0, 0, 0x40), // 0x18
			insts.New(insts.OpMOV, insts.ModeImmediate, 2, 0, 999),  // 0x20
			insts.New(insts.OpJMP, insts.ModeImmediate, 0, 0, 0x60), // 0x28
			insts.New(insts.OpNOP, insts.ModeRegister, 0, 0, 0),     // 0x30
			insts.New(insts.OpNOP, insts.ModeRegister, 0, 0, 0),     // 0x38
			insts.New(insts.OpMOV, insts.ModeImmediate, 2, 0, 42),   // 0x40
			insts.New(insts.OpNOP, insts.ModeRegister, 0, 0, 0),     // 0x48
			insts.New(insts.OpNOP, insts.ModeRegister, 0, 0, 0),     // 0x50
			insts.New(insts.OpNOP, insts.ModeRegister, 0, 0, 0),     // 0x58
			insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),     // 0x60
		},
	}
}

// StackLifo pushes three values and pops them back in reverse.
// Halts with R3 = 100, R4 = 200, R5 = 300.
func StackLifo() Program {
	return Program{
		Name:        "stack",
		Description: "LIFO order through PUSH/POP; halts with R3..R5 = 100, 200, 300",
		Words: []uint64{
			insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 100),
			insts.New(insts.OpMOV, insts.ModeImmediate, 1, 0, 200),
			insts.New(insts.OpMOV, insts.ModeImmediate, 2, 0, 300),
			insts.New(insts.OpPUSH, insts.ModeRegister, 0, 0, 0),
			insts.New(insts.OpPUSH, insts.ModeRegister, 1, 0, 0),
			insts.New(insts.OpPUSH, insts.ModeRegister, 2, 0, 0),
			insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 0),
			insts.New(insts.OpMOV, insts.ModeImmediate, 1, 0, 0),
			insts.New(insts.OpMOV, insts.ModeImmediate, 2, 0, 0),
			insts.New(insts.OpPOP, insts.ModeRegister, 5, 0, 0),
			insts.New(insts.OpPOP, insts.ModeRegister, 4, 0, 0),
			insts.New(insts.OpPOP, insts.ModeRegister, 3, 0, 0),
			insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),
		},
	}
}

// MemoryRoundTrip stores a value in the DATA segment and loads it back.
// Halts with R2 = 0x3039.
func MemoryRoundTrip() Program {
	return Program{
		Name:        "memory",
		Description: "store/load round trip through the DATA segment; halts with R2 = 0x3039",
		Words: []uint64{
			insts.New(insts.OpMOV, insts.ModeImmediate, 1, 0, 0x3039),
			insts.New(insts.OpSTORE, insts.ModeImmediate, 0, 1, emu.DataBase),
			insts.New(insts.OpMOV, insts.ModeImmediate, 1, 0, 0),
			insts.New(insts.OpLOAD, insts.ModeImmediate, 2, 0, emu.DataBase),
			insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),
		},
	}
}

// Countdown prints 5 down to 1 with a LOOP.
func Countdown() Program {
	return Program{
		Name:        "countdown",
		Description: "LOOP-driven countdown; prints 5..1",
		Words: []uint64{
			insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 5),     // 0x00
			insts.New(insts.OpPRINT, insts.ModeRegister, 0, 0, 0),    // 0x08
			insts.New(insts.OpLOOP, insts.ModeImmediate, 0, 0, 0x08), // 0x10
			insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),      // 0x18
		},
	}
}

// CallReturn calls a subroutine that adds 35. Halts with R0 = 42.
func CallReturn() Program {
	return Program{
		Name:        "call",
		Description: "CALL/RET round trip; halts with R0 = 42",
		Words: []uint64{
			insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 7),     // 0x00
			insts.New(insts.OpCALL, insts.ModeImmediate, 0, 0, 0x18), // 0x08
			insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),      // 0x10
			insts.New(insts.OpADD, insts.ModeImmediate, 0, 0, 35),    // 0x18
			insts.New(insts.OpRET, insts.ModeRegister, 0, 0, 0),      // 0x20
		},
	}
}

// Clock reads the timer port and echoes it back in hex.
func Clock() Program {
	return Program{
		Name:        "clock",
		Description: "reads wall-clock seconds from port 1 and emits them in hex",
		Words: []uint64{
			insts.New(insts.OpIN, insts.ModeImmediate, 0, 0, emu.PortTimer),
			insts.New(insts.OpOUT, insts.ModeImmediate, 0, 0, emu.PortTimer),
			insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),
		},
	}
}
