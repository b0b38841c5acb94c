package emu

// LoadStoreUnit implements memory-facing data movement, including the
// full-descending stack discipline.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// Load performs Rd = mem64[addr].
func (lsu *LoadStoreUnit) Load(rd uint8, addr uint64) error {
	value, err := lsu.memory.Read64(addr)
	if err != nil {
		return err
	}
	lsu.regFile.WriteReg(rd, value)
	return nil
}

// Store performs mem64[addr] = Rs.
func (lsu *LoadStoreUnit) Store(addr uint64, rs uint8) error {
	return lsu.memory.Write64(addr, lsu.regFile.ReadReg(rs))
}

// Push stores value at SP-8, then commits the new SP. A failed store
// leaves SP unchanged.
func (lsu *LoadStoreUnit) Push(value uint64) error {
	addr := lsu.regFile.SP - 8
	if err := lsu.memory.Write64(addr, value); err != nil {
		return err
	}
	lsu.regFile.SP = addr
	return nil
}

// Pop loads the value at SP into Rd, then commits the new SP. A failed
// load leaves SP and Rd unchanged.
func (lsu *LoadStoreUnit) Pop(rd uint8) error {
	value, err := lsu.memory.Read64(lsu.regFile.SP)
	if err != nil {
		return err
	}
	lsu.regFile.WriteReg(rd, value)
	lsu.regFile.SP += 8
	return nil
}

// PopValue pops the top of stack without a register destination.
func (lsu *LoadStoreUnit) PopValue() (uint64, error) {
	value, err := lsu.memory.Read64(lsu.regFile.SP)
	if err != nil {
		return 0, err
	}
	lsu.regFile.SP += 8
	return value, nil
}
