package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds latency values per instruction class, in cycles. The
// defaults model a simple single-issue educational core.
type Config struct {
	// ALULatency covers ADD, SUB, INC, DEC, CMP, SWAP and the logical
	// and shift operations. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// MultiplyLatency is the latency for MUL. Default: 3 cycles.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// DivideLatency is the latency for DIV and MOD. Default: 12
	// cycles.
	DivideLatency uint64 `json:"divide_latency"`

	// BranchLatency covers JMP, the conditional jumps, LOOP, CALL and
	// RET. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// LoadLatency is the latency for LOAD and POP. When a cache model
	// is attached, its hit or miss latency is added on top; memory
	// operands of other instructions are charged only through the
	// cache model. Default: 4 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency for writes to RAM (STORE, PUSH).
	// Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// IOLatency is the latency for IN, OUT and PRINT. Default: 20
	// cycles.
	IOLatency uint64 `json:"io_latency"`

	// MemoryLatency is the RAM access time charged on a cache miss
	// when a cache model is attached. Default: 50 cycles.
	MemoryLatency uint64 `json:"memory_latency"`
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		ALULatency:      1,
		MultiplyLatency: 3,
		DivideLatency:   12,
		BranchLatency:   1,
		LoadLatency:     4,
		StoreLatency:    1,
		IOLatency:       20,
		MemoryLatency:   50,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep
// their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *Config) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.DivideLatency == 0 {
		return fmt.Errorf("divide_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.IOLatency == 0 {
		return fmt.Errorf("io_latency must be > 0")
	}
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	return nil
}
