package front

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fetchsim/fetchsim/insts"
)

// Config holds the front-end configuration.
type Config struct {
	// SlotsPerBundle is the number of instruction slots per fetch bundle.
	// Default: 4.
	SlotsPerBundle int `json:"slots_per_bundle"`

	// ResetPC is the boot address output unconditionally on the first
	// tick after reset. Default: 0x8000_0000.
	ResetPC uint64 `json:"reset_pc"`

	// TrapVector is the redirect target for the exception/interrupt
	// redirect source. Default: 0x8000_0040.
	TrapVector uint64 `json:"trap_vector"`

	// DebugHaltAddress is the fixed redirect target for debug entry,
	// the highest-priority redirect source. Default: 0xFFFF_0800.
	DebugHaltAddress uint64 `json:"debug_halt_address"`
}

// DefaultConfig returns the default front-end configuration.
func DefaultConfig() *Config {
	return &Config{
		SlotsPerBundle:   4,
		ResetPC:          0x8000_0000,
		TrapVector:       0x8000_0040,
		DebugHaltAddress: 0xFFFF_0800,
	}
}

// BundleBytes returns the fetch block size in bytes.
func (c *Config) BundleBytes() uint64 {
	return uint64(c.SlotsPerBundle) * insts.WordBytes
}

// LoadConfig loads a Config from a JSON file. Fields absent from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read front-end config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse front-end config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize front-end config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write front-end config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.SlotsPerBundle <= 0 {
		return fmt.Errorf("slots_per_bundle must be > 0")
	}
	if c.ResetPC%insts.WordBytes != 0 {
		return fmt.Errorf("reset_pc must be word aligned")
	}
	if c.TrapVector%insts.WordBytes != 0 {
		return fmt.Errorf("trap_vector must be word aligned")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
