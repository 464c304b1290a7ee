package simulator

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TierConfig describes one tier's device model.
type TierConfig struct {
	Name             string  `json:"name"`
	MaxSize          int64   `json:"maxSize"`          // bytes
	Latency          float64 `json:"latency"`          // seconds per operation
	Throughput       float64 `json:"throughput"`       // bytes per second
	TargetOccupation float64 `json:"targetOccupation"` // high-water ratio in [0,1)
}

// SimConfig holds all simulation parameters.
type SimConfig struct {
	Tiers []TierConfig `json:"tiers"` // performance order, index 0 = default tier

	// StrictTrace makes an access to a never-created path fatal instead of
	// performing an implicit create on the default tier.
	StrictTrace bool `json:"strictTrace"`

	// SimulatePerfectPrefetch promotes a file back to the default tier
	// before serving any read that finds it elsewhere.
	SimulatePerfectPrefetch bool `json:"simulatePerfectPrefetch"`

	// Seed drives every random decision (random policy, synthetic traces).
	Seed int64 `json:"seed"`

	// CriteriaWindowSec is the sliding window for the criteria policy's
	// recent-footprint term. 0 selects the default of 30 minutes.
	CriteriaWindowSec float64 `json:"criteriaWindowSec"`
}

// DefaultConfig returns the SSD/HDD/Tapes stack the experiments ran against.
func DefaultConfig() SimConfig {
	return SimConfig{
		Tiers: []TierConfig{
			{Name: "SSD", MaxSize: 2e12, Latency: 100e-6, Throughput: 2e9, TargetOccupation: 0.9},
			{Name: "HDD", MaxSize: 8e12, Latency: 10e-3, Throughput: 250e6, TargetOccupation: 0.9},
			{Name: "Tapes", MaxSize: 20e12, Latency: 20.0, Throughput: 315e6, TargetOccupation: 0.9},
		},
		Seed: 1,
	}
}

// TwoTierConfig returns a small SSD/HDD stack, useful for tests and quick
// experiments.
func TwoTierConfig(ssdSize int64) SimConfig {
	return SimConfig{
		Tiers: []TierConfig{
			{Name: "SSD", MaxSize: ssdSize, Latency: 100e-6, Throughput: 2e9, TargetOccupation: 0.9},
			{Name: "HDD", MaxSize: 1e15, Latency: 10e-3, Throughput: 250e6, TargetOccupation: 0.9},
		},
		Seed: 1,
	}
}

// Validate checks that configuration values are usable.
func (c *SimConfig) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("invalid config: at least one tier required")
	}
	for _, tc := range c.Tiers {
		if tc.Name == "" {
			return fmt.Errorf("invalid config: tier with empty name")
		}
		if tc.MaxSize <= 0 {
			return fmt.Errorf("invalid config: tier %q: maxSize must be > 0", tc.Name)
		}
		if tc.Throughput <= 0 {
			return fmt.Errorf("invalid config: tier %q: throughput must be > 0", tc.Name)
		}
		if tc.Latency < 0 {
			return fmt.Errorf("invalid config: tier %q: latency must be >= 0", tc.Name)
		}
		if tc.TargetOccupation < 0 || tc.TargetOccupation >= 1 {
			return fmt.Errorf("invalid config: tier %q: targetOccupation must be in [0,1)", tc.Name)
		}
	}
	if c.CriteriaWindowSec < 0 {
		return fmt.Errorf("invalid config: criteriaWindowSec must be >= 0")
	}
	return nil
}

// BuildTiers instantiates the tier stack described by the config.
func (c *SimConfig) BuildTiers(log zerolog.Logger) []*Tier {
	tiers := make([]*Tier, 0, len(c.Tiers))
	for _, tc := range c.Tiers {
		tiers = append(tiers, NewTier(tc.Name, tc.MaxSize, tc.Latency, tc.Throughput, tc.TargetOccupation, log))
	}
	return tiers
}
