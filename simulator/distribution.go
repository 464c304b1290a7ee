package simulator

import (
	"fmt"
	"math"
	"math/rand"
)

// DistributionType selects how the synthetic trace generator samples values
// such as file sizes and inter-arrival gaps.
type DistributionType int

const (
	DistUniform DistributionType = iota
	DistExponential
	DistFixed
)

func (dt DistributionType) String() string {
	switch dt {
	case DistUniform:
		return "uniform"
	case DistExponential:
		return "exponential"
	case DistFixed:
		return "fixed"
	default:
		return fmt.Sprintf("unknown(%d)", int(dt))
	}
}

// ParseDistributionType parses a string into a DistributionType.
func ParseDistributionType(s string) (DistributionType, error) {
	switch s {
	case "uniform":
		return DistUniform, nil
	case "exponential":
		return DistExponential, nil
	case "fixed":
		return DistFixed, nil
	default:
		return DistUniform, fmt.Errorf("invalid DistributionType: %s (must be 'uniform', 'exponential', or 'fixed')", s)
	}
}

// Distribution samples integer values in [min, max] from an injected
// generator, so synthetic workloads stay reproducible under a fixed seed.
type Distribution interface {
	Sample(rng *rand.Rand, min, max int64) int64
}

// NewDistribution builds a distribution of the given type with its default
// shape parameter.
func NewDistribution(dt DistributionType) Distribution {
	switch dt {
	case DistExponential:
		return &ExponentialDistribution{Lambda: 0.5}
	case DistFixed:
		return &FixedDistribution{Percentage: 0.5}
	default:
		return &UniformDistribution{}
	}
}

// UniformDistribution samples uniformly between min and max.
type UniformDistribution struct{}

func (d *UniformDistribution) Sample(rng *rand.Rand, min, max int64) int64 {
	if min >= max {
		return min
	}
	return min + rng.Int63n(max-min+1)
}

// ExponentialDistribution samples with exponential bias toward min. The draw
// is scaled by a clamp point of 6/Lambda, so Lambda cancels out and every
// Lambda yields the same distribution over [min, max].
type ExponentialDistribution struct {
	Lambda float64
}

func (d *ExponentialDistribution) Sample(rng *rand.Rand, min, max int64) int64 {
	if min >= max {
		return min
	}
	u := rng.Float64()
	if u == 0 {
		u = 1e-10
	}
	x := -math.Log(u) / d.Lambda

	// Clamp at 6/Lambda, under which about 99.75% of the mass falls, then
	// scale to range.
	maxVal := 6.0 / d.Lambda
	normalized := math.Min(x/maxVal, 1.0)
	return min + int64(normalized*float64(max-min))
}

// FixedDistribution always returns the same position within the range.
type FixedDistribution struct {
	Percentage float64 // position in [0,1]
}

func (d *FixedDistribution) Sample(rng *rand.Rand, min, max int64) int64 {
	if min >= max {
		return min
	}
	pct := math.Min(math.Max(d.Percentage, 0), 1)
	v := min + int64(pct*float64(max-min))
	if v > max {
		return max
	}
	return v
}
