package traces

import (
	"math/rand"

	"github.com/Louis-MariePhD/tiersim/simulator"
)

// augmentWarmup is how many records pass through unchanged before re-access
// injection starts, so the synthetic load replays against a populated store.
const augmentWarmup = 1000

// AugmentedTrace wraps a base trace and injects re-accesses of randomly
// chosen earlier records at the current timestamp. The photo and object
// store datasets are dominated by single-access files; augmentation gives
// recency-aware policies something to work with.
type AugmentedTrace struct {
	name      string
	records   []simulator.Record
	lifetimes map[string]float64
}

// Augment derives an augmented trace from base. reaccessChance in [0,1) is
// the probability of drawing each additional re-access after a record
// (geometric, so the expected injection rate is chance/(1-chance)).
// Identical seed and base reproduce the identical stream.
func Augment(base simulator.Trace, reaccessChance float64, seed int64) *AugmentedTrace {
	rng := rand.New(rand.NewSource(seed))
	src := base.Records()

	t := &AugmentedTrace{
		name:      base.Name() + "+augmented",
		records:   make([]simulator.Record, 0, len(src)),
		lifetimes: make(map[string]float64),
	}
	for i, rec := range src {
		t.records = append(t.records, rec)
		if i < augmentWarmup {
			continue
		}
		for rng.Float64() < reaccessChance {
			old := t.records[rng.Intn(len(t.records))]
			old.Timestamp = rec.Timestamp
			t.records = append(t.records, old)
		}
	}

	firstSeen := make(map[string]float64)
	for _, rec := range t.records {
		if first, ok := firstSeen[rec.Path]; ok {
			t.lifetimes[rec.Path] = rec.Timestamp - first
		} else {
			firstSeen[rec.Path] = rec.Timestamp
			t.lifetimes[rec.Path] = 0
		}
	}
	return t
}

func (t *AugmentedTrace) Name() string                  { return t.name }
func (t *AugmentedTrace) Records() []simulator.Record   { return t.records }
func (t *AugmentedTrace) Lifetimes() map[string]float64 { return t.lifetimes }
