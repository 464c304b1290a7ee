package simulator

import "math/rand"

// RandomPolicy evicts uniformly sampled candidates. The generator is
// injected so runs stay reproducible under a fixed seed.
type RandomPolicy struct {
	policyBase
	rng        *rand.Rand
	candidates []string
}

// NewRandomPolicy creates a random policy attached to tier.
func NewRandomPolicy(tier *Tier, storage *StorageManager, rng *rand.Rand) *RandomPolicy {
	p := &RandomPolicy{
		policyBase: policyBase{tier: tier, storage: storage},
		rng:        rng,
	}
	tier.AddListener(p)
	return p
}

func (p *RandomPolicy) OnFileCreated(f *File) {
	p.candidates = append(p.candidates, f.Path)
}

// OnFileDeleted keeps the candidate list as-is: stale entries are cheaper to
// skip at drain time than to search out on every delete.
func (p *RandomPolicy) OnFileDeleted(f *File) {}

func (p *RandomPolicy) OnFileAccess(f *File, isWrite bool) {}

func (p *RandomPolicy) OnTierNearlyFull() {
	target := p.nextTier()
	if target == nil {
		return
	}
	for p.overLowWater() && len(p.candidates) > 0 {
		i := p.rng.Intn(len(p.candidates))
		path := p.candidates[i]
		p.candidates[i] = p.candidates[len(p.candidates)-1]
		p.candidates = p.candidates[:len(p.candidates)-1]

		file := p.tier.File(path)
		if file == nil {
			continue
		}
		p.migrate(file, target)
	}
}
