package simulator

import "math/rand"

// hysteresisBand is subtracted from the target occupation to form the
// low-water mark a nearly-full drain stops at, so a single migration cannot
// immediately re-trigger the event.
const hysteresisBand = 0.15

// policyBase carries what every placement policy needs: the tier it watches
// and the storage manager it requests migrations through. A policy must
// never mutate tier content directly.
type policyBase struct {
	tier    *Tier
	storage *StorageManager
}

// lowWater returns the drain stop threshold in bytes.
func (p *policyBase) lowWater() float64 {
	return float64(p.tier.maxSize) * (p.tier.targetOccupation - hysteresisBand)
}

// overLowWater reports whether the tier still holds more than the low-water
// mark.
func (p *policyBase) overLowWater() bool {
	return float64(p.tier.usedSize) > p.lowWater()
}

// nextTier returns the drain target, or nil when the watched tier is the
// last of the stack. The nil case is reported as a tier-exhausted warning.
func (p *policyBase) nextTier() *Tier {
	next := p.storage.NextTier(p.tier)
	if next == nil {
		p.tier.recordExhausted()
	}
	return next
}

// migrate relocates file to target, routing fatal errors to the storage
// manager since listener callbacks have no error return.
func (p *policyBase) migrate(file *File, target *Tier) {
	if _, err := p.storage.Migrate(file, target, p.storage.clock.Now()); err != nil {
		p.storage.fail(err)
	}
}

// PolicyNames lists the selectable policy names, in the order the CLI
// expands "all" to.
func PolicyNames() []string {
	return []string{"lru", "fifo", "lifetime", "criteria", "random"}
}

// CreatePolicy builds the named policy attached to tier. lifetimes feeds the
// lifetime-aware policies (lifetime, criteria) and may be nil for the
// others; rng seeds the random policy.
func CreatePolicy(name string, tier *Tier, storage *StorageManager, lifetimes map[string]float64, rng *rand.Rand) (TierListener, error) {
	switch name {
	case "lru":
		return NewLRUPolicy(tier, storage), nil
	case "fifo":
		return NewFIFOPolicy(tier, storage), nil
	case "random":
		return NewRandomPolicy(tier, storage, rng), nil
	case "lifetime":
		return NewLifetimeOverrunPolicy(tier, storage, lifetimes), nil
	case "criteria":
		return NewCriteriaPolicy(tier, storage, lifetimes), nil
	default:
		return nil, &UnknownPolicyError{Name: name}
	}
}
