package simulator

import (
	"math"
	"sort"
)

// DefaultCriteriaWindow is the sliding window, in seconds, over which the
// per-user recent-footprint criterion is computed.
const DefaultCriteriaWindow = 30 * 60

// CriteriaWeights scales the four normalised eviction criteria:
// lifetime progress, size penalty, user footprint, and user footprint within
// the sliding window.
type CriteriaWeights struct {
	Lifetime      float64
	Size          float64
	UserFootprint float64
	UserWindow    float64
}

// DefaultCriteriaWeights weighs every criterion equally.
func DefaultCriteriaWeights() CriteriaWeights {
	return CriteriaWeights{Lifetime: 1, Size: 1, UserFootprint: 1, UserWindow: 1}
}

// windowAccess records one access for the sliding-window criterion.
type windowAccess struct {
	ts   float64
	user string
	size int64
}

// CriteriaPolicy scores every resident file on a nearly-full event and
// drains in descending score order. The score combines lifetime overrun
// progress, a logarithmic size penalty, and two per-user equity terms.
type CriteriaPolicy struct {
	policyBase
	predictions   map[string]float64
	weights       CriteriaWeights
	windowSeconds float64

	usersCapacity map[string]int64
	window        []windowAccess
}

// NewCriteriaPolicy creates a criteria-based policy attached to tier, with
// default weights and window.
func NewCriteriaPolicy(tier *Tier, storage *StorageManager, predictions map[string]float64) *CriteriaPolicy {
	if predictions == nil {
		predictions = make(map[string]float64)
	}
	p := &CriteriaPolicy{
		policyBase:    policyBase{tier: tier, storage: storage},
		predictions:   predictions,
		weights:       DefaultCriteriaWeights(),
		windowSeconds: DefaultCriteriaWindow,
		usersCapacity: make(map[string]int64),
	}
	tier.AddListener(p)
	return p
}

// SetWeights overrides the criterion weights.
func (p *CriteriaPolicy) SetWeights(w CriteriaWeights) {
	p.weights = w
}

// SetWindow overrides the sliding window length in seconds.
func (p *CriteriaPolicy) SetWindow(seconds float64) {
	p.windowSeconds = seconds
}

func (p *CriteriaPolicy) OnFileCreated(f *File) {
	p.usersCapacity[f.User] += f.Size
	p.window = append(p.window, windowAccess{ts: f.CreationTime, user: f.User, size: f.Size})
}

func (p *CriteriaPolicy) OnFileDeleted(f *File) {
	p.usersCapacity[f.User] -= f.Size
}

func (p *CriteriaPolicy) OnFileAccess(f *File, isWrite bool) {
	p.window = append(p.window, windowAccess{ts: p.storage.clock.Now(), user: f.User, size: f.Size})
}

// pruneWindow drops window entries older than windowSeconds and returns the
// per-user byte totals of what remains.
func (p *CriteriaPolicy) pruneWindow(now float64) map[string]int64 {
	cutoff := now - p.windowSeconds
	kept := p.window[:0]
	totals := make(map[string]int64)
	for _, a := range p.window {
		if a.ts < cutoff {
			continue
		}
		kept = append(kept, a)
		totals[a.user] += a.size
	}
	p.window = kept
	return totals
}

// fileScore is one file's weighted criteria sum.
type fileScore struct {
	path string
	sum  float64
}

func (p *CriteriaPolicy) OnTierNearlyFull() {
	target := p.nextTier()
	if target == nil {
		return
	}
	now := p.storage.clock.Now()
	windowTotals := p.pruneWindow(now)

	var biggest int64
	p.tier.Files(func(f *File) {
		if f.Size > biggest {
			biggest = f.Size
		}
	})

	scores := make([]fileScore, 0, p.tier.FileCount())
	p.tier.Files(func(f *File) {
		// Lifetime progress; >= 1 means the file has overrun its
		// predicted lifetime. Division by zero yields +Inf, which sorts
		// such files to the front.
		c1 := (now - f.CreationTime) / (p.predictions[f.Path] - f.CreationTime)

		var c2 float64
		if denom := math.Log10(math.Max(1, float64(biggest))); denom > 0 {
			c2 = math.Log10(math.Max(1, float64(f.Size))) / denom
		}

		c3 := float64(p.usersCapacity[f.User]) / p.tier.targetOccupation
		c4 := float64(windowTotals[f.User]) / p.tier.targetOccupation

		scores = append(scores, fileScore{
			path: f.Path,
			sum: p.weights.Lifetime*c1 + p.weights.Size*c2 +
				p.weights.UserFootprint*c3 + p.weights.UserWindow*c4,
		})
	})
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].sum != scores[j].sum {
			return scores[i].sum > scores[j].sum
		}
		return scores[i].path < scores[j].path
	})

	for _, sc := range scores {
		if !p.overLowWater() {
			return
		}
		file := p.tier.File(sc.path)
		if file == nil {
			continue
		}
		p.migrate(file, target)
	}
}
