package simulator

import (
	"container/list"
	"sort"
)

// LifetimeOverrunPolicy drains files that have outlived their predicted
// lifetime first, most-overrun first, then falls back to LRU eviction if the
// tier is still above the low-water mark. Predictions map a path to a
// lifetime in seconds from creation.
type LifetimeOverrunPolicy struct {
	policyBase
	predictions map[string]float64
	order       *list.List // front = least recent, LRU fallback order
	entries     map[string]*list.Element
}

// NewLifetimeOverrunPolicy creates a lifetime-overrun policy attached to
// tier.
func NewLifetimeOverrunPolicy(tier *Tier, storage *StorageManager, predictions map[string]float64) *LifetimeOverrunPolicy {
	if predictions == nil {
		predictions = make(map[string]float64)
	}
	p := &LifetimeOverrunPolicy{
		policyBase:  policyBase{tier: tier, storage: storage},
		predictions: predictions,
		order:       list.New(),
		entries:     make(map[string]*list.Element),
	}
	tier.AddListener(p)
	return p
}

func (p *LifetimeOverrunPolicy) OnFileCreated(f *File) {
	p.entries[f.Path] = p.order.PushBack(f.Path)
}

func (p *LifetimeOverrunPolicy) OnFileDeleted(f *File) {
	if e, ok := p.entries[f.Path]; ok {
		p.order.Remove(e)
		delete(p.entries, f.Path)
	}
}

func (p *LifetimeOverrunPolicy) OnFileAccess(f *File, isWrite bool) {
	if e, ok := p.entries[f.Path]; ok {
		p.order.MoveToBack(e)
	}
}

func (p *LifetimeOverrunPolicy) OnTierNearlyFull() {
	target := p.nextTier()
	if target == nil {
		return
	}
	now := p.storage.clock.Now()

	type overrun struct {
		amount float64
		file   *File
	}
	var expired []overrun
	p.tier.Files(func(f *File) {
		amount := now - f.CreationTime - p.predictions[f.Path]
		if amount > 0 {
			expired = append(expired, overrun{amount: amount, file: f})
		}
	})
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].amount != expired[j].amount {
			return expired[i].amount > expired[j].amount
		}
		return expired[i].file.Path < expired[j].file.Path
	})

	for _, e := range expired {
		if !p.overLowWater() {
			return
		}
		p.migrate(e.file, target)
	}

	// Expired files were not enough: evict by recency.
	for p.overLowWater() && p.order.Len() > 0 {
		oldest := p.order.Front()
		path := oldest.Value.(string)
		p.order.Remove(oldest)
		delete(p.entries, path)

		file := p.tier.File(path)
		if file == nil {
			continue
		}
		p.migrate(file, target)
	}
}
