package simulator

import "container/list"

// LRUPolicy evicts the least-recently-accessed file first. Recency order is
// an intrusive list with a path index: creation and access move a path to
// the recent end, the drain pops from the old end.
type LRUPolicy struct {
	policyBase
	order   *list.List // front = least recent
	entries map[string]*list.Element
}

// NewLRUPolicy creates an LRU policy attached to tier.
func NewLRUPolicy(tier *Tier, storage *StorageManager) *LRUPolicy {
	p := newLRUPolicy(tier, storage)
	tier.AddListener(p)
	return p
}

// newLRUPolicy builds the policy without registering it, so wrappers like
// FIFO can register themselves instead.
func newLRUPolicy(tier *Tier, storage *StorageManager) *LRUPolicy {
	return &LRUPolicy{
		policyBase: policyBase{tier: tier, storage: storage},
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (p *LRUPolicy) OnFileCreated(f *File) {
	p.entries[f.Path] = p.order.PushBack(f.Path)
}

func (p *LRUPolicy) OnFileDeleted(f *File) {
	if e, ok := p.entries[f.Path]; ok {
		p.order.Remove(e)
		delete(p.entries, f.Path)
	}
}

func (p *LRUPolicy) OnFileAccess(f *File, isWrite bool) {
	if e, ok := p.entries[f.Path]; ok {
		p.order.MoveToBack(e)
	}
}

func (p *LRUPolicy) OnTierNearlyFull() {
	target := p.nextTier()
	if target == nil {
		return
	}
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
