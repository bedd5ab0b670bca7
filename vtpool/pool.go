package vtpool

import (
	"github.com/veltanox/vtengine/xhash"
	"github.com/veltanox/vtengine/xheap"
)

// Pool owns a fixed number of physical texture slots over one address
// dimensionality. Pages are keyed by space ID as well as level and address;
// vtsystem gives each Space its own Pool.
type Pool struct {
	dimensions uint32

	pages []Page

	hash     *xhash.Table
	freeHeap *xheap.Heap[uint32]

	sortedKeys      []uint64
	sortedIndexes   []uint16
	sortedKeysDirty bool

	// sortedSubIndexes/sortedAddIndexes queue pending removals/insertions as
	// (position<<16)|pAddress, positions taken against the sortedKeys
	// snapshot as of the last build — buildSortedKeys merges them in a
	// single linear pass instead of re-sorting from scratch.
	sortedSubIndexes []uint32
	sortedAddIndexes []uint32
}

// New creates a Pool of size physical slots over a dimensions-dimensional
// address space. Every slot starts free, keyed into the LRU heap at frame 0.
func New(size uint32, dimensions uint32) *Pool {
	p := &Pool{
		dimensions: dimensions,
		pages:      make([]Page, size),
		hash:       xhash.New(2048, size),
		freeHeap:   xheap.New[uint32](size),
	}
	for i := range p.pages {
		p.pages[i] = Page{PAddress: uint16(i), ID: Unmapped}
		p.freeHeap.Add(0, uint32(i))
	}
	return p
}

// GetSize returns the number of physical slots.
func (p *Pool) GetSize() int { return len(p.pages) }

// GetPage returns the current mapping held by physical slot pAddress.
func (p *Pool) GetPage(pAddress uint16) Page { return p.pages[pAddress] }

// AnyFreeAvailable reports whether a slot can be allocated this frame
// without evicting a page that was itself allocated this same frame (which
// would thrash a page against itself within one frame).
func (p *Pool) AnyFreeAvailable(frame uint32) bool {
	if p.freeHeap.Num() == 0 {
		return false
	}
	top := p.freeHeap.Top()
	pageFrame := p.freeHeap.GetKey(top) >> 4
	return pageFrame != frame
}

// Alloc removes and returns the least-recently-used free slot. Callers must
// check AnyFreeAvailable first.
func (p *Pool) Alloc(frame uint32) uint32 {
	if !p.AnyFreeAvailable(frame) {
		panic("vtpool: Alloc with no free slot available this frame")
	}
	index := p.freeHeap.Top()
	p.freeHeap.Pop()
	return index
}

// Free returns slot pageIndex to the LRU free list, keyed by frame and the
// slot's mip level so lower (child) levels are preferred for eviction over
// higher (parent, more expensive to refetch) levels at the same frame.
func (p *Pool) Free(frame uint32, pageIndex uint32) {
	key := (frame << 4) + uint32(p.pages[pageIndex].VLevel&0xf)
	p.freeHeap.Add(key, pageIndex)
}

// UpdateUsage re-keys a mapped slot's LRU position to the current frame,
// keeping it resident for longer.
func (p *Pool) UpdateUsage(frame uint32, pageIndex uint32) {
	key := (frame << 4) + uint32(p.pages[pageIndex].VLevel&0xf)
	p.freeHeap.Update(key, pageIndex)
}

// FindPage returns the physical slot mapped to exactly (id, vLevel,
// vAddress), or false if none.
func (p *Pool) FindPage(id, vLevel uint8, vAddress uint64) (uint32, bool) {
	hash := hashPage(vLevel, vAddress, p.dimensions)
	for i := p.hash.First(uint32(hash)); p.hash.IsValid(i); i = p.hash.Next(i) {
		pg := &p.pages[i]
		if pg.ID == id && pg.VLevel == vLevel && pg.VAddress == vAddress {
			return i, true
		}
	}
	return 0, false
}

// FindNearestPage walks up from (id, vLevel, vAddress) through ancestor
// levels until it finds a mapped page, or exhausts maxLevels.
func (p *Pool) FindNearestPage(id, vLevel uint8, vAddress uint64) (uint32, bool) {
	for vLevel < maxLevels {
		if idx, ok := p.FindPage(id, vLevel, vAddress); ok {
			return idx, true
		}
		vLevel++
		vAddress &= ^uint64(0) << (p.dimensions * uint32(vLevel))
	}
	return 0, false
}

// UnmapPage clears slot pAddress and removes its hash entry. The sorted-key
// arrays are updated lazily by buildSortedKeys on the next call that needs
// them, merging this removal in by the position it would occupy in the
// current (possibly already-stale) sorted-key snapshot.
func (p *Pool) UnmapPage(pAddress uint16) {
	page := &p.pages[pAddress]
	if page.ID != Unmapped {
		p.hash.Remove(uint32(hashPage(page.VLevel, page.VAddress, p.dimensions)), uint32(pAddress))

		oldKey := encodeSortKey(page.ID, page.VLevel, page.VAddress)
		oldIndex := p.lowerBound(0, len(p.sortedKeys), oldKey, ^uint64(0))
		p.sortedSubIndexes = append(p.sortedSubIndexes, uint32(oldIndex)<<16|uint32(pAddress))
	}

	page.VLevel = 0
	page.VAddress = 0
	page.ID = Unmapped

	p.sortedKeysDirty = true
}

// MapPage assigns slot pAddress to (id, vLevel, vAddress) and adds its hash
// entry. The sorted-key arrays are updated lazily by buildSortedKeys on the
// next call that needs them.
func (p *Pool) MapPage(id, vLevel uint8, vAddress uint64, pAddress uint16) {
	page := &p.pages[pAddress]
	page.VLevel = vLevel
	page.VAddress = vAddress
	page.ID = id

	p.hash.Add(uint32(hashPage(page.VLevel, page.VAddress, p.dimensions)), uint32(pAddress))

	newKey := encodeSortKey(id, vLevel, vAddress)
	newIndex := p.upperBound(0, len(p.sortedKeys), newKey, ^uint64(0))
	p.sortedAddIndexes = append(p.sortedAddIndexes, uint32(newIndex)<<16|uint32(pAddress))

	p.sortedKeysDirty = true
}
