package vtpagelist

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/veltanox/vtengine/xhash"
)

// UniquePageList dedups packed page requests (id, level, vPosition) into a
// capacity-bounded list with a saturating u16 reference count per entry,
// indexed by an xhash.Static table for O(1) expected lookup.
type UniquePageList struct {
	// NumLevels and Dimensions are per-space configuration the caller must
	// populate (indexed by space id) before calling Add or ExpandByMips —
	// the list itself doesn't own space registration.
	NumLevels [16]uint8
	Dimensions [16]uint8

	pages  []uint32
	counts []uint16
	hash   *xhash.Static
}

// New creates an empty UniquePageList.
func New() *UniquePageList {
	return &UniquePageList{
		pages: make([]uint32, 0, MaxUniquePages),
		counts: make([]uint16, 0, MaxUniquePages),
		hash:  xhash.NewStatic(hashSize, MaxUniquePages),
	}
}

// Reset empties the list for reuse across frames without reallocating.
func (l *UniquePageList) Reset() {
	l.pages = l.pages[:0]
	l.counts = l.counts[:0]
	l.hash.Clear()
}

// Num returns the number of distinct pages currently held.
func (l *UniquePageList) Num() int { return len(l.pages) }

// Page returns the encoded (id, level, vPosition) key at index.
func (l *UniquePageList) Page(index int) uint32 { return l.pages[index] }

// Count returns the saturating reference count at index.
func (l *UniquePageList) Count(index int) uint16 { return l.counts[index] }

// Add inserts page with the given run-length count, merging into an
// existing entry (saturating at 0xffff) if one is already present.
// Silently drops the request once the list is at MaxUniquePages, matching
// the original.
func (l *UniquePageList) Add(page uint32, count uint32) {
	id, vLevel, vPosition := DecodePage(page)
	dimensions := uint32(l.Dimensions[id])

	hash := hashPage(vLevel, uint64(vPosition), dimensions)
	var index uint32
	found := false
	for index = l.hash.First(uint32(hash)); l.hash.IsValid(index); index = l.hash.Next(index) {
		if l.pages[index] == page {
			found = true
			break
		}
	}

	if !found {
		if len(l.pages) >= MaxUniquePages {
			return
		}
		index = uint32(len(l.pages))
		l.hash.Add(uint32(hash), index)
		l.pages = append(l.pages, page)
		l.counts = append(l.counts, 0)
	}

	l.counts[index] = saturatingAdd16(l.counts[index], count)
}

type mipRequest struct {
	page  uint32
	count uint32
}

// ancestorChain computes, for the page at index i (as it stood when
// ExpandByMips snapshotted the list), the up-to-numMips ancestor
// (page, count) pairs to request. Pure and read-only against l.pages/
// l.counts/l.Dimensions/l.NumLevels, so it's safe to run concurrently
// across distinct i — only the final Add into the shared list needs to be
// serialized.
func (l *UniquePageList) ancestorChain(i int, numMips uint32) []mipRequest {
	id, vLevel, vPosition := DecodePage(l.pages[i])
	dimensions := uint32(l.Dimensions[id])
	count := uint32(l.counts[i])

	var out []mipRequest
	for mip := uint32(0); mip < numMips; mip++ {
		vLevel++
		if vLevel >= l.NumLevels[id] {
			break
		}
		vPosition &= 0xffffffff << (dimensions * uint32(vLevel))
		out = append(out, mipRequest{page: EncodePage(id, vLevel, vPosition), count: count})
	}
	return out
}

// ExpandByMips walks numMips levels up from every page currently in the
// list and inserts each ancestor with the same count, giving sudden
// zoom-ins a head start on coarser mips that would otherwise only be
// requested a frame later. Snapshots the current length first so expansion
// pages don't themselves get re-expanded in the same call.
//
// The per-entry ancestor-chain walk is pure bit arithmetic over the
// snapshotted prefix, so it fans out across a semaphore.Weighted bounded by
// GOMAXPROCS; the resulting inserts are replayed into the list from a
// single goroutine afterward since Add mutates the shared hash table and
// must not run concurrently with itself.
func (l *UniquePageList) ExpandByMips(numMips uint32) {
	num := len(l.pages)
	if num == 0 || numMips == 0 {
		return
	}

	results := make([][]mipRequest, num)
	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < num; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // context.Background() never errors; defensive only.
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = l.ancestorChain(i, numMips)
		}(i)
	}
	wg.Wait()

	for _, chain := range results {
		for _, r := range chain {
			l.Add(r.page, r.count)
		}
	}
}
