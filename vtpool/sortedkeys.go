package vtpool

import "sort"

// buildSortedKeys merges the queued sortedSubIndexes (removals) and
// sortedAddIndexes (insertions) into the sortedKeys/sortedIndexes arrays in
// one linear pass, instead of re-sorting from scratch: sub/add indexes are
// each sorted once (subs numerically since they already encode position,
// adds by the key of the page they reference), then walked alongside the
// previous sorted snapshot, copying unchanged runs verbatim and splicing in
// each insertion or skipping each removal as its position comes up.
func (p *Pool) buildSortedKeys() {
	sort.Slice(p.sortedSubIndexes, func(i, j int) bool { return p.sortedSubIndexes[i] < p.sortedSubIndexes[j] })
	sort.Slice(p.sortedAddIndexes, func(i, j int) bool {
		pa := &p.pages[p.sortedAddIndexes[i]&0xffff]
		pb := &p.pages[p.sortedAddIndexes[j]&0xffff]
		return encodeSortKey(pa.ID, pa.VLevel, pa.VAddress) < encodeSortKey(pb.ID, pb.VLevel, pb.VAddress)
	})

	unsortedKeys, unsortedIndexes := p.sortedKeys, p.sortedIndexes
	numUnsorted := len(unsortedKeys)
	newLen := numUnsorted + len(p.sortedAddIndexes) - len(p.sortedSubIndexes)

	p.sortedKeys = make([]uint64, newLen)
	p.sortedIndexes = make([]uint16, newLen)

	subI, addI, unsortedI, sortedI := 0, 0, 0, 0
	for sortedI < newLen {
		subIndex := numUnsorted
		if subI < len(p.sortedSubIndexes) {
			subIndex = int(p.sortedSubIndexes[subI] >> 16)
		}
		addIndex := numUnsorted
		if addI < len(p.sortedAddIndexes) {
			addIndex = int(p.sortedAddIndexes[addI] >> 16)
		}

		interval := subIndex
		if addIndex < interval {
			interval = addIndex
		}
		interval -= unsortedI
		if interval > 0 {
			copy(p.sortedKeys[sortedI:], unsortedKeys[unsortedI:unsortedI+interval])
			copy(p.sortedIndexes[sortedI:], unsortedIndexes[unsortedI:unsortedI+interval])
			unsortedI += interval
			sortedI += interval
			if sortedI >= newLen {
				break
			}
		}

		if subIndex < addIndex {
			// Skip hole left by a removed page.
			unsortedI++
			subI++
		} else {
			pAddr := uint16(p.sortedAddIndexes[addI] & 0xffff)
			pg := &p.pages[pAddr]
			p.sortedKeys[sortedI] = encodeSortKey(pg.ID, pg.VLevel, pg.VAddress)
			p.sortedIndexes[sortedI] = pg.PAddress
			sortedI++
			addI++
		}
	}

	p.sortedSubIndexes = p.sortedSubIndexes[:0]
	p.sortedAddIndexes = p.sortedAddIndexes[:0]
	p.sortedKeysDirty = false
}

// ensureSortedKeys rebuilds sortedKeys if any Map/Unmap happened since the
// last build.
func (p *Pool) ensureSortedKeys() {
	if p.sortedKeysDirty {
		p.buildSortedKeys()
	}
}

// lowerBound returns the first index in [min,max) of sortedKeys (masked by
// mask) not less than searchKey. Mirrors std::lower_bound.
func (p *Pool) lowerBound(min, max int, searchKey, mask uint64) int {
	for min != max {
		mid := min + (max-min)/2
		key := p.sortedKeys[mid] & mask
		if searchKey <= key {
			max = mid
		} else {
			min = mid + 1
		}
	}
	return min
}

// upperBound returns the first index in [min,max) of sortedKeys (masked by
// mask) strictly greater than searchKey. Mirrors std::upper_bound.
func (p *Pool) upperBound(min, max int, searchKey, mask uint64) int {
	for min != max {
		mid := min + (max-min)/2
		key := p.sortedKeys[mid] & mask
		if searchKey < key {
			max = mid
		} else {
			min = mid + 1
		}
	}
	return min
}

// equalRange returns the [lo,hi) sub-range of [min,max) whose masked key
// equals searchKey. Mirrors std::equal_range.
func (p *Pool) equalRange(min, max int, searchKey, mask uint64) (lo, hi int) {
	for min != max {
		mid := min + (max-min)/2
		key := p.sortedKeys[mid] & mask
		switch {
		case searchKey < key:
			max = mid
		case searchKey > key:
			min = mid + 1
		default:
			lo = p.lowerBound(min, mid, searchKey, mask)
			hi = p.upperBound(mid+1, max, searchKey, mask)
			return lo, hi
		}
	}
	return 0, 0
}
