package vtpool

// RefreshEntirePageTable emits a full-resolution page-table rewrite for
// space id: every mapped page of that space, coarsest (highest) level
// first so finer pages are written after their ancestors, each written
// into every mip from its own level down to 0. Used after a page-table
// resize or when a Space is newly registered, since there's no previous
// content to reconcile incrementally against.
func (p *Pool) RefreshEntirePageTable(id uint8, output [][]TableUpdate) {
	p.ensureSortedKeys()

	for i := len(p.sortedKeys) - 1; i >= 0; i-- {
		pageID, vLevel, vAddress := decodeSortKey(p.sortedKeys[i])
		if pageID != id {
			continue
		}
		u := toTableUpdate(Update{VAddress: vAddress, PAddress: p.sortedIndexes[i], VLevel: vLevel, VLogSize: vLevel})
		for mip := int(vLevel); mip >= 0; mip-- {
			output[mip] = append(output[mip], u)
		}
	}
}

// ExpandPainters emits, for each mip from update.VLogSize down to 0, the
// full input quad plus every mapped descendant at that mip — later writes
// (descendants, emitted after the ancestor quad at the same mip) paint
// over the ancestor, so the final page-table content at any cell is its
// deepest mapped ancestor. Writes more overlapping quads than ExpandMasked
// but needs no clipping logic.
func (p *Pool) ExpandPainters(id uint8, update Update, output [][]TableUpdate) {
	p.ensureSortedKeys()

	vLogSize := update.VLogSize
	vAddress := update.VAddress

	output[vLogSize] = append(output[vLogSize], toTableUpdate(update))

	loopOutput := []Update{update}
	searchRange := len(p.sortedKeys)

	for mip := int(vLogSize); mip > 0; {
		mip--
		searchKey := encodeSortKey(id, uint8(mip), vAddress)
		mask := ^uint64(0) << (p.dimensions * uint32(vLogSize))

		lo, hi := p.equalRange(0, searchRange, searchKey, mask)
		if lo < hi {
			searchRange = lo
			for i := lo; i < hi; i++ {
				_, _, descVAddress := decodeSortKey(p.sortedKeys[i])
				descendant := Update{
					VAddress: descVAddress,
					PAddress: p.sortedIndexes[i],
					VLevel:   uint8(mip),
					VLogSize: uint8(mip),
				}
				loopOutput = append(loopOutput, descendant)
			}
		}

		for _, u := range loopOutput {
			output[mip] = append(output[mip], toTableUpdate(u))
		}
	}
}

// ExpandMasked emits, for each mip from update.VLogSize down to 0, a
// disjoint set of quads whose union is the input quad minus every mapped
// descendant's footprint — descendants are holes, not paint-overs, so
// unlike ExpandPainters nothing is written twice.
func (p *Pool) ExpandMasked(id uint8, update Update, output [][]TableUpdate) {
	p.ensureSortedKeys()

	vLogSize := update.VLogSize
	vAddress := update.VAddress

	output[vLogSize] = append(output[vLogSize], toTableUpdate(update))

	loopOutput := []Update{update}
	searchRange := len(p.sortedKeys)

	for mip := int(vLogSize); mip > 0; {
		mip--
		searchKey := encodeSortKey(id, uint8(mip), vAddress)
		mask := ^uint64(0) << (p.dimensions * uint32(vLogSize))

		lo, hi := p.equalRange(0, searchRange, searchKey, mask)
		if lo == hi {
			output[mip] = append(output[mip], tableUpdates(loopOutput)...)
			continue
		}
		searchRange = lo

		descendants := make([]Update, 0, hi-lo)
		for i := lo; i < hi; i++ {
			_, _, descVAddress := decodeSortKey(p.sortedKeys[i])
			descendants = append(descendants, Update{
				VAddress: descVAddress,
				PAddress: p.sortedIndexes[i],
				VLevel:   uint8(mip),
				VLogSize: uint8(mip),
			})
		}

		var next []Update
		for _, quad := range loopOutput {
			next = append(next, p.subtractDescendants(quad, descendants, uint8(mip))...)
		}
		loopOutput = next

		if len(loopOutput) == 0 {
			// Completely masked out by descendants; nothing survives to
			// carry into shallower mips either.
			break
		}
		output[mip] = append(output[mip], tableUpdates(loopOutput)...)
	}
}

func tableUpdates(us []Update) []TableUpdate {
	out := make([]TableUpdate, len(us))
	for i, u := range us {
		out[i] = toTableUpdate(u)
	}
	return out
}

// subtractDescendants returns quad split into the disjoint pieces that
// don't overlap any of descendants, recursively quartering quad wherever a
// descendant only partially overlaps it.
func (p *Pool) subtractDescendants(quad Update, descendants []Update, mip uint8) []Update {
	quadSize := uint64(1) << (p.dimensions * uint32(quad.VLogSize))
	for _, d := range descendants {
		descSize := uint64(1) << (p.dimensions * uint32(d.VLogSize))
		if quad.VAddress+quadSize <= d.VAddress || d.VAddress+descSize <= quad.VAddress {
			continue // disjoint
		}
		if quad.VAddress == d.VAddress && quad.VLogSize == d.VLogSize {
			return nil // fully masked by this descendant
		}
		// Partial overlap: split quad into its siblings and recurse.
		split := quad
		split.VLogSize--
		var pieces []Update
		for sibling := uint64((1 << p.dimensions) - 1); ; sibling-- {
			pieces = append(pieces, p.subtractDescendants(offsetUpdate(split, sibling, p.dimensions), descendants, mip)...)
			if sibling == 0 {
				break
			}
		}
		return pieces
	}
	return []Update{quad}
}
