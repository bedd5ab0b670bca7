// Package vtaddr implements a buddy-quadtree virtual address allocator: one
// square of side 2^logSize in Morton-coordinate virtual-address space, per
// Space, subdivided on demand as producers of different sizes are packed
// into it.
package vtaddr

import (
	"github.com/veltanox/vtengine/morton"
	"github.com/veltanox/vtengine/xhash"
)

const invalid = ^uint32(0)

// Producer is anything that can be packed into virtual address space: its
// footprint in pages determines which quadtree level it lands on.
type Producer interface {
	VirtualSize() (sizeX, sizeY uint32)
}

type addressBlock struct {
	producer           Producer
	vAddress           uint64
	nextFree, prevFree uint32
	vLogSize           uint8
}

type sortedBlock struct {
	vAddress uint64
	index    uint32
}

// Allocator packs Producers into a single square of virtual address space,
// splitting blocks on allocation and never coalescing freed siblings back
// together (see Free).
type Allocator struct {
	dimensions uint32
	blocks     []addressBlock
	freeList   []uint32 // freeList[vLogSize] = head block index, or invalid
	sorted     []sortedBlock

	hash        *xhash.Table
	producerKey map[Producer]uint32
	nextKey     uint32
}

// New creates an Allocator covering a dimensions-dimensional square of side
// 2^ceil(log2(size)).
func New(size uint32, dimensions uint32) *Allocator {
	logSize := morton.CeilLog2(size)

	a := &Allocator{
		dimensions:  dimensions,
		blocks:      []addressBlock{{nextFree: invalid, prevFree: invalid, vLogSize: logSize}},
		freeList:    make([]uint32, int(logSize)+1),
		sorted:      []sortedBlock{{vAddress: 0, index: 0}},
		hash:        xhash.New(256, 256),
		producerKey: make(map[Producer]uint32),
	}
	for i := range a.freeList {
		a.freeList[i] = invalid
	}
	a.freeList[logSize] = 0
	return a
}

func (a *Allocator) pushFree(index uint32) {
	b := &a.blocks[index]
	head := a.freeList[b.vLogSize]
	b.nextFree = head
	b.prevFree = invalid
	if head != invalid {
		a.blocks[head].prevFree = index
	}
	a.freeList[b.vLogSize] = index
}

func (a *Allocator) popFree(vLogSize uint8) uint32 {
	index := a.freeList[vLogSize]
	if index == invalid {
		return invalid
	}
	b := &a.blocks[index]
	a.freeList[vLogSize] = b.nextFree
	if b.nextFree != invalid {
		a.blocks[b.nextFree].prevFree = invalid
	}
	b.nextFree, b.prevFree = invalid, invalid
	return index
}

// findSorted returns the index into a.sorted of the block with the greatest
// vAddress <= target (binary search for upper bound, then step back one).
func (a *Allocator) findSorted(vAddress uint64) int {
	lo, hi := 0, len(a.sorted)
	for lo != hi {
		mid := lo + (hi-lo)/2
		if vAddress < a.sorted[mid].vAddress {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo - 1
}

// Find locates the Producer owning vAddress and the address local to that
// producer's own block (what the producer itself expects to consume).
func (a *Allocator) Find(vAddress uint64) (producer Producer, localVAddress uint64, ok bool) {
	si := a.findSorted(vAddress)
	if si < 0 {
		return nil, 0, false
	}
	sb := a.sorted[si]
	block := &a.blocks[sb.index]
	blockSize := uint64(1) << (a.dimensions * uint32(block.vLogSize))
	if vAddress < block.vAddress || vAddress >= block.vAddress+blockSize {
		return nil, 0, false
	}
	if block.producer == nil {
		return nil, 0, false
	}
	return block.producer, vAddress - block.vAddress, true
}

// Alloc finds the smallest free block that fits producer's footprint,
// recursively splitting a larger block if needed, and returns the
// allocated block's base virtual address.
func (a *Allocator) Alloc(producer Producer) (vAddress uint64, ok bool) {
	sizeX, sizeY := producer.VirtualSize()
	blockSize := sizeX
	if sizeY > blockSize {
		blockSize = sizeY
	}
	vLogSize := morton.CeilLog2(blockSize)

	for level := int(vLogSize); level < len(a.freeList); level++ {
		freeIndex := a.popFree(uint8(level))
		if freeIndex == invalid {
			continue
		}

		block := &a.blocks[freeIndex]
		block.producer = producer

		key := a.keyFor(producer)
		a.hash.Add(key, freeIndex)

		numNewBlocks := a.subdivide(freeIndex, vLogSize)

		insertAt := a.findSorted(block.vAddress) + 1
		a.insertSorted(insertAt, numNewBlocks)

		return block.vAddress, true
	}
	return 0, false
}

// subdivide splits block index down to targetLogSize, spawning sibling
// blocks at each level and pushing them onto their size's free list.
// Returns the number of new blocks created.
func (a *Allocator) subdivide(index uint32, targetLogSize uint8) int {
	numSiblings := (1 << a.dimensions) - 1
	created := 0
	for a.blocks[index].vLogSize > targetLogSize {
		a.blocks[index].vLogSize--
		base := a.blocks[index]
		for sibling := numSiblings; sibling > 0; sibling-- {
			offset := uint64(sibling) << (a.dimensions * uint32(base.vLogSize))
			newIndex := uint32(len(a.blocks))
			a.blocks = append(a.blocks, addressBlock{
				vAddress: base.vAddress + offset,
				nextFree: invalid,
				prevFree: invalid,
				vLogSize: base.vLogSize,
			})
			a.pushFree(newIndex)
			created++
		}
	}
	return created
}

// insertSorted appends the count most-recently-created blocks (the ones
// subdivide just pushed, which all live at the tail of a.blocks) into the
// sorted list at position insertAt, in ascending vAddress order.
func (a *Allocator) insertSorted(insertAt, count int) {
	if count == 0 {
		return
	}
	newEntries := make([]sortedBlock, count)
	start := len(a.blocks) - count
	for i := 0; i < count; i++ {
		idx := uint32(start + i)
		newEntries[i] = sortedBlock{vAddress: a.blocks[idx].vAddress, index: idx}
	}
	for i := 0; i < len(newEntries); i++ {
		for j := i + 1; j < len(newEntries); j++ {
			if newEntries[j].vAddress < newEntries[i].vAddress {
				newEntries[i], newEntries[j] = newEntries[j], newEntries[i]
			}
		}
	}
	grown := make([]sortedBlock, 0, len(a.sorted)+count)
	grown = append(grown, a.sorted[:insertAt]...)
	grown = append(grown, newEntries...)
	grown = append(grown, a.sorted[insertAt:]...)
	a.sorted = grown
}

// Free releases producer's block back to its size's free list. Sibling
// blocks are never coalesced back together — see DESIGN.md.
func (a *Allocator) Free(producer Producer) {
	key, ok := a.producerKey[producer]
	if !ok {
		return
	}
	var index uint32 = invalid
	for i := a.hash.First(key); a.hash.IsValid(i); i = a.hash.Next(i) {
		if a.blocks[i].producer == producer {
			index = i
			break
		}
	}
	if !a.hash.IsValid(index) {
		return
	}

	a.hash.Remove(key, index)
	delete(a.producerKey, producer)
	a.blocks[index].producer = nil
	a.pushFree(index)
}

func (a *Allocator) keyFor(producer Producer) uint32 {
	if key, ok := a.producerKey[producer]; ok {
		return key
	}
	key := a.nextKey
	a.nextKey++
	a.producerKey[producer] = key
	return key
}
