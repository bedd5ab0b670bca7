package vtsystem

import (
	"fmt"

	"github.com/veltanox/vtengine/vtaddr"
	"github.com/veltanox/vtengine/vtpool"
)

// Space owns one page table's worth of address space: its own pool of
// physical page slots, a buddy-quadtree allocator over its virtual address
// range, and the queue of pending page-table writes accumulated by
// QueueUpdate since the last ApplyUpdates.
type Space struct {
	ID              uint8
	PageTableLevels uint8
	Dimensions      uint32
	Pool            *vtpool.Pool
	Allocator       *vtaddr.Allocator
	Variant         PageTableUpdateVariant

	// pending[mip] accumulates this frame's TableUpdates for that mip,
	// flushed to the backend and cleared by ApplyUpdates.
	pending [][]vtpool.TableUpdate
}

// NewSpace creates a Space with its own Pool (poolSize physical slots) and
// Allocator (covering a square of side 2^ceil(log2(addressSize)) in
// dimensions-dimensional virtual address space).
func NewSpace(id uint8, pageTableLevels uint8, dimensions uint32, poolSize, addressSize uint32, variant PageTableUpdateVariant) *Space {
	return &Space{
		ID:              id,
		PageTableLevels: pageTableLevels,
		Dimensions:      dimensions,
		Pool:            vtpool.New(poolSize, dimensions),
		Allocator:       vtaddr.New(addressSize, dimensions),
		Variant:         variant,
		pending:         make([][]vtpool.TableUpdate, pageTableLevels),
	}
}

// QueueUpdate expands one pool map/unmap into the set of page-table writes
// it requires, appending them into pending. vLogSize/vAddress describe the
// quad whose coverage just changed (the unmapped or newly mapped page's own
// footprint); vLevel/pAddress describe what should now be painted into that
// quad (the nearest surviving ancestor on unmap, or the page itself on map).
func (s *Space) QueueUpdate(vLogSize uint8, vAddress uint64, vLevel uint8, pAddress uint16) {
	u := vtpool.Update{VAddress: vAddress, PAddress: pAddress, VLevel: vLevel, VLogSize: vLogSize}
	switch s.Variant {
	case MaskedQuadtree:
		s.Pool.ExpandMasked(s.ID, u, s.pending)
	default:
		s.Pool.ExpandPainters(s.ID, u, s.pending)
	}
}

// RefreshEntirePageTable discards any queued partial updates and replaces
// them with a full rewrite of every mapped page belonging to this space, at
// every mip from its own level down to 0. Used when there's no previous
// page-table content to reconcile incrementally against: a newly registered
// space, or one whose page-table texture was just resized.
func (s *Space) RefreshEntirePageTable() {
	for i := range s.pending {
		s.pending[i] = s.pending[i][:0]
	}
	s.Pool.RefreshEntirePageTable(s.ID, s.pending)
}

// ApplyUpdates flushes every pending page-table write to backend, mip by
// mip, and clears pending regardless of error so a persistent backend
// failure can't leak memory across frames. Writes that failed to dispatch
// are dropped, not re-queued.
func (s *Space) ApplyUpdates(backend GraphicsBackend) error {
	var firstErr error
	for mip, writes := range s.pending {
		if len(writes) == 0 {
			continue
		}
		if err := backend.DispatchUpdatePageTable(s.ID, uint8(mip), writes); err != nil && firstErr == nil {
			firstErr = &BackendError{
				Operation: "dispatch_update_page_table",
				Details:   fmt.Sprintf("space %d mip %d (%d writes)", s.ID, mip, len(writes)),
				Err:       err,
			}
		}
		s.pending[mip] = writes[:0]
	}
	return firstErr
}
