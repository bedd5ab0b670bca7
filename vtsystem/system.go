package vtsystem

import (
	"context"
	"log"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/veltanox/vtengine/morton"
	"github.com/veltanox/vtengine/vtfeedback"
	"github.com/veltanox/vtengine/vtpagelist"
	"github.com/veltanox/vtengine/vtpool"
	"github.com/veltanox/vtengine/xheap"
)

// System is the single per-frame orchestrator: one UniquePageList scratch,
// one feedback ring, one request-priority heap, and up to 16 registered
// Spaces. Expects to be driven by exactly one thread at a time, the
// "render thread" in the original — there is no internal locking.
type System struct {
	Frame  uint32
	Config Config
	Logger Logger
	Stats  Stats

	backend  GraphicsBackend
	feedback *vtfeedback.Ring
	list     *vtpagelist.UniquePageList
	heap     *xheap.Heap[uint32]

	spaces [16]*Space
}

func defaultLogger(format string, args ...any) { log.Printf(format, args...) }

// New creates a System driving backend, starting at frame 1. Frame starts
// at 1, not 0: a pool's free slots are all keyed 0 at construction (see
// vtpool.New), and AnyFreeAvailable's anti-thrash guard treats "freed this
// same frame" as unavailable — starting at frame 0 would make every slot
// look like it was freed during the current frame and block the first
// frame's allocations entirely.
func New(backend GraphicsBackend, config Config, logger Logger) *System {
	if logger == nil {
		logger = defaultLogger
	}
	return &System{
		Frame:    1,
		Config:   config,
		Logger:   logger,
		backend:  backend,
		feedback: vtfeedback.New(backend),
		list:     vtpagelist.New(),
		heap:     xheap.New[uint32](vtpagelist.MaxUniquePages),
	}
}

// RegisterSpace adds space under its own ID, refreshing its page table in
// full since there's no previous incremental content to reconcile against.
// Returns an *InvariantError if the ID is out of range or already in use.
func (sys *System) RegisterSpace(space *Space) error {
	if int(space.ID) >= len(sys.spaces) {
		return &InvariantError{Component: "vtsystem.RegisterSpace", Message: "space id out of range [0,16)"}
	}
	if sys.spaces[space.ID] != nil {
		return &InvariantError{Component: "vtsystem.RegisterSpace", Message: "space id already registered"}
	}
	sys.spaces[space.ID] = space
	space.RefreshEntirePageTable()
	return nil
}

// UnregisterSpace removes the space at id, if any. The ID may be reused by
// a later RegisterSpace call.
func (sys *System) UnregisterSpace(id uint8) {
	if int(id) < len(sys.spaces) {
		sys.spaces[id] = nil
	}
}

// GetSpace returns the space registered at id, or nil.
func (sys *System) GetSpace(id uint8) *Space {
	if int(id) >= len(sys.spaces) {
		return nil
	}
	return sys.spaces[id]
}

// PrepareFeedback allocates this frame's GPU feedback texture. Call once
// per frame, before submitting the render pass that writes sampled page
// requests into it — the original does this from the renderer's pass-setup
// code, not from FVirtualTextureSystem::Update itself.
func (sys *System) PrepareFeedback(width, height int) error {
	return sys.feedback.CreateGPU(width, height)
}

// SubmitFeedback copies this frame's GPU feedback texture to a CPU-readable
// staging copy. Call once per frame after the feedback-writing render pass
// has been submitted, and before Update — Update only maps the copy
// SubmitFeedback already queued.
func (sys *System) SubmitFeedback() error {
	return sys.feedback.TransferGPUToCPU()
}

// Update runs one full frame: map and analyze this frame's feedback,
// expand the mip chain, prioritize non-resident requests, upload as many
// as Config.MaxUploadsPerFrame allows, and flush every space's page-table
// writes. Stats is reset first, so afterward it describes this frame only.
// Returns the first ApplyUpdates (page-table dispatch) error, if any; a
// ProducePageData failure is logged and counted in Stats.NumBackendErrors
// but not returned. Either way the frame still completes (remaining spaces
// still get their ApplyUpdates call, the frame counter still advances)
// rather than aborting, matching the teacher's per-entry log-and-continue
// texture (video_compositor.go).
func (sys *System) Update(featureLevel int) error {
	sys.Stats = Stats{}
	sys.list.Reset()
	for id, sp := range sys.spaces {
		if sp == nil {
			continue
		}
		sys.list.NumLevels[id] = sp.PageTableLevels
		sys.list.Dimensions[id] = uint8(sp.Dimensions)
	}

	if buffer, pitch, err := sys.feedback.Map(); err != nil {
		sys.Logger("vtsystem: feedback map failed: %v", err)
	} else if buffer != nil {
		width, height := sys.feedback.Size()
		vtpagelist.FeedbackAnalysis(sys.list, buffer, uint32(width), uint32(height), uint32(pitch))
		if err := sys.feedback.Unmap(); err != nil {
			sys.Logger("vtsystem: feedback unmap failed: %v", err)
		}
	}
	sys.Stats.NumPagesVisible = sys.list.Num()

	sys.list.ExpandByMips(sys.Config.NumMipsToExpandRequests)
	sys.Stats.NumPageRequests = sys.list.Num()

	sys.buildRequestHeap()
	sys.Stats.NumPageRequestsNotResident = sys.heap.Num()
	sys.Stats.NumPageRequestsResident = sys.list.Num() - sys.heap.Num()

	sys.uploadRequests(featureLevel)

	var firstErr error
	for _, sp := range sys.spaces {
		if sp == nil {
			continue
		}
		if err := sp.ApplyUpdates(sys.backend); err != nil {
			sys.Logger("vtsystem: %v", err)
			sys.Stats.NumBackendErrors++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	sys.Frame++
	return firstErr
}

// buildRequestHeap walks every entry currently in the list: resident pages
// just get their LRU usage bumped, non-resident ones are pushed onto the
// priority heap keyed by bitwise-NOT(priority) so a min-heap pops the
// highest-priority request first. Priority boosts requests whose nearest
// mapped ancestor is far coarser than what was asked for.
func (sys *System) buildRequestHeap() {
	sys.heap.Clear()

	for i := 0; i < sys.list.Num(); i++ {
		id, vLevel, vPosition := vtpagelist.DecodePage(sys.list.Page(i))
		vAddress := uint64(vPosition)
		sp := sys.GetSpace(id)
		if sp == nil {
			continue
		}

		if pAddr, ok := sp.Pool.FindPage(id, vLevel, vAddress); ok {
			sp.Pool.UpdateUsage(sys.Frame, pAddr)
			continue
		}

		maxLevel := uint8(0)
		if sys.list.NumLevels[id] > 0 {
			maxLevel = sys.list.NumLevels[id] - 1
		}

		dims := uint32(sys.list.Dimensions[id])
		parentLevel := vLevel + 1
		parentAddr := morton.MaskToLevel(vAddress, dims, uint32(parentLevel))

		ancLevel := maxLevel
		if ai, ok := sp.Pool.FindNearestPage(id, parentLevel, parentAddr); ok {
			ancLevel = sp.Pool.GetPage(uint16(ai)).VLevel
		}

		count := uint32(sys.list.Count(i))
		priority := count << (uint32(ancLevel) - uint32(vLevel))
		sys.heap.Add(^priority, uint32(i))
	}
}

// uploadCandidate is one heap entry resolved to its owning space and
// producer, carrying the LocatePageData result once the locate pre-pass
// has run. Order in the candidates slice is priority order (heap pop
// order), preserved through both passes.
type uploadCandidate struct {
	id        uint8
	vLevel    uint8
	vAddress  uint64
	sp        *Space
	producer  PageProducer
	localAddr uint64

	src       []byte
	available bool
}

// uploadRequests pops the heap in full priority order, locates every
// candidate's page data concurrently (bounded by a semaphore sized to
// GOMAXPROCS, since LocatePageData is documented non-blocking but may do
// real I/O checks), then walks the located results in that same priority
// order performing allocation, eviction and mapping strictly serially,
// stopping once Config.MaxUploadsPerFrame uploads have succeeded. Each
// successful upload evicts the slot's previous occupant (queuing its
// ancestor-repaint page-table write first) before mapping and queuing the
// new page's write, preserving the invariant that a slot's unmap write
// always precedes its corresponding map write within the same frame.
func (sys *System) uploadRequests(featureLevel int) {
	candidates := make([]uploadCandidate, 0, sys.heap.Num())
	for sys.heap.Num() > 0 {
		index := sys.heap.Top()
		sys.heap.Pop()

		id, vLevel, vPosition := vtpagelist.DecodePage(sys.list.Page(int(index)))
		vAddress := uint64(vPosition)
		sp := sys.GetSpace(id)
		if sp == nil {
			continue
		}

		producer, localAddr, found := sp.Allocator.Find(vAddress)
		if !found {
			continue
		}
		pp, ok := producer.(PageProducer)
		if !ok {
			continue
		}

		candidates = append(candidates, uploadCandidate{
			id: id, vLevel: vLevel, vAddress: vAddress,
			sp: sp, producer: pp, localAddr: localAddr,
		})
	}
	if len(candidates) == 0 {
		return
	}

	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	var wg sync.WaitGroup
	for i := range candidates {
		c := &candidates[i]
		if err := sem.Acquire(context.Background(), 1); err != nil {
			// Background context never cancels; Acquire only fails if the
			// weight exceeds the semaphore's capacity, which can't happen
			// here (weight is always 1).
			continue
		}
		wg.Add(1)
		go func(c *uploadCandidate) {
			defer wg.Done()
			defer sem.Release(1)
			c.src, c.available = c.producer.LocatePageData(c.vLevel, c.localAddr)
		}(c)
	}
	wg.Wait()

	uploadsLeft := sys.Config.MaxUploadsPerFrame
	for i := range candidates {
		if uploadsLeft <= 0 {
			break
		}
		c := &candidates[i]
		if !c.available {
			continue // producer not ready; LRU aging causes retry next frame
		}
		if !c.sp.Pool.AnyFreeAvailable(sys.Frame) {
			sys.Stats.NumResourceExhausted++
			continue
		}

		pAddress := c.sp.Pool.Alloc(sys.Frame)
		evicted := c.sp.Pool.GetPage(uint16(pAddress))
		c.sp.Pool.UnmapPage(uint16(pAddress))
		if evicted.ID != vtpool.Unmapped {
			sys.queueAncestorRepaint(evicted)
		}

		if err := c.producer.ProducePageData(sys.backend, featureLevel, c.vLevel, c.localAddr, uint16(pAddress), c.src); err != nil {
			sys.Logger("vtsystem: produce page data failed: %v", err)
			sys.Stats.NumBackendErrors++
			c.sp.Pool.Free(sys.Frame, pAddress)
			continue
		}

		c.sp.Pool.MapPage(c.id, c.vLevel, c.vAddress, uint16(pAddress))
		c.sp.QueueUpdate(c.vLevel, c.vAddress, c.vLevel, uint16(pAddress))
		// Alloc pulled pAddress out of the pool's combined free/resident LRU
		// heap so it can't be handed out twice while being produced into;
		// Free reinserts it now, keyed to this frame so AnyFreeAvailable's
		// anti-thrash guard keeps it off-limits until next frame.
		c.sp.Pool.Free(sys.Frame, pAddress)

		uploadsLeft--
		sys.Stats.NumPageUploads++
	}
}

// queueAncestorRepaint re-derives the page-table write a freshly unmapped
// slot's old occupant requires: its nearest surviving ancestor (or the
// sentinel "no ancestor" pair 0xff/0xffff, meaning the space's clear value)
// painted over the evicted page's own footprint. This mirrors what the
// original's TexturePagePool::UnmapPage does inline; vtpool's UnmapPage
// itself stays ignorant of Space (see DESIGN.md), so the System replicates
// the glue here instead.
func (sys *System) queueAncestorRepaint(evicted vtpool.Page) {
	oldSpace := sys.GetSpace(evicted.ID)
	if oldSpace == nil {
		return
	}
	ancLevel, ancPAddress := uint8(0xff), uint16(0xffff)
	if ai, ok := oldSpace.Pool.FindNearestPage(evicted.ID, evicted.VLevel, evicted.VAddress); ok {
		ancLevel = oldSpace.Pool.GetPage(uint16(ai)).VLevel
		ancPAddress = uint16(ai)
	}
	oldSpace.QueueUpdate(evicted.VLevel, evicted.VAddress, ancLevel, ancPAddress)
}
