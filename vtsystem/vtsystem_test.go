package vtsystem

import (
	"testing"

	"github.com/veltanox/vtengine/vtfeedback"
	"github.com/veltanox/vtengine/vtpool"
)

// fakeTexture tags a backend handle with what it's for, purely for test
// assertions — vtsystem itself never inspects a Texture's contents.
type fakeTexture struct{ kind string }

// fakeBackend implements GraphicsBackend entirely in memory: MapStaging
// always returns whatever buffer/pitch the test last queued via
// queueFeedback, and every page-table write is recorded for inspection.
type fakeBackend struct {
	buffer []uint32
	pitch  int

	updates []recordedUpdate
}

type recordedUpdate struct {
	spaceID uint8
	mip     uint8
	writes  []vtpool.TableUpdate
}

func (b *fakeBackend) queueFeedback(buffer []uint32, pitch int) {
	b.buffer, b.pitch = buffer, pitch
}

func (b *fakeBackend) CreateFeedbackTexture(width, height int) (Texture, error) {
	return &fakeTexture{kind: "feedback"}, nil
}
func (b *fakeBackend) CreateStagingTexture(width, height int) (Texture, error) {
	return &fakeTexture{kind: "staging"}, nil
}
func (b *fakeBackend) CopyToStaging(src, dst Texture) error { return nil }
func (b *fakeBackend) MapStaging(dst Texture) ([]uint32, int, error) {
	return b.buffer, b.pitch, nil
}
func (b *fakeBackend) UnmapStaging(dst Texture) error { return nil }
func (b *fakeBackend) ReleaseTexture(t Texture) error { return nil }

func (b *fakeBackend) CreatePooledRT2D(width, height int, format PixelFormat, flags TextureFlags) (Texture, error) {
	return &fakeTexture{kind: "rt2d"}, nil
}
func (b *fakeBackend) ClearUAV(t Texture, clearValue uint32) error { return nil }
func (b *fakeBackend) DispatchUpdatePageTable(spaceID uint8, mip uint8, writes []vtpool.TableUpdate) error {
	cp := make([]vtpool.TableUpdate, len(writes))
	copy(cp, writes)
	b.updates = append(b.updates, recordedUpdate{spaceID: spaceID, mip: mip, writes: cp})
	return nil
}
func (b *fakeBackend) UploadPageRegion(pAddress uint16, src []byte, width, height int, format PixelFormat) error {
	return nil
}

// fakeProducer covers an entire Space's virtual address range: every page
// is always resident and "uploadable", recording each produce call.
type fakeProducer struct {
	sizeX, sizeY uint32
	produced     []produceCall
	failProduce  bool
}

type produceCall struct {
	vLevel   uint8
	vAddress uint64
	pAddress uint16
}

func (p *fakeProducer) VirtualSize() (uint32, uint32) { return p.sizeX, p.sizeY }

func (p *fakeProducer) LocatePageData(vLevel uint8, vAddress uint64) ([]byte, bool) {
	return []byte{0xaa}, true
}

func (p *fakeProducer) ProducePageData(backend GraphicsBackend, featureLevel int, vLevel uint8, vAddress uint64, pAddress uint16, src []byte) error {
	if p.failProduce {
		return &BackendError{Operation: "produce_page_data", Details: "injected failure"}
	}
	p.produced = append(p.produced, produceCall{vLevel: vLevel, vAddress: vAddress, pAddress: pAddress})
	return nil
}

// newScenarioASystem builds the Scenario A fixture: one Space, D=2,
// 4 levels, 16x16 page table, pool size 64, one producer covering the
// whole address range.
func newScenarioASystem(t *testing.T) (*System, *Space, *fakeProducer, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	sys := New(backend, Config{MaxUploadsPerFrame: 16, NumMipsToExpandRequests: 0, PageTableUpdateVariant: PaintersAlgorithm}, nil)

	space := NewSpace(0, 4, 2, 64, 16, PaintersAlgorithm)
	if err := sys.RegisterSpace(space); err != nil {
		t.Fatalf("RegisterSpace failed: %v", err)
	}

	producer := &fakeProducer{sizeX: 16, sizeY: 16}
	if _, ok := space.Allocator.Alloc(producer); !ok {
		t.Fatal("expected producer allocation to succeed")
	}

	return sys, space, producer, backend
}

func TestScenarioA_SinglePageStreamsIn(t *testing.T) {
	sys, space, producer, backend := newScenarioASystem(t)

	pixel := vtfeedback.EncodePixel(0, 0, 5, 3) // encode(space=0, level=0, pageX=5, pageY=3)
	if pixel != 12293 {
		t.Fatalf("EncodePixel(0,0,5,3) = %d, want 12293", pixel)
	}

	if err := sys.PrepareFeedback(1, 1); err != nil {
		t.Fatalf("CreateGPU failed: %v", err)
	}
	backend.queueFeedback([]uint32{pixel}, 1)
	if err := sys.SubmitFeedback(); err != nil {
		t.Fatalf("TransferGPUToCPU failed: %v", err)
	}

	if err := sys.Update(0); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	pAddr, ok := space.Pool.FindPage(0, 0, 39) // morton(5,3) = 39
	if !ok {
		t.Fatal("expected page (0, level 0, vAddress 39) to be mapped after one Update")
	}

	if sys.Stats.NumPageUploads != 1 {
		t.Fatalf("NumPageUploads = %d, want 1", sys.Stats.NumPageUploads)
	}
	if len(producer.produced) != 1 {
		t.Fatalf("producer.produced has %d entries, want 1", len(producer.produced))
	}

	var mip0 []vtpool.TableUpdate
	for _, u := range backend.updates {
		if u.spaceID == 0 && u.mip == 0 {
			mip0 = append(mip0, u.writes...)
		}
	}
	found := false
	for _, w := range mip0 {
		if w.VAddress == 39 && w.PAddress == uint16(pAddr) && w.VLevel == 0 && w.VLogSize == 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a mip-0 write {vAddress:39, pAddress:%d, vLevel:0, vLogSize:0}, got %+v", pAddr, mip0)
	}
}

func TestResidentPageSkipsReupload(t *testing.T) {
	sys, space, producer, backend := newScenarioASystem(t)

	pixel := vtfeedback.EncodePixel(0, 0, 5, 3)

	runFrame := func() {
		if err := sys.PrepareFeedback(1, 1); err != nil {
			t.Fatalf("CreateGPU failed: %v", err)
		}
		backend.queueFeedback([]uint32{pixel}, 1)
		if err := sys.SubmitFeedback(); err != nil {
			t.Fatalf("TransferGPUToCPU failed: %v", err)
		}
		if err := sys.Update(0); err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
	}

	runFrame()
	if sys.Stats.NumPageUploads != 1 {
		t.Fatalf("frame 1: NumPageUploads = %d, want 1", sys.Stats.NumPageUploads)
	}
	if sys.Stats.NumPageRequestsResident != 0 || sys.Stats.NumPageRequestsNotResident != 1 {
		t.Fatalf("frame 1: resident=%d notResident=%d, want 0,1", sys.Stats.NumPageRequestsResident, sys.Stats.NumPageRequestsNotResident)
	}

	runFrame()
	if sys.Stats.NumPageUploads != 0 {
		t.Fatalf("frame 2: NumPageUploads = %d, want 0 (page already resident)", sys.Stats.NumPageUploads)
	}
	if sys.Stats.NumPageRequestsResident != 1 || sys.Stats.NumPageRequestsNotResident != 0 {
		t.Fatalf("frame 2: resident=%d notResident=%d, want 1,0", sys.Stats.NumPageRequestsResident, sys.Stats.NumPageRequestsNotResident)
	}
	if len(producer.produced) != 1 {
		t.Fatalf("producer.produced has %d entries after 2 frames, want 1 (no reupload)", len(producer.produced))
	}
	if _, ok := space.Pool.FindPage(0, 0, 39); !ok {
		t.Fatal("expected page to remain mapped across both frames")
	}
}

func TestUploadLimitCapsPagesPerFrame(t *testing.T) {
	backend := &fakeBackend{}
	sys := New(backend, Config{MaxUploadsPerFrame: 1, NumMipsToExpandRequests: 0, PageTableUpdateVariant: PaintersAlgorithm}, nil)

	space := NewSpace(0, 4, 2, 64, 16, PaintersAlgorithm)
	if err := sys.RegisterSpace(space); err != nil {
		t.Fatalf("RegisterSpace failed: %v", err)
	}
	producer := &fakeProducer{sizeX: 16, sizeY: 16}
	if _, ok := space.Allocator.Alloc(producer); !ok {
		t.Fatal("expected producer allocation to succeed")
	}

	// Three distinct page requests in one row.
	buffer := []uint32{
		vtfeedback.EncodePixel(0, 0, 0, 0),
		vtfeedback.EncodePixel(0, 0, 1, 0),
		vtfeedback.EncodePixel(0, 0, 2, 0),
	}
	if err := sys.PrepareFeedback(3, 1); err != nil {
		t.Fatalf("CreateGPU failed: %v", err)
	}
	backend.queueFeedback(buffer, 3)
	if err := sys.SubmitFeedback(); err != nil {
		t.Fatalf("TransferGPUToCPU failed: %v", err)
	}

	if err := sys.Update(0); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if sys.Stats.NumPageRequestsNotResident != 3 {
		t.Fatalf("NumPageRequestsNotResident = %d, want 3", sys.Stats.NumPageRequestsNotResident)
	}
	if sys.Stats.NumPageUploads != 1 {
		t.Fatalf("NumPageUploads = %d, want 1 (capped by MaxUploadsPerFrame)", sys.Stats.NumPageUploads)
	}
	if len(producer.produced) != 1 {
		t.Fatalf("producer.produced has %d entries, want 1", len(producer.produced))
	}
}

func TestProduceFailureFreesSlotWithoutMapping(t *testing.T) {
	sys, space, producer, backend := newScenarioASystem(t)
	producer.failProduce = true

	pixel := vtfeedback.EncodePixel(0, 0, 5, 3)
	if err := sys.PrepareFeedback(1, 1); err != nil {
		t.Fatalf("CreateGPU failed: %v", err)
	}
	backend.queueFeedback([]uint32{pixel}, 1)
	if err := sys.SubmitFeedback(); err != nil {
		t.Fatalf("TransferGPUToCPU failed: %v", err)
	}

	if err := sys.Update(0); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if sys.Stats.NumBackendErrors != 1 {
		t.Fatalf("NumBackendErrors = %d, want 1", sys.Stats.NumBackendErrors)
	}
	if sys.Stats.NumPageUploads != 0 {
		t.Fatalf("NumPageUploads = %d, want 0", sys.Stats.NumPageUploads)
	}
	if _, ok := space.Pool.FindPage(0, 0, 39); ok {
		t.Fatal("expected the page to remain unmapped after a produce failure")
	}
	// The slot was freed during the frame Update just ran (sys.Frame was
	// already incremented past it by the time Update returns), so it's
	// immediately available again. The 63 untouched slots would keep
	// AnyFreeAvailable true on their own, so also drain the pool: all 64
	// slots, the failed one included, must be allocatable this frame.
	if !space.Pool.AnyFreeAvailable(sys.Frame) {
		t.Fatal("expected the slot to be returned to the free list after a produce failure")
	}
	allocatable := 0
	for space.Pool.AnyFreeAvailable(sys.Frame) {
		space.Pool.Alloc(sys.Frame)
		allocatable++
	}
	if allocatable != space.Pool.GetSize() {
		t.Fatalf("allocatable slots after a produce failure = %d, want %d", allocatable, space.Pool.GetSize())
	}
}

func TestRegisterSpaceRejectsDuplicateID(t *testing.T) {
	backend := &fakeBackend{}
	sys := New(backend, DefaultConfig(), nil)

	s1 := NewSpace(2, 4, 2, 16, 16, PaintersAlgorithm)
	if err := sys.RegisterSpace(s1); err != nil {
		t.Fatalf("first RegisterSpace failed: %v", err)
	}

	s2 := NewSpace(2, 4, 2, 16, 16, PaintersAlgorithm)
	if err := sys.RegisterSpace(s2); err == nil {
		t.Fatal("expected RegisterSpace to reject a duplicate ID")
	}

	sys.UnregisterSpace(2)
	if err := sys.RegisterSpace(s2); err != nil {
		t.Fatalf("expected RegisterSpace to succeed after UnregisterSpace, got %v", err)
	}
	if sys.GetSpace(2) != s2 {
		t.Fatal("GetSpace(2) did not return the re-registered space")
	}
}
