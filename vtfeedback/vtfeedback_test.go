package vtfeedback

import (
	"errors"
	"testing"
)

type fakeTexture struct {
	name     string
	released bool
}

type fakeBackend struct {
	nextID      int
	created     []*fakeTexture
	copies      int
	mapCalls    int
	unmapCalls  int
	failCreate  bool
	failCopy    bool
	failMap     bool
	mappedData  []uint32
	mappedPitch int
}

func (b *fakeBackend) CreateFeedbackTexture(w, h int) (Texture, error) {
	return b.create("feedback")
}

func (b *fakeBackend) CreateStagingTexture(w, h int) (Texture, error) {
	return b.create("staging")
}

func (b *fakeBackend) create(name string) (Texture, error) {
	if b.failCreate {
		return nil, errors.New("device lost")
	}
	b.nextID++
	t := &fakeTexture{name: name}
	b.created = append(b.created, t)
	return t, nil
}

func (b *fakeBackend) CopyToStaging(src, dst Texture) error {
	b.copies++
	if b.failCopy {
		return errors.New("copy failed")
	}
	return nil
}

func (b *fakeBackend) MapStaging(dst Texture) ([]uint32, int, error) {
	b.mapCalls++
	if b.failMap {
		return nil, 0, errors.New("staging not ready")
	}
	return b.mappedData, b.mappedPitch, nil
}

func (b *fakeBackend) UnmapStaging(dst Texture) error {
	b.unmapCalls++
	return nil
}

func (b *fakeBackend) ReleaseTexture(t Texture) error {
	t.(*fakeTexture).released = true
	return nil
}

func TestCreateGPUTransferMapUnmapHappyPath(t *testing.T) {
	backend := &fakeBackend{mappedData: []uint32{1, 2, 3, 4}, mappedPitch: 4}
	ring := New(backend)

	if err := ring.CreateGPU(64, 64); err != nil {
		t.Fatalf("CreateGPU: %v", err)
	}
	if err := ring.TransferGPUToCPU(); err != nil {
		t.Fatalf("TransferGPUToCPU: %v", err)
	}
	if backend.copies != 1 {
		t.Fatalf("copies = %d, want 1", backend.copies)
	}

	buf, pitch, err := ring.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if pitch != 4 || len(buf) != 4 {
		t.Fatalf("Map returned buf=%v pitch=%d, want len 4 pitch 4", buf, pitch)
	}

	if err := ring.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if backend.unmapCalls != 1 {
		t.Fatalf("unmapCalls = %d, want 1", backend.unmapCalls)
	}
}

func TestMapWithoutTransferReturnsNilBuffer(t *testing.T) {
	backend := &fakeBackend{}
	ring := New(backend)
	if err := ring.CreateGPU(8, 8); err != nil {
		t.Fatalf("CreateGPU: %v", err)
	}

	buf, pitch, err := ring.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if buf != nil || pitch != 0 {
		t.Fatalf("Map with no pending transfer = (%v, %d), want (nil, 0)", buf, pitch)
	}
}

func TestUnmapWithoutMapReturnsError(t *testing.T) {
	backend := &fakeBackend{}
	ring := New(backend)
	if err := ring.Unmap(); err == nil {
		t.Fatal("expected error unmapping without a prior Map")
	}
}

func TestTransferGPUToCPUFailureLeavesRingUsable(t *testing.T) {
	backend := &fakeBackend{failCopy: true}
	ring := New(backend)
	_ = ring.CreateGPU(8, 8)

	if err := ring.TransferGPUToCPU(); err == nil {
		t.Fatal("expected TransferGPUToCPU to surface the copy failure")
	}

	var fe *FeedbackError
	if !errors.As(ring.TransferGPUToCPU(), &fe) {
		t.Fatal("expected a *FeedbackError")
	}

	backend.failCopy = false
	if err := ring.TransferGPUToCPU(); err != nil {
		t.Fatalf("TransferGPUToCPU after the copy recovered: %v", err)
	}
}

func TestCreateGPUReleasesStaleTextureFromPriorFrame(t *testing.T) {
	backend := &fakeBackend{}
	ring := New(backend)
	_ = ring.CreateGPU(8, 8)
	first := ring.gpu.(*fakeTexture)

	_ = ring.CreateGPU(16, 16)
	if !first.released {
		t.Fatal("expected the first frame's GPU texture to be released when a new one is created")
	}
}

func TestEncodeDecodePixelRoundTrip(t *testing.T) {
	pixel := EncodePixel(0, 0, 5, 3)
	if pixel != 12293 {
		t.Fatalf("EncodePixel(0,0,5,3) = %d, want 12293", pixel)
	}

	space, level, x, y, ok := DecodePixel(pixel)
	if !ok || space != 0 || level != 0 || x != 5 || y != 3 {
		t.Fatalf("DecodePixel(%d) = (%d,%d,%d,%d,%v), want (0,0,5,3,true)", pixel, space, level, x, y, ok)
	}
}

func TestDecodeSentinelReportsNoRequest(t *testing.T) {
	if _, _, _, _, ok := DecodePixel(Sentinel); ok {
		t.Fatal("expected DecodePixel(Sentinel) to report ok=false")
	}
}
