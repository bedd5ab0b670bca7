package main

import (
	"fmt"
	"sync"

	"github.com/veltanox/vtengine/vtfeedback"
	"github.com/veltanox/vtengine/vtpool"
	"github.com/veltanox/vtengine/vtsystem"
)

// memTexture is the software backend's only resource type: a flat pixel
// buffer tagged with the size it was created at. Standing in for whatever
// a real backend's GPU/staging resource would be.
type memTexture struct {
	width, height int
	pixels        []uint32
}

// pageTableKey identifies one (space, mip) page-table texture.
type pageTableKey struct {
	spaceID uint8
	mip     uint8
}

// softwareBackend implements vtsystem.GraphicsBackend entirely in process
// memory: no GPU, no window. It's the demo's default backend, following the
// same pattern as voodoo_vulkan_headless.go (a software implementation
// standing in under the same interface a real backend satisfies) — a
// backend usable without a display so the frame loop runs under "go test"
// or in CI.
type softwareBackend struct {
	mu sync.Mutex

	// tables holds the logical content of every page-table texture this
	// backend has ever received a DispatchUpdatePageTable for, keyed by
	// vAddress at that mip: vAddress -> pAddress. This is the same
	// information a real page-table texture's texels would encode.
	tables map[pageTableKey]map[uint32]uint16

	// atlas holds the most recent upload for each physical slot, purely
	// for the demo's inspection/dump commands.
	atlas map[uint16]atlasEntry

	uploadCount   int
	dispatchCount int

	// lastFeedback is the most recently allocated feedback texture, kept so
	// the demo's synthetic render pass has somewhere to write sample
	// requests into before SubmitFeedback copies it to staging.
	lastFeedback *memTexture
}

type atlasEntry struct {
	width, height int
	format        vtsystem.PixelFormat
	data          []byte
}

func newSoftwareBackend() *softwareBackend {
	return &softwareBackend{
		tables: make(map[pageTableKey]map[uint32]uint16),
		atlas:  make(map[uint16]atlasEntry),
	}
}

func (b *softwareBackend) CreateFeedbackTexture(width, height int) (vtsystem.Texture, error) {
	pixels := make([]uint32, width*height)
	for i := range pixels {
		pixels[i] = vtfeedback.Sentinel
	}
	tex := &memTexture{width: width, height: height, pixels: pixels}

	b.mu.Lock()
	b.lastFeedback = tex
	b.mu.Unlock()

	return tex, nil
}

// writeFeedback fills the most recently created feedback texture by calling
// genPixel for every (x, y) coordinate, standing in for whatever a real
// render pass would have sampled. No-op if no feedback texture has been
// created yet.
func (b *softwareBackend) writeFeedback(width, height int, genPixel func(x, y int) uint32) {
	b.mu.Lock()
	tex := b.lastFeedback
	b.mu.Unlock()
	if tex == nil {
		return
	}
	for y := 0; y < height && y < tex.height; y++ {
		for x := 0; x < width && x < tex.width; x++ {
			tex.pixels[y*tex.width+x] = genPixel(x, y)
		}
	}
}

func (b *softwareBackend) CreateStagingTexture(width, height int) (vtsystem.Texture, error) {
	return &memTexture{width: width, height: height, pixels: make([]uint32, width*height)}, nil
}

func (b *softwareBackend) CopyToStaging(src, dst vtsystem.Texture) error {
	s, ok := src.(*memTexture)
	if !ok {
		return fmt.Errorf("softwareBackend: CopyToStaging: src is not a memTexture")
	}
	d, ok := dst.(*memTexture)
	if !ok {
		return fmt.Errorf("softwareBackend: CopyToStaging: dst is not a memTexture")
	}
	if len(s.pixels) != len(d.pixels) {
		return fmt.Errorf("softwareBackend: CopyToStaging: size mismatch (%dx%d vs %dx%d)", s.width, s.height, d.width, d.height)
	}
	copy(d.pixels, s.pixels)
	return nil
}

func (b *softwareBackend) MapStaging(dst vtsystem.Texture) ([]uint32, int, error) {
	d, ok := dst.(*memTexture)
	if !ok {
		return nil, 0, fmt.Errorf("softwareBackend: MapStaging: not a memTexture")
	}
	return d.pixels, d.width, nil
}

func (b *softwareBackend) UnmapStaging(dst vtsystem.Texture) error { return nil }

func (b *softwareBackend) ReleaseTexture(t vtsystem.Texture) error { return nil }

func (b *softwareBackend) CreatePooledRT2D(width, height int, format vtsystem.PixelFormat, flags vtsystem.TextureFlags) (vtsystem.Texture, error) {
	return &memTexture{width: width, height: height, pixels: make([]uint32, width*height)}, nil
}

func (b *softwareBackend) ClearUAV(t vtsystem.Texture, clearValue uint32) error {
	tex, ok := t.(*memTexture)
	if !ok {
		return fmt.Errorf("softwareBackend: ClearUAV: not a memTexture")
	}
	for i := range tex.pixels {
		tex.pixels[i] = clearValue
	}
	return nil
}

// DispatchUpdatePageTable merges writes into this (spaceID, mip)'s logical
// page-table content. Later writes overwrite earlier ones at the same
// vAddress, matching how a real texture write would land: ExpandPainters
// relies on this overwrite order to let descendants paint over ancestors.
func (b *softwareBackend) DispatchUpdatePageTable(spaceID uint8, mip uint8, writes []vtpool.TableUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := pageTableKey{spaceID: spaceID, mip: mip}
	table := b.tables[key]
	if table == nil {
		table = make(map[uint32]uint16)
		b.tables[key] = table
	}
	for _, w := range writes {
		table[w.VAddress] = w.PAddress
	}
	b.dispatchCount++
	return nil
}

func (b *softwareBackend) UploadPageRegion(pAddress uint16, src []byte, width, height int, format vtsystem.PixelFormat) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := make([]byte, len(src))
	copy(data, src)
	b.atlas[pAddress] = atlasEntry{width: width, height: height, format: format, data: data}
	b.uploadCount++
	return nil
}

// pageTableEntry is one resolved page-table cell, used by the clipboard
// dump and the status line.
type pageTableEntry struct {
	SpaceID  uint8  `json:"space_id"`
	Mip      uint8  `json:"mip"`
	VAddress uint32 `json:"v_address"`
	PAddress uint16 `json:"p_address"`
}

// snapshot returns every page-table cell currently known to the backend,
// plus counters for the status line.
func (b *softwareBackend) snapshot() ([]pageTableEntry, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var entries []pageTableEntry
	for key, table := range b.tables {
		for vAddr, pAddr := range table {
			entries = append(entries, pageTableEntry{
				SpaceID: key.spaceID, Mip: key.mip, VAddress: vAddr, PAddress: pAddr,
			})
		}
	}
	return entries, b.uploadCount, b.dispatchCount
}

// atlasMosaic composites every uploaded page into a single row-major RGBA
// buffer, tileSize square tiles arranged cols-wide, for the ebiten
// visualizer's Draw call. Slots with no upload yet are left black.
func (b *softwareBackend) atlasMosaic(tileSize, cols int) (pixels []byte, width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	maxSlot := uint16(0)
	for slot := range b.atlas {
		if slot > maxSlot {
			maxSlot = slot
		}
	}
	rows := int(maxSlot)/cols + 1
	width = cols * tileSize
	height = rows * tileSize
	pixels = make([]byte, width*height*4)

	for slot, entry := range b.atlas {
		col := int(slot) % cols
		row := int(slot) / cols
		ox, oy := col*tileSize, row*tileSize
		for y := 0; y < entry.height && y < tileSize; y++ {
			srcOff := y * entry.width * 4
			dstOff := ((oy+y)*width + ox) * 4
			n := entry.width * 4
			if n > len(entry.data)-srcOff {
				n = len(entry.data) - srcOff
			}
			if n > 0 {
				copy(pixels[dstOff:dstOff+n], entry.data[srcOff:srcOff+n])
			}
		}
	}
	return pixels, width, height
}
