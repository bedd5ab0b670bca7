// Package vtsystem implements the per-frame orchestrator that ties the
// page pool, virtual address allocator, feedback ring and unique-page
// aggregator together: map feedback, aggregate requests, prioritize the
// non-resident ones, upload as many as the frame budget allows, flush
// page-table writes. See System.Update.
package vtsystem

import (
	"fmt"

	"github.com/veltanox/vtengine/vtaddr"
	"github.com/veltanox/vtengine/vtfeedback"
	"github.com/veltanox/vtengine/vtpool"
)

// Texture is the opaque GPU/staging resource handle shared with vtfeedback,
// so a single GraphicsBackend implementation satisfies both packages.
type Texture = vtfeedback.Texture

// PixelFormat names a physical page / page-table texture's storage format.
type PixelFormat int

const (
	FormatR32UInt PixelFormat = iota
	FormatRGBA8
)

// TextureFlags are bitwise OR'd creation hints for CreatePooledRT2D.
type TextureFlags int

const (
	FlagRenderTarget TextureFlags = 1 << iota
	FlagUAV
)

// PageTableUpdateVariant selects which of vtpool's two expansion algorithms
// a Space uses to turn a map/unmap into page-table writes.
type PageTableUpdateVariant int

const (
	PaintersAlgorithm PageTableUpdateVariant = iota
	MaskedQuadtree
)

// GraphicsBackend is the opaque, injected GPU surface the system drives.
// It embeds vtfeedback.Backend (the feedback ring's texture operations)
// and adds the page-table and physical-page upload operations no other
// package needs.
type GraphicsBackend interface {
	vtfeedback.Backend

	// CreatePooledRT2D allocates a render target or UAV texture of the
	// given size, format and usage flags.
	CreatePooledRT2D(width, height int, format PixelFormat, flags TextureFlags) (Texture, error)
	// ClearUAV clears t to clearValue.
	ClearUAV(t Texture, clearValue uint32) error
	// DispatchUpdatePageTable issues writes into space spaceID's page-table
	// texture at the given mip.
	DispatchUpdatePageTable(spaceID uint8, mip uint8, writes []vtpool.TableUpdate) error
	// UploadPageRegion uploads src into the physical page atlas slot
	// pAddress.
	UploadPageRegion(pAddress uint16, src []byte, width, height int, format PixelFormat) error
}

// PageProducer implements one virtual texture: it answers where a page's
// source data lives and performs the GPU upload when asked. Embeds
// vtaddr.Producer so a PageProducer value can be registered directly with
// a Space's Allocator.
type PageProducer interface {
	vtaddr.Producer

	// LocatePageData reports whether vLevel/vAddress's data is resident in
	// RAM and ready to upload. Must not block.
	LocatePageData(vLevel uint8, vAddress uint64) (src []byte, available bool)
	// ProducePageData performs the GPU upload for a page already located
	// via LocatePageData.
	ProducePageData(backend GraphicsBackend, featureLevel int, vLevel uint8, vAddress uint64, pAddress uint16, src []byte) error
}

// Config holds the per-system tunables.
type Config struct {
	MaxUploadsPerFrame      int
	NumMipsToExpandRequests uint32
	PageTableUpdateVariant  PageTableUpdateVariant
}

// DefaultConfig returns defaults matching the original engine's console
// variables (CVarVTMaxUploadsPerFrame = 16, CVarVTNumMipsToExpandRequests =
// 3, painter's algorithm).
func DefaultConfig() Config {
	return Config{
		MaxUploadsPerFrame:      16,
		NumMipsToExpandRequests: 3,
		PageTableUpdateVariant:  PaintersAlgorithm,
	}
}

// Stats exposes the counters a VT system is expected to surface to a
// profiler, plus two extra drop counters (NumBackendErrors,
// NumResourceExhausted) kept as the same "logged counter only" treatment.
type Stats struct {
	NumPagesVisible            int
	NumPageRequests            int
	NumPageRequestsResident    int
	NumPageRequestsNotResident int
	NumPageUploads             int
	NumBackendErrors           int
	NumResourceExhausted       int
}

// Logger is an injectable sink for non-fatal operational messages, never
// called on the per-page hot path itself — only the drop-and-count
// branches in Update.
type Logger func(format string, args ...any)

// BackendError reports a failure crossing the GraphicsBackend boundary,
// mirroring the common VideoError{Operation, Details, Err} wrapping used
// elsewhere in this codebase.
type BackendError struct {
	Operation string
	Details   string
	Err       error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vtsystem %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("vtsystem %s failed: %s", e.Operation, e.Details)
}

func (e *BackendError) Unwrap() error { return e.Err }

// InvariantError reports a programmer error: a broken internal invariant
// rather than an expected runtime condition. System.RegisterSpace returns
// it for an out-of-range or already-registered space ID.
type InvariantError struct {
	Component string
	Message   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("vtsystem: invariant violated in %s: %s", e.Component, e.Message)
}
