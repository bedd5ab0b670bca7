// Package vtfeedback implements the two-buffer GPU->CPU feedback ring: a
// render pass writes packed per-pixel page requests into a pooled GPU
// texture, the engine transfers that texture to a CPU-readable staging
// copy, and the following frame maps it for analysis. The map blocks until
// the GPU copy completes, trading one frame of latency for never stalling
// the render thread on the copy itself.
package vtfeedback

import "fmt"

// Sentinel marks a feedback pixel that recorded no sample request.
const Sentinel uint32 = 0xFFFFFFFF

// FeedbackError reports a failure crossing the Backend boundary, mirroring
// the common VideoError{Operation, Details, Err} wrapping used elsewhere in
// this codebase.
type FeedbackError struct {
	Operation string
	Details   string
	Err       error
}

func (e *FeedbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vtfeedback %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("vtfeedback %s failed: %s", e.Operation, e.Details)
}

func (e *FeedbackError) Unwrap() error { return e.Err }

// Texture is an opaque handle to a backend-owned GPU or staging resource.
// Backends define their own concrete type; vtfeedback never inspects it.
type Texture interface{}

// Backend is the minimal graphics surface the feedback ring needs. A
// vtsystem.GraphicsBackend implementation satisfies this directly.
type Backend interface {
	// CreateFeedbackTexture allocates a pooled R32_UINT render target of
	// the given size, cleared to Sentinel.
	CreateFeedbackTexture(width, height int) (Texture, error)
	// CreateStagingTexture allocates a CPU-readable texture sized to match
	// a feedback texture.
	CreateStagingTexture(width, height int) (Texture, error)
	// CopyToStaging issues a GPU->staging copy of src into dst.
	CopyToStaging(src, dst Texture) error
	// MapStaging blocks until dst's copy is complete and returns its
	// contents as a flat row-major uint32 buffer plus its pitch in
	// elements (pitch may exceed width due to backend row alignment).
	MapStaging(dst Texture) (buffer []uint32, pitch int, err error)
	// UnmapStaging releases the CPU mapping obtained from MapStaging.
	UnmapStaging(dst Texture) error
	// ReleaseTexture frees a texture obtained from Create{Feedback,Staging}Texture.
	ReleaseTexture(t Texture) error
}

// Ring owns the GPU and CPU textures for one frame's worth of feedback.
// Not safe for concurrent use — a vtsystem.System drives exactly one Ring
// from its own frame loop.
type Ring struct {
	backend Backend

	width, height int
	gpu           Texture
	cpu           Texture
	mapped        bool
}

// New creates a Ring against the given backend. The ring holds no textures
// until CreateGPU is called.
func New(backend Backend) *Ring {
	return &Ring{backend: backend}
}

// CreateGPU allocates this frame's GPU feedback texture, releasing any
// texture left over from a prior frame that was never transferred.
func (r *Ring) CreateGPU(width, height int) error {
	if r.gpu != nil {
		if err := r.backend.ReleaseTexture(r.gpu); err != nil {
			return &FeedbackError{Operation: "create_gpu", Details: "releasing stale GPU texture", Err: err}
		}
		r.gpu = nil
	}

	tex, err := r.backend.CreateFeedbackTexture(width, height)
	if err != nil {
		return &FeedbackError{Operation: "create_gpu", Details: fmt.Sprintf("%dx%d", width, height), Err: err}
	}

	r.width, r.height = width, height
	r.gpu = tex
	return nil
}

// TransferGPUToCPU allocates the CPU staging texture and copies the GPU
// feedback texture into it. Call once per frame after the render pass that
// writes the GPU texture has been submitted.
func (r *Ring) TransferGPUToCPU() error {
	if r.gpu == nil {
		return &FeedbackError{Operation: "transfer_gpu_to_cpu", Details: "no GPU texture created this frame"}
	}

	staging, err := r.backend.CreateStagingTexture(r.width, r.height)
	if err != nil {
		return &FeedbackError{Operation: "transfer_gpu_to_cpu", Details: "allocating staging texture", Err: err}
	}

	if err := r.backend.CopyToStaging(r.gpu, staging); err != nil {
		_ = r.backend.ReleaseTexture(staging)
		return &FeedbackError{Operation: "transfer_gpu_to_cpu", Details: "copy", Err: err}
	}

	if err := r.backend.ReleaseTexture(r.gpu); err != nil {
		return &FeedbackError{Operation: "transfer_gpu_to_cpu", Details: "releasing GPU texture", Err: err}
	}
	r.gpu = nil
	r.cpu = staging
	return nil
}

// Size returns the width and height passed to the most recent CreateGPU
// call, valid until the next Unmap clears it. Callers need this alongside
// Map's buffer/pitch to know how many rows/columns of the buffer are live.
func (r *Ring) Size() (width, height int) { return r.width, r.height }

// Map blocks until the staging copy from the prior TransferGPUToCPU is
// GPU-complete, then returns its buffer and pitch. Callers must budget this
// wait against frame time — it is a real stall, not a hidden one. Returns
// (nil, 0, nil) if no transfer is pending, matching the original's "only
// maps when Size is non-zero" guard.
func (r *Ring) Map() ([]uint32, int, error) {
	if r.cpu == nil {
		return nil, 0, nil
	}

	buffer, pitch, err := r.backend.MapStaging(r.cpu)
	if err != nil {
		return nil, 0, &FeedbackError{Operation: "map", Details: "staging surface", Err: err}
	}
	r.mapped = true
	return buffer, pitch, nil
}

// Unmap releases the CPU mapping and the staging texture, and clears the
// ring's size so CreateGPU must be called again before the next Map.
func (r *Ring) Unmap() error {
	if !r.mapped {
		return &FeedbackError{Operation: "unmap", Details: "no outstanding Map"}
	}

	if err := r.backend.UnmapStaging(r.cpu); err != nil {
		return &FeedbackError{Operation: "unmap", Details: "staging surface", Err: err}
	}
	if err := r.backend.ReleaseTexture(r.cpu); err != nil {
		return &FeedbackError{Operation: "unmap", Details: "releasing staging texture", Err: err}
	}

	r.cpu = nil
	r.mapped = false
	r.width, r.height = 0, 0
	return nil
}

// DecodePixel unpacks one feedback pixel into (spaceID, level, pageX,
// pageY), reporting ok=false for the sentinel "no request" value.
func DecodePixel(pixel uint32) (spaceID, level uint8, pageX, pageY uint32, ok bool) {
	if pixel == Sentinel {
		return 0, 0, 0, 0, false
	}
	pageX = pixel & 0xfff
	pageY = (pixel >> 12) & 0xfff
	level = uint8((pixel >> 24) & 0xf)
	spaceID = uint8((pixel >> 28) & 0xf)
	return spaceID, level, pageX, pageY, true
}

// EncodePixel packs a sample request the way the render pipeline would,
// used by tests and synthetic producers to build feedback buffers.
func EncodePixel(spaceID, level uint8, pageX, pageY uint32) uint32 {
	return (pageX & 0xfff) | ((pageY & 0xfff) << 12) | (uint32(level&0xf) << 24) | (uint32(spaceID&0xf) << 28)
}
