//go:build !headless

package main

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ebitenVisualizer wraps a softwareBackend with a window that renders the
// physical page atlas as a mosaic of tiles, one per pool slot. Grounded on
// video_backend_ebiten.go's EbitenOutput: same frameBuffer/mutex/vsyncChan
// handshake in Start, same Draw/Layout shape, but driving ebiten.NewImage
// from atlasMosaic's composited bytes instead of a single flat framebuffer.
type ebitenVisualizer struct {
	*softwareBackend

	running    bool
	window     *ebiten.Image
	tileSize   int
	cols       int
	vsyncChan  chan struct{}
	statusText string

	mu sync.Mutex
}

// SetStatusText sets the one-line overlay drawn in the window's top-left
// corner on the next Draw call. Called once per frame from the demo's main
// loop, mirroring the same per-frame stats the terminal status line prints.
func (v *ebitenVisualizer) SetStatusText(s string) {
	v.mu.Lock()
	v.statusText = s
	v.mu.Unlock()
}

func newEbitenVisualizer(tileSize, cols int) *ebitenVisualizer {
	return &ebitenVisualizer{
		softwareBackend: newSoftwareBackend(),
		tileSize:        tileSize,
		cols:            cols,
		vsyncChan:       make(chan struct{}, 1),
	}
}

// Start launches the ebiten window in a goroutine and waits for its first
// Draw call, matching EbitenOutput.Start's readiness handshake.
func (v *ebitenVisualizer) Start() error {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		return nil
	}
	v.running = true
	v.mu.Unlock()

	ebiten.SetWindowTitle("vtdemo — physical page atlas")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		if err := ebiten.RunGame(v); err != nil {
			fmt.Printf("vtdemo: ebiten exited: %v\n", err)
		}
	}()

	<-v.vsyncChan
	return nil
}

func (v *ebitenVisualizer) Stop() error {
	v.mu.Lock()
	v.running = false
	v.mu.Unlock()
	return nil
}

func (v *ebitenVisualizer) Draw(screen *ebiten.Image) {
	pixels, width, height := v.atlasMosaic(v.tileSize, v.cols)
	if width == 0 || height == 0 {
		return
	}

	v.mu.Lock()
	status := v.statusText
	if v.window == nil || v.window.Bounds().Dx() != width || v.window.Bounds().Dy() != height {
		if v.window != nil {
			v.window.Dispose()
		}
		v.window = ebiten.NewImage(width, height)
	}
	v.window.WritePixels(overlayStatusText(pixels, width, height, status))
	v.mu.Unlock()

	screen.DrawImage(v.window, nil)

	select {
	case v.vsyncChan <- struct{}{}:
	default:
	}
}

// overlayStatusText composites text onto a copy of a row-major RGBA buffer
// using golang.org/x/image/font's basicfont face and golang.org/x/image/draw
// to blend the rendered glyphs in, returning a new buffer and leaving pixels
// unmodified. An empty status returns pixels itself.
func overlayStatusText(pixels []byte, width, height int, status string) []byte {
	if status == "" {
		return pixels
	}

	base := &image.RGBA{Pix: append([]byte(nil), pixels...), Stride: width * 4, Rect: image.Rect(0, 0, width, height)}

	textHeight := basicfont.Face7x13.Height + 4
	if textHeight > height {
		return base.Pix
	}
	textImg := image.NewRGBA(image.Rect(0, 0, width, textHeight))
	draw.Draw(textImg, textImg.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 200}), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(4), Y: basicfont.Face7x13.Ascent},
	}
	d.DrawString(status)

	draw.Draw(base, textImg.Bounds(), textImg, image.Point{}, draw.Over)
	return base.Pix
}

func (v *ebitenVisualizer) Layout(outsideWidth, outsideHeight int) (int, int) {
	_, uploadCount, _ := v.snapshot()
	if uploadCount == 0 {
		return v.tileSize * v.cols, v.tileSize
	}
	rows := uploadCount/v.cols + 1
	return v.tileSize * v.cols, v.tileSize * rows
}

func (v *ebitenVisualizer) Update() error { return nil }
