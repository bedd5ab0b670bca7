package main

import (
	"github.com/veltanox/vtengine/morton"
	"github.com/veltanox/vtengine/vtsystem"
)

// checkerboardProducer is a built-in synthetic vtsystem.PageProducer: its
// page content is generated on the fly from the page's own coordinates, so
// the demo has something to stream without needing any real texture asset
// on disk. Every page is "available" the instant it's requested — there's
// no simulated I/O latency here, unlike luaProducer which can be scripted
// to defer.
type checkerboardProducer struct {
	sizeX, sizeY uint32
	tileSize     int
}

func newCheckerboardProducer(sizeX, sizeY uint32) *checkerboardProducer {
	return &checkerboardProducer{sizeX: sizeX, sizeY: sizeY, tileSize: 128}
}

func (p *checkerboardProducer) VirtualSize() (sizeX, sizeY uint32) {
	return p.sizeX, p.sizeY
}

// LocatePageData synthesizes the page's pixel content directly: RGBA8,
// tileSize x tileSize, dark/light grey checker sized by vLevel so coarser mips
// show bigger squares.
func (p *checkerboardProducer) LocatePageData(vLevel uint8, vAddress uint64) (src []byte, available bool) {
	x, y := decodePage(vAddress)
	return p.render(vLevel, x, y), true
}

// decodePage splits a Morton-interleaved 2D local virtual address back into
// its page X/Y coordinates, shared by every built-in producer.
func decodePage(vAddress uint64) (x, y uint32) {
	return morton.Decode2(vAddress)
}

func (p *checkerboardProducer) ProducePageData(backend vtsystem.GraphicsBackend, featureLevel int, vLevel uint8, vAddress uint64, pAddress uint16, src []byte) error {
	return backend.UploadPageRegion(pAddress, src, p.tileSize, p.tileSize, vtsystem.FormatRGBA8)
}

func (p *checkerboardProducer) render(vLevel uint8, pageX, pageY uint32) []byte {
	squares := 1 << (3 - min(vLevel, 3))
	pixels := make([]byte, p.tileSize*p.tileSize*4)
	squareSize := p.tileSize / squares
	if squareSize == 0 {
		squareSize = 1
	}
	for row := 0; row < p.tileSize; row++ {
		for col := 0; col < p.tileSize; col++ {
			sx := (int(pageX) + col/squareSize)
			sy := (int(pageY) + row/squareSize)
			dark := (sx+sy)%2 == 0
			i := (row*p.tileSize + col) * 4
			if dark {
				pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 32, 32, 32, 255
			} else {
				pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 220, 220, 220, 255
			}
		}
	}
	return pixels
}

func min(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}
