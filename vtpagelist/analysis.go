package vtpagelist

import (
	"github.com/veltanox/vtengine/morton"
	"github.com/veltanox/vtengine/vtfeedback"
)

const noPage = 0xffffffff

// FeedbackAnalysis scans a width x height feedback buffer (row pitch in
// elements, may exceed width) and inserts each distinct decoded page into
// list, collapsing horizontal runs of identical raw pixels and again
// collapsing adjacent pixels that decode to the same page after mip
// clamping and address masking — exactly as the original's single-pass
// combine-then-decode loop does, rather than two separate passes.
func FeedbackAnalysis(list *UniquePageList, buffer []uint32, width, height, pitch uint32) {
	lastPixel := uint32(vtfeedback.Sentinel)
	lastPage := uint32(noPage)
	lastCount := uint32(0)

	flush := func() {
		if lastPage != noPage {
			list.Add(lastPage, lastCount)
		}
	}

	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			pixel := buffer[x+y*pitch]
			if pixel == vtfeedback.Sentinel {
				continue
			}
			if pixel == lastPixel {
				lastCount++
				continue
			}

			id, level, pageX, pageY, ok := vtfeedback.DecodePixel(pixel)
			if !ok {
				continue
			}

			maxLevel := uint32(list.NumLevels[id]) - 1
			dimensions := uint32(list.Dimensions[id])

			vAddress := morton.Encode2(pageX, pageY)
			vLevel := uint32(level)
			if vLevel > maxLevel {
				vLevel = maxLevel
			}
			vAddress = morton.MaskToLevel(vAddress, dimensions, vLevel)

			page := EncodePage(id, uint8(vLevel), uint32(vAddress))
			if page == lastPage {
				lastCount++
				continue
			}

			flush()

			lastPixel = pixel
			lastPage = page
			lastCount = 1
		}
	}

	flush()
}
