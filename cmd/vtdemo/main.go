// Command vtdemo drives a vtsystem.System through a synthetic frame loop:
// a producer manufactures page content (either a procedural checkerboard
// or a user-supplied Lua script), a backend receives the uploads (either
// purely in memory or visualized in an ebiten window), and a feedback
// buffer simulating GPU sample requests is fed back in each frame.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/veltanox/vtengine/vtfeedback"
	"github.com/veltanox/vtengine/vtsystem"
)

func main() {
	var (
		frames         = flag.Int("frames", 120, "number of frames to simulate")
		spaceCount     = flag.Int("spaces", 1, "number of virtual texture spaces to register (max 16)")
		pageTableSize  = flag.Uint("levels", 4, "page table mip levels per space")
		poolSize       = flag.Uint("pool", 256, "physical page pool slots per space")
		addressSize    = flag.Uint("address-size", 64, "virtual address span (pages per axis) per space")
		maxUploads     = flag.Int("max-uploads", 16, "max page uploads per frame")
		expandMips     = flag.Uint("expand-mips", 3, "NumMipsToExpandRequests")
		feedbackW      = flag.Int("feedback-width", 64, "feedback texture width")
		feedbackH      = flag.Int("feedback-height", 64, "feedback texture height")
		producerKind   = flag.String("producer", "checkerboard", "page producer: checkerboard or lua")
		luaScript      = flag.String("lua-script", "", "path to a Lua script (required when -producer=lua)")
		writeScript    = flag.String("write-default-script", "", "write a sample Lua script to this path and exit")
		useEbiten      = flag.Bool("visualize", false, "render the physical page atlas in a window instead of running headless")
		dumpClipboard  = flag.Bool("dump-clipboard", false, "copy the final page-table state to the clipboard as JSON")
		seed           = flag.Int64("seed", 1, "random seed for synthetic feedback sampling")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vtdemo [options]\n\nRuns a synthetic virtual texture streaming loop.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vtdemo -frames 300 -visualize\n")
		fmt.Fprintf(os.Stderr, "  vtdemo -producer lua -lua-script myscript.lua\n")
		fmt.Fprintf(os.Stderr, "  vtdemo -write-default-script myscript.lua\n")
	}
	flag.Parse()

	if *writeScript != "" {
		if err := writeDefaultLuaScript(*writeScript); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *writeScript)
		return
	}

	if *producerKind == "lua" && *luaScript == "" {
		fmt.Fprintf(os.Stderr, "error: -producer=lua requires -lua-script\n")
		flag.Usage()
		os.Exit(1)
	}

	if *spaceCount < 1 || *spaceCount > 16 {
		fmt.Fprintf(os.Stderr, "error: -spaces must be in [1,16]\n")
		os.Exit(1)
	}

	var backend vtsystem.GraphicsBackend
	var visualizer *ebitenVisualizer
	if *useEbiten {
		visualizer = newEbitenVisualizer(128, 8)
		backend = visualizer
	} else {
		backend = newSoftwareBackend()
	}

	config := vtsystem.DefaultConfig()
	config.MaxUploadsPerFrame = *maxUploads
	config.NumMipsToExpandRequests = uint32(*expandMips)

	sys := vtsystem.New(backend, config, nil)

	type producerCloser interface{ Close() error }
	var closers []producerCloser

	for i := 0; i < *spaceCount; i++ {
		space := vtsystem.NewSpace(uint8(i), uint8(*pageTableSize), 2, uint32(*poolSize), uint32(*addressSize), vtsystem.PaintersAlgorithm)
		if err := sys.RegisterSpace(space); err != nil {
			fmt.Fprintf(os.Stderr, "error: registering space %d: %v\n", i, err)
			os.Exit(1)
		}

		switch *producerKind {
		case "lua":
			p, err := newLuaProducer(*luaScript, uint32(*addressSize), uint32(*addressSize))
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			if _, ok := space.Allocator.Alloc(p); !ok {
				fmt.Fprintf(os.Stderr, "error: allocating address space for lua producer on space %d\n", i)
				os.Exit(1)
			}
			closers = append(closers, p)
		default:
			p := newCheckerboardProducer(uint32(*addressSize), uint32(*addressSize))
			if _, ok := space.Allocator.Alloc(p); !ok {
				fmt.Fprintf(os.Stderr, "error: allocating address space for checkerboard producer on space %d\n", i)
				os.Exit(1)
			}
		}
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if visualizer != nil {
		if err := visualizer.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "error: starting visualizer: %v\n", err)
			os.Exit(1)
		}
		defer visualizer.Stop()
	}

	rng := rand.New(rand.NewSource(*seed))
	status := newStatusLine()

	for frame := 0; frame < *frames; frame++ {
		if err := sys.PrepareFeedback(*feedbackW, *feedbackH); err != nil {
			fmt.Fprintf(os.Stderr, "error: preparing feedback: %v\n", err)
			os.Exit(1)
		}
		writeFakeFeedback(backend, *feedbackW, *feedbackH, *spaceCount, uint32(*addressSize), uint8(*pageTableSize), rng)
		if err := sys.SubmitFeedback(); err != nil {
			fmt.Fprintf(os.Stderr, "error: submitting feedback: %v\n", err)
			os.Exit(1)
		}

		if err := sys.Update(0); err != nil {
			fmt.Fprintf(os.Stderr, "vtdemo: frame %d: %v\n", frame, err)
		}
		status.print(sys.Frame, sys.Stats)

		if visualizer != nil {
			visualizer.SetStatusText(status.format(sys.Frame, sys.Stats))
			time.Sleep(16 * time.Millisecond)
		}
	}
	status.finish()

	if *dumpClipboard {
		sb, ok := backendAsSoftware(backend)
		if !ok {
			fmt.Fprintln(os.Stderr, "warning: -dump-clipboard requires a software-backed backend")
		} else {
			entries, _, _ := sb.snapshot()
			dumper := newClipboardDumper()
			if err := dumper.dump(entries); err != nil {
				fmt.Fprintf(os.Stderr, "warning: clipboard dump failed: %v\n", err)
			} else {
				fmt.Printf("copied %d page-table entries to clipboard\n", len(entries))
			}
		}
	}
}

// backendAsSoftware recovers the *softwareBackend underlying either backend
// variant, since both the plain software backend and the ebiten visualizer
// embed one.
func backendAsSoftware(backend vtsystem.GraphicsBackend) (*softwareBackend, bool) {
	switch b := backend.(type) {
	case *softwareBackend:
		return b, true
	case *ebitenVisualizer:
		return b.softwareBackend, true
	default:
		return nil, false
	}
}

// writeFakeFeedback synthesizes a GPU feedback buffer by sampling random
// page requests across the registered spaces' mip ranges, standing in for
// whatever a real render pass would have written from actual camera
// visibility.
func writeFakeFeedback(backend vtsystem.GraphicsBackend, width, height, spaceCount int, addressSize uint32, levels uint8, rng *rand.Rand) {
	sb, ok := backendAsSoftware(backend)
	if !ok {
		return
	}
	sb.writeFeedback(width, height, func(px, py int) uint32 {
		spaceID := uint8(rng.Intn(spaceCount))
		level := uint8(rng.Intn(int(levels)))
		pageX := uint32(rng.Intn(int(addressSize)))
		pageY := uint32(rng.Intn(int(addressSize)))
		return vtfeedback.EncodePixel(spaceID, level, pageX, pageY)
	})
}
