package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/veltanox/vtengine/vtsystem"
)

// statusLine prints one line per frame summarizing a System's Stats, sized
// to the terminal width the way terminal_host.go queries raw stdin state
// before printing — here read-only, since the demo has no interactive
// keyboard input of its own.
type statusLine struct {
	width int
}

func newStatusLine() *statusLine {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	return &statusLine{width: width}
}

// format renders one summary line for frame/stats, independent of any
// particular output sink — shared by the terminal status line and the
// ebiten visualizer's window overlay.
func (s *statusLine) format(frame uint32, stats vtsystem.Stats) string {
	return fmt.Sprintf("frame %6d | visible %5d | requests %5d (resident %5d, miss %5d) | uploads %4d | backend-err %3d | exhausted %3d",
		frame, stats.NumPagesVisible, stats.NumPageRequests, stats.NumPageRequestsResident,
		stats.NumPageRequestsNotResident, stats.NumPageUploads, stats.NumBackendErrors, stats.NumResourceExhausted)
}

func (s *statusLine) print(frame uint32, stats vtsystem.Stats) {
	line := s.format(frame, stats)
	if len(line) > s.width && s.width > 3 {
		line = line[:s.width-3] + "..."
	}
	fmt.Fprintf(os.Stdout, "\r%s", line)
}

func (s *statusLine) finish() {
	fmt.Fprintln(os.Stdout)
}
