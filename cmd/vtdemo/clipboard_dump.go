package main

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// clipboardDumper copies the current page-table state out to the system
// clipboard as JSON, so it can be pasted into another tool for inspection.
// Grounded on video_backend_ebiten.go's clipboard.Init()/clipboard.Read
// pattern, used here for Write instead of Read: same sync.Once-gated init
// dance, since clipboard.Init can fail in a headless CI environment and
// that failure shouldn't be fatal to the demo.
type clipboardDumper struct {
	once sync.Once
	ok   bool
}

func newClipboardDumper() *clipboardDumper {
	return &clipboardDumper{}
}

// dump marshals entries to JSON and writes it to the system clipboard.
// Reports an error if the clipboard is unavailable (e.g. no display server)
// rather than treating that as fatal to the caller.
func (d *clipboardDumper) dump(entries []pageTableEntry) error {
	d.once.Do(func() {
		d.ok = clipboard.Init() == nil
	})
	if !d.ok {
		return fmt.Errorf("clipboardDumper: clipboard unavailable")
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("clipboardDumper: marshal: %w", err)
	}
	clipboard.Write(clipboard.FmtText, data)
	return nil
}
