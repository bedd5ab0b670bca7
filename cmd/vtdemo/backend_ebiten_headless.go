//go:build headless

package main

// ebitenVisualizer under the headless build tag is just the software
// backend with no-op window lifecycle methods, the same same-type-name
// swap voodoo_vulkan_headless.go uses to keep a build buildable without a
// display server or GPU driver available.
type ebitenVisualizer struct {
	*softwareBackend
}

func newEbitenVisualizer(tileSize, cols int) *ebitenVisualizer {
	return &ebitenVisualizer{softwareBackend: newSoftwareBackend()}
}

func (v *ebitenVisualizer) Start() error { return nil }
func (v *ebitenVisualizer) Stop() error  { return nil }
