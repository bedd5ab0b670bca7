package main

import (
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/veltanox/vtengine/vtsystem"
)

// luaProducer implements vtsystem.PageProducer by calling into a
// user-supplied Lua script's locate_page/produce_page globals. This file's
// calling conventions (NewState, DoFile, GetGlobal, CallByParam,
// LVAsBool/LVAsNumber return-value extraction) follow gopher-lua's own
// documented API; see DESIGN.md for where that API is grounded.
//
// A *lua.LState is not safe for concurrent use, but uploadRequests calls
// LocatePageData from multiple goroutines during its locate pre-pass, so
// every call is serialized behind a mutex.
type luaProducer struct {
	mu sync.Mutex
	L  *lua.LState

	sizeX, sizeY uint32
	tileSize     int
}

// newLuaProducer loads scriptPath and returns a producer backed by its
// locate_page(level, x, y) -> available(bool) and
// produce_page(level, x, y) -> r, g, b (0-255 ints) globals.
func newLuaProducer(scriptPath string, sizeX, sizeY uint32) (*luaProducer, error) {
	L := lua.NewState()
	if err := L.DoFile(scriptPath); err != nil {
		L.Close()
		return nil, fmt.Errorf("luaProducer: loading %s: %w", scriptPath, err)
	}
	return &luaProducer{L: L, sizeX: sizeX, sizeY: sizeY, tileSize: 128}, nil
}

func (p *luaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.L.Close()
	return nil
}

func (p *luaProducer) VirtualSize() (sizeX, sizeY uint32) {
	return p.sizeX, p.sizeY
}

// LocatePageData calls the script's locate_page(level, x, y) function,
// which must return a single boolean. A script that omits locate_page is
// treated as "always available", so simple scripts only need produce_page.
func (p *luaProducer) LocatePageData(vLevel uint8, vAddress uint64) (src []byte, available bool) {
	x, y := decodePage(vAddress)

	p.mu.Lock()
	defer p.mu.Unlock()

	fn := p.L.GetGlobal("locate_page")
	if fn == lua.LNil {
		return nil, true
	}

	if err := p.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true},
		lua.LNumber(vLevel), lua.LNumber(x), lua.LNumber(y)); err != nil {
		return nil, false
	}
	ret := p.L.Get(-1)
	p.L.Pop(1)
	return nil, lua.LVAsBool(ret)
}

// ProducePageData calls the script's produce_page(level, x, y) function,
// which must return three integers 0-255 (r, g, b), fills a tileSize x
// tileSize solid-color RGBA8 page from them, and uploads it.
func (p *luaProducer) ProducePageData(backend vtsystem.GraphicsBackend, featureLevel int, vLevel uint8, vAddress uint64, pAddress uint16, src []byte) error {
	x, y := decodePage(vAddress)

	p.mu.Lock()
	fn := p.L.GetGlobal("produce_page")
	if fn == lua.LNil {
		p.mu.Unlock()
		return &vtsystem.BackendError{Operation: "lua_produce_page", Details: "script defines no produce_page function"}
	}
	if err := p.L.CallByParam(lua.P{Fn: fn, NRet: 3, Protect: true},
		lua.LNumber(vLevel), lua.LNumber(x), lua.LNumber(y)); err != nil {
		p.mu.Unlock()
		return &vtsystem.BackendError{Operation: "lua_produce_page", Details: "produce_page call", Err: err}
	}
	b := byte(lua.LVAsNumber(p.L.Get(-1)))
	g := byte(lua.LVAsNumber(p.L.Get(-2)))
	r := byte(lua.LVAsNumber(p.L.Get(-3)))
	p.L.Pop(3)
	p.mu.Unlock()

	pixels := make([]byte, p.tileSize*p.tileSize*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = r, g, b, 255
	}
	return backend.UploadPageRegion(pAddress, pixels, p.tileSize, p.tileSize, vtsystem.FormatRGBA8)
}

// defaultLuaScript is written out by -write-default-script so there's
// something runnable to point -lua-script at without hand-writing one.
const defaultLuaScript = `-- vtdemo default producer script
function locate_page(level, x, y)
  return true
end

function produce_page(level, x, y)
  local r = (x * 37) % 256
  local g = (y * 61) % 256
  local b = (level * 85) % 256
  return r, g, b
end
`

func writeDefaultLuaScript(path string) error {
	return os.WriteFile(path, []byte(defaultLuaScript), 0o644)
}
