// Package vtpool implements the physical page pool: a fixed-size table of
// physical texture slots, an LRU free list prioritized by allocation frame
// and mip level, a (ID, level, vAddress)->slot hash lookup, and the page
// table update engine that turns pool contents into page-table texture
// writes (the "painter's" and "masked" expansion variants).
package vtpool

// Unmapped is the sentinel ID value for a pool slot holding no page.
const Unmapped uint8 = 0xff

// maxLevels bounds FindNearestPage's ancestor walk.
const maxLevels = 16

// Page is one physical texture slot's current mapping.
type Page struct {
	VAddress uint64
	PAddress uint16
	VLevel   uint8
	ID       uint8
}

// Update describes one page-table write in full vAddress precision, used
// internally while expanding a pool page into the writes its descendants
// require.
type Update struct {
	VAddress uint64
	PAddress uint16
	VLevel   uint8
	VLogSize uint8
}

// TableUpdate is an Update narrowed to the page table's own 32-bit address
// space — a single page table can never need more than 32 bits.
type TableUpdate struct {
	VAddress uint32
	PAddress uint16
	VLevel   uint8
	VLogSize uint8
}

func toTableUpdate(u Update) TableUpdate {
	return TableUpdate{VAddress: uint32(u.VAddress), PAddress: u.PAddress, VLevel: u.VLevel, VLogSize: u.VLogSize}
}

// offsetUpdate returns a copy of u shifted by sibling*2^(dimensions*u.VLogSize)
// — the position of one of u's (2^dimensions - 1) siblings after a split.
func offsetUpdate(u Update, sibling uint64, dimensions uint32) Update {
	u.VAddress += sibling << (dimensions * uint32(u.VLogSize))
	return u
}

// hashPage mixes level (shifted up 6 bits) into a 16-bit hash, matching the
// original's HashPage: deliberately biases distinct levels of the same
// vAddress apart so FindNearestPage's per-level scan doesn't thrash one
// bucket.
func hashPage(vLevel uint8, vAddress uint64, dimensions uint32) uint16 {
	return uint16(vLevel)<<6 ^ uint16(vAddress>>(dimensions*uint32(vLevel)))
}

// encodeSortKey packs (ID, level, vAddress) into one ascending sort key:
// address in the low 48 bits, level next, ID in the top byte — so sorting
// by this key groups by ID, then level, then address.
func encodeSortKey(id, vLevel uint8, vAddress uint64) uint64 {
	return (vAddress & 0xffffffffffff) | uint64(vLevel&0xf)<<48 | uint64(id)<<56
}

func decodeSortKey(key uint64) (id, vLevel uint8, vAddress uint64) {
	vAddress = key & 0xffffffffffff
	vLevel = uint8(key>>48) & 0xf
	id = uint8(key >> 56)
	return
}
