package xhash

import "fmt"

// Static is a fixed-capacity counterpart to Table: both array sizes are
// fixed at construction and never grow, matching the original's
// TStaticHashTable<HashSize, IndexSize> used by UniquePageList where the
// capacity is a compile-time constant. Add panics if Index is out of range,
// mirroring the original's checkSlow assert rather than silently resizing.
type Static struct {
	hashMask uint32
	hash     []uint32
	next     []uint32
}

// NewStatic builds a Static table with hashSize buckets (must be a power of
// two) and room for indexSize external entries.
func NewStatic(hashSize, indexSize uint32) *Static {
	if hashSize == 0 || hashSize&(hashSize-1) != 0 {
		panic(fmt.Sprintf("xhash: hashSize %d must be a nonzero power of two", hashSize))
	}
	s := &Static{
		hashMask: hashSize - 1,
		hash:     make([]uint32, hashSize),
		next:     make([]uint32, indexSize),
	}
	s.Clear()
	return s
}

// Clear empties every chain.
func (s *Static) Clear() {
	for i := range s.hash {
		s.hash[i] = invalid
	}
}

// First returns the head of Key's chain.
func (s *Static) First(key uint32) uint32 {
	return s.hash[key&s.hashMask]
}

// Next returns the next entry in Index's chain.
func (s *Static) Next(index uint32) uint32 {
	return s.next[index]
}

// IsValid reports whether index is a real chain entry.
func (s *Static) IsValid(index uint32) bool {
	return index != invalid
}

// Add links Index into Key's chain. Panics if Index is out of range.
func (s *Static) Add(key, index uint32) {
	if int(index) >= len(s.next) {
		panic(fmt.Sprintf("xhash: index %d out of range (capacity %d)", index, len(s.next)))
	}
	key &= s.hashMask
	s.next[index] = s.hash[key]
	s.hash[key] = index
}

// Remove unlinks Index from Key's chain.
func (s *Static) Remove(key, index uint32) {
	if int(index) >= len(s.next) {
		return
	}
	key &= s.hashMask
	if s.hash[key] == index {
		s.hash[key] = s.next[index]
		return
	}
	for i := s.hash[key]; s.IsValid(i); i = s.next[i] {
		if s.next[i] == index {
			s.next[i] = s.next[index]
			return
		}
	}
}
