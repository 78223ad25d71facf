// Package psram models the external RAM the frame buffers live in: one
// contiguous backing array carved into fixed, 32-byte aligned regions at
// start-up. Regions are never freed or moved, so a region's address is a
// stable identity that can be handed to the capture and display engines.
package psram

import (
	"errors"
	"fmt"
	"sync"
)

// Align is the region alignment, matching the DMA burst size.
const Align = 32

// DefaultBase is the bus address the memory is mapped at.
const DefaultBase uint32 = 0x9000_0000

var (
	// ErrExhausted is returned when an allocation does not fit.
	ErrExhausted = errors.New("psram: arena exhausted")
	// ErrUnmapped is returned when an address matches no region.
	ErrUnmapped = errors.New("psram: address not mapped")
)

// Region is one fixed allocation. Bus masters (capture DMA, display scan-out,
// the drawing goroutine) access its bytes through Read and Write, which
// serialize overlapping bus transfers on the same region.
type Region struct {
	name string
	addr uint32
	mu   sync.RWMutex
	buf  []byte
}

// Name returns the label given at allocation.
func (r *Region) Name() string { return r.name }

// Addr returns the bus address of the first byte.
func (r *Region) Addr() uint32 { return r.addr }

// Size returns the region length in bytes.
func (r *Region) Size() int { return len(r.buf) }

// Write runs fn with exclusive access to the region bytes.
func (r *Region) Write(fn func(b []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.buf)
}

// Read runs fn with shared access to the region bytes. fn must not retain b.
func (r *Region) Read(fn func(b []byte)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.buf)
}

// Zero clears the region.
func (r *Region) Zero() {
	r.Write(func(b []byte) { clear(b) })
}

// Arena is a bump allocator over one backing array.
type Arena struct {
	base    uint32
	buf     []byte
	off     int
	regions []*Region

	mu sync.Mutex
}

// NewArena creates an arena of size bytes mapped at base.
func NewArena(base uint32, size int) *Arena {
	return &Arena{
		base: base,
		buf:  make([]byte, size),
	}
}

// Alloc carves a region of size bytes. Allocation happens once at start-up;
// there is no free.
func (a *Arena) Alloc(name string, size int) (*Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := (a.off + Align - 1) &^ (Align - 1)
	if size <= 0 || start+size > len(a.buf) {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d free", ErrExhausted, name, size, len(a.buf)-start)
	}

	r := &Region{
		name: name,
		addr: a.base + uint32(start),
		buf:  a.buf[start : start+size : start+size],
	}
	a.off = start + size
	a.regions = append(a.regions, r)
	return r, nil
}

// Lookup returns the region starting exactly at addr.
func (a *Arena) Lookup(addr uint32) (*Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.regions {
		if r.addr == addr {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: 0x%08X", ErrUnmapped, addr)
}

// Used returns the number of bytes allocated, including alignment padding.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.off
}

// Size returns the arena capacity.
func (a *Arena) Size() int { return len(a.buf) }

// Stats returns arena usage info.
func (a *Arena) Stats() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("psram: %d/%d bytes in %d regions", a.off, len(a.buf), len(a.regions))
}
