// Package strpool provides a fixed-capacity flat string pool.
//
// Unlike the interner, the pool never deduplicates: every Add consumes one
// fixed-size slot in a single pre-allocated buffer and returns its index.
// It trades flexibility for a single up-front allocation and O(1) everything.
package strpool

import "errors"

const (
	// SlotSize is the byte size of each slot; longer strings are truncated.
	SlotSize = 128

	// poolAlloc is the size of the backing buffer. 4MB of strings oughta be enough.
	poolAlloc = 4 * 1024 * 1024

	// poolSlots is the number of fixed-size slots in the buffer.
	poolSlots = poolAlloc / SlotSize
)

var (
	// ErrPoolFull is returned by Add when every slot is taken.
	ErrPoolFull = errors.New("strpool: pool is full")

	// ErrOutOfRange is returned by Get for an identifier that was never assigned.
	ErrOutOfRange = errors.New("strpool: identifier out of range")
)

// Pool is a flat buffer of fixed-length string slots.
type Pool struct {
	buf      []byte
	reserved uint32
	length   uint32
}

// New allocates a pool with the full slot budget reserved up front.
func New() *Pool {
	return &Pool{
		buf:      make([]byte, poolAlloc),
		reserved: poolSlots,
	}
}

// Add copies s into the next free slot and returns its identifier.
// Strings longer than SlotSize bytes are truncated to fit the slot.
func (p *Pool) Add(s string) (uint32, error) {
	if p.length >= p.reserved {
		return 0, ErrPoolFull
	}

	slot := p.buf[SlotSize*p.length : SlotSize*(p.length+1)]
	copy(slot, s)

	id := p.length
	p.length++

	return id, nil
}

// Get returns the string stored at id.
func (p *Pool) Get(id uint32) (string, error) {
	if id >= p.length {
		return "", ErrOutOfRange
	}

	slot := p.buf[SlotSize*id : SlotSize*(id+1)]

	// Slot contents end at the first NUL, or fill the whole slot when the
	// stored string was truncated.
	end := len(slot)

	for i, b := range slot {
		if b == 0 {
			end = i

			break
		}
	}

	return string(slot[:end]), nil
}

// Len returns the number of slots in use.
func (p *Pool) Len() uint32 {
	return p.length
}

// Reserved returns the total slot capacity of the pool.
func (p *Pool) Reserved() uint32 {
	return p.reserved
}

// Free releases the backing buffer and zeroes the counters. The pool must
// not be used afterwards; Add reports ErrPoolFull and Get ErrOutOfRange.
func (p *Pool) Free() {
	p.buf = nil
	p.reserved = 0
	p.length = 0
}
