// Package interner provides a deduplicating string table.
//
// Each distinct string is assigned a dense identifier in insertion order,
// starting at zero, and repeated insertions return the identifier of the
// first occurrence. The table stores an owned copy of every string, so
// callers may reuse or discard their buffers immediately.
//
// An Interner is not safe for concurrent use; callers that share one across
// goroutines must provide their own synchronization.
package interner

import (
	"errors"
	"strings"

	"github.com/rafaelsamenezes/farol/pkg/alg/bloom"
)

// defaultCapacity is the initial entry capacity of a fresh interner.
const defaultCapacity = 16

var (
	// ErrClosed is returned by every operation on a closed interner.
	ErrClosed = errors.New("interner: closed")

	// ErrInvalidCapacity is returned when the configured initial capacity is zero.
	ErrInvalidCapacity = errors.New("interner: initial capacity must be positive")
)

// entry is one stored string tagged with its cached byte length.
type entry struct {
	str    string
	length int
}

// Stats reports lookup outcomes since the interner was created.
type Stats struct {
	// Hits is the number of Intern calls that found an existing entry.
	Hits uint64

	// Misses is the number of Intern calls that inserted a new entry.
	Misses uint64
}

// Interner maps strings to dense, insertion-ordered identifiers.
//
// The entries slice is the source of truth: index i holds the i-th distinct
// string ever interned. The map mirrors it for exact lookup, and the optional
// Bloom filter sits in front of the map so definite misses skip it.
type Interner struct {
	entries []entry
	index   map[string]uint64
	filter  *bloom.Filter
	stats   Stats
	closed  bool
}

// Option configures an Interner at construction time.
type Option func(*options) error

type options struct {
	capacity         uint64
	filterExpected   uint
	filterFPRate     float64
	prefilterEnabled bool
}

// WithInitialCapacity overrides the default initial entry capacity.
func WithInitialCapacity(n uint64) Option {
	return func(o *options) error {
		if n == 0 {
			return ErrInvalidCapacity
		}

		o.capacity = n

		return nil
	}
}

// WithPrefilter enables a Bloom pre-filter sized for the expected number of
// distinct strings at the given false-positive rate. The filter only ever
// skips work on definite misses; interning behavior is unchanged.
func WithPrefilter(expected uint, fpRate float64) Option {
	return func(o *options) error {
		o.prefilterEnabled = true
		o.filterExpected = expected
		o.filterFPRate = fpRate

		return nil
	}
}

// New creates an empty interner. The zero-configuration capacity is 16
// entries; capacity grows geometrically and never shrinks.
func New(opts ...Option) (*Interner, error) {
	cfg := options{capacity: defaultCapacity}

	for _, opt := range opts {
		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}

	it := &Interner{
		entries: make([]entry, 0, cfg.capacity),
		index:   make(map[string]uint64, cfg.capacity),
	}

	if cfg.prefilterEnabled {
		f, err := bloom.NewWithEstimates(cfg.filterExpected, cfg.filterFPRate)
		if err != nil {
			return nil, err
		}

		it.filter = f
	}

	return it, nil
}

// Intern returns the identifier for key, inserting it if not yet present.
//
// Identifiers are assigned densely in insertion order: the first distinct
// string gets 0, the next 1, and so on. Interning the same content any
// number of times returns the same identifier and does not grow the table.
func (it *Interner) Intern(key string) (uint64, error) {
	if it.closed {
		return 0, ErrClosed
	}

	if it.filter == nil || it.filter.Test([]byte(key)) {
		if id, ok := it.index[key]; ok {
			it.stats.Hits++

			return id, nil
		}
	}

	// Definite miss. Grow before inserting so existing identifiers and
	// contents are untouched by the reallocation.
	if len(it.entries) == cap(it.entries) {
		grown := make([]entry, len(it.entries), 2*cap(it.entries))
		copy(grown, it.entries)
		it.entries = grown
	}

	owned := strings.Clone(key)
	id := uint64(len(it.entries))

	it.entries = append(it.entries, entry{str: owned, length: len(owned)})
	it.index[owned] = id

	if it.filter != nil {
		it.filter.Add([]byte(owned))
	}

	it.stats.Misses++

	return id, nil
}

// Resolve returns the string bound to id. The second return value is false
// when id was never assigned or the interner is closed.
func (it *Interner) Resolve(id uint64) (string, bool) {
	if it.closed || id >= uint64(len(it.entries)) {
		return "", false
	}

	return it.entries[id].str, true
}

// Len returns the number of distinct strings stored.
func (it *Interner) Len() uint64 {
	if it.closed {
		return 0
	}

	return uint64(len(it.entries))
}

// Cap returns the current reserved entry capacity.
func (it *Interner) Cap() uint64 {
	if it.closed {
		return 0
	}

	return uint64(cap(it.entries))
}

// Stats returns lookup hit/miss counters accumulated so far.
func (it *Interner) Stats() Stats {
	return it.stats
}

// Close releases the entry table, the exact index, and the pre-filter.
// Closing twice, like any other operation after Close, reports ErrClosed.
func (it *Interner) Close() error {
	if it.closed {
		return ErrClosed
	}

	it.entries = nil
	it.index = nil
	it.filter = nil
	it.closed = true

	return nil
}
