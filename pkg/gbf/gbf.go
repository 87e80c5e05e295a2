// Package gbf reads and writes goto-binary files.
//
// A goto-binary file starts with the magic "GBF" and a format version word,
// followed by a sequence of irep references. Words are big-endian uint32.
// Strings are NUL-terminated with '\' escaping the following byte. Both
// strings and irep nodes are written once and referenced by numeric id on
// every later occurrence, so shared subtrees stay shared on disk.
package gbf

import "errors"

const (
	// magic identifies a goto-binary file.
	magic = "GBF"

	// SupportedVersion is the only format version this package accepts.
	SupportedVersion = 1

	// wordSize is the byte width of an encoded word.
	wordSize = 4

	// escape precedes a byte that must not be interpreted, such as an
	// embedded NUL or a literal backslash.
	escape = '\\'

	// lz4Ext marks files that are LZ4-compressed on disk.
	lz4Ext = ".lz4"
)

// Sub-expression markers inside an irep node body.
const (
	markSub     = 'S'
	markNamed   = 'N'
	markComment = 'C'
)

var (
	// ErrBadMagic is returned when the input does not start with "GBF".
	ErrBadMagic = errors.New("gbf: invalid magic")

	// ErrBadVersion is returned for any format version other than SupportedVersion.
	ErrBadVersion = errors.New("gbf: unsupported version")

	// ErrUnterminated is returned when an irep node body is not NUL-terminated.
	ErrUnterminated = errors.New("gbf: unterminated irep node")

	// ErrTruncated is returned when the input ends in the middle of a value.
	ErrTruncated = errors.New("gbf: truncated input")

	// ErrUnknownString is returned by the writer for identifiers the
	// interner cannot resolve.
	ErrUnknownString = errors.New("gbf: unknown string identifier")
)
