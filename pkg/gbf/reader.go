package gbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/rafaelsamenezes/farol/pkg/interner"
	"github.com/rafaelsamenezes/farol/pkg/irep"
)

// Reader decodes a goto-binary byte stream into irep nodes, interning every
// string it encounters. Repeated references resolve to the same *irep.Node,
// so shared subtrees in the file stay shared in memory.
type Reader struct {
	data       []byte
	pos        int
	strings    *interner.Interner
	nodeRefs   map[uint32]*irep.Node
	stringRefs map[uint32]uint64
}

// NewReader wraps data in a Reader. All strings are interned into table,
// which the caller owns and must eventually close.
func NewReader(data []byte, table *interner.Interner) *Reader {
	return &Reader{
		data:       data,
		strings:    table,
		nodeRefs:   map[uint32]*irep.Node{},
		stringRefs: map[uint32]uint64{},
	}
}

// Open reads the file at path into a Reader. Files with an ".lz4" suffix
// are transparently decompressed.
func Open(path string, table *interner.Interner) (*Reader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if strings.HasSuffix(path, lz4Ext) {
		raw, err = io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
	}

	return NewReader(raw, table), nil
}

// Strings returns the interner backing this reader.
func (r *Reader) Strings() *interner.Interner {
	return r.strings
}

// Size returns the decoded input size in bytes.
func (r *Reader) Size() int {
	return len(r.data)
}

// peek returns the byte at the cursor without consuming it.
func (r *Reader) peek() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}

	return r.data[r.pos], nil
}

// get consumes and returns the byte at the cursor.
func (r *Reader) get() (byte, error) {
	b, err := r.peek()
	if err != nil {
		return 0, err
	}

	r.pos++

	return b, nil
}

// ReadHeader validates the magic and the version word. It must be called
// before any reference is read.
func (r *Reader) ReadHeader() error {
	if len(r.data) < len(magic) || string(r.data[:len(magic)]) != magic {
		return fmt.Errorf("%w: want %q", ErrBadMagic, magic)
	}

	r.pos = len(magic)

	version, err := r.ReadWord()
	if err != nil {
		return err
	}

	if version != SupportedVersion {
		return fmt.Errorf("%w: found %d", ErrBadVersion, version)
	}

	return nil
}

// ReadWord reads one big-endian uint32.
func (r *Reader) ReadWord() (uint32, error) {
	if r.pos+wordSize > len(r.data) {
		return 0, ErrTruncated
	}

	word := binary.BigEndian.Uint32(r.data[r.pos : r.pos+wordSize])
	r.pos += wordSize

	return word, nil
}

// ReadString reads a NUL-terminated string. A backslash escapes the next
// byte, which allows embedded NULs and literal backslashes.
func (r *Reader) ReadString() (string, error) {
	var sb strings.Builder

	for {
		b, err := r.peek()
		if err != nil {
			return "", err
		}

		if b == 0 {
			r.pos++

			return sb.String(), nil
		}

		c, err := r.get()
		if err != nil {
			return "", err
		}

		if c == escape {
			c, err = r.get()
			if err != nil {
				return "", err
			}
		}

		sb.WriteByte(c)
	}
}

// ReadStringRef reads a string reference: a word id followed, on first
// occurrence, by the string contents. Returns the interned identifier.
func (r *Reader) ReadStringRef() (uint64, error) {
	id, err := r.ReadWord()
	if err != nil {
		return 0, err
	}

	if internedID, ok := r.stringRefs[id]; ok {
		return internedID, nil
	}

	value, err := r.ReadString()
	if err != nil {
		return 0, err
	}

	internedID, err := r.strings.Intern(value)
	if err != nil {
		return 0, fmt.Errorf("intern %q: %w", value, err)
	}

	r.stringRefs[id] = internedID

	return internedID, nil
}

// ReadReference reads an irep reference: a word id followed, on first
// occurrence, by the node body (id string-ref, sub-expressions, named
// sub-expressions, comments, NUL terminator).
func (r *Reader) ReadReference() (*irep.Node, error) {
	id, err := r.ReadWord()
	if err != nil {
		return nil, err
	}

	if node, ok := r.nodeRefs[id]; ok {
		return node, nil
	}

	nodeID, err := r.ReadStringRef()
	if err != nil {
		return nil, err
	}

	node := &irep.Node{
		ID:       nodeID,
		Named:    map[uint64]*irep.Node{},
		Comments: map[uint64]*irep.Node{},
	}

	err = r.readSubs(node)
	if err != nil {
		return nil, err
	}

	end, err := r.get()
	if err != nil {
		return nil, err
	}

	if end != 0 {
		return nil, fmt.Errorf("%w: found trailing byte %#x", ErrUnterminated, end)
	}

	r.nodeRefs[id] = node

	return node, nil
}

// readSubs consumes the ordered, named, and comment sub-expression lists.
func (r *Reader) readSubs(node *irep.Node) error {
	for {
		b, err := r.peek()
		if err != nil {
			return err
		}

		if b != markSub {
			break
		}

		r.pos++

		sub, err := r.ReadReference()
		if err != nil {
			return err
		}

		node.Sub = append(node.Sub, sub)
	}

	err := r.readNamed(markNamed, node.Named)
	if err != nil {
		return err
	}

	return r.readNamed(markComment, node.Comments)
}

func (r *Reader) readNamed(mark byte, into map[uint64]*irep.Node) error {
	for {
		b, err := r.peek()
		if err != nil {
			return err
		}

		if b != mark {
			return nil
		}

		r.pos++

		key, err := r.ReadStringRef()
		if err != nil {
			return err
		}

		value, err := r.ReadReference()
		if err != nil {
			return err
		}

		into[key] = value
	}
}

// ReadAll validates the header and reads top-level references until the
// input is exhausted.
func (r *Reader) ReadAll() (*irep.Forest, error) {
	err := r.ReadHeader()
	if err != nil {
		return nil, err
	}

	forest := &irep.Forest{Strings: r.strings}

	for r.pos < len(r.data) {
		node, err := r.ReadReference()
		if err != nil {
			return nil, err
		}

		forest.Roots = append(forest.Roots, node)
	}

	return forest, nil
}
