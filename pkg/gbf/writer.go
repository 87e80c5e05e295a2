package gbf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/rafaelsamenezes/farol/pkg/interner"
	"github.com/rafaelsamenezes/farol/pkg/irep"
)

// Writer encodes irep nodes into the goto-binary format. Nodes and strings
// already written are emitted as bare reference words, mirroring the
// reader's caches, so repeated subtrees cost four bytes each.
type Writer struct {
	w          *bufio.Writer
	strings    *interner.Interner
	nodeRefs   map[*irep.Node]uint32
	stringRefs map[uint64]uint32
	nextRef    uint32
}

// NewWriter wraps w in a Writer. String identifiers in the written nodes
// are resolved through table. Flush must be called once writing is done.
func NewWriter(w io.Writer, table *interner.Interner) *Writer {
	return &Writer{
		w:          bufio.NewWriter(w),
		strings:    table,
		nodeRefs:   map[*irep.Node]uint32{},
		stringRefs: map[uint64]uint32{},
		nextRef:    1,
	}
}

// WriteHeader emits the magic and the version word.
func (w *Writer) WriteHeader() error {
	_, err := w.w.WriteString(magic)
	if err != nil {
		return fmt.Errorf("write magic: %w", err)
	}

	return w.writeWord(SupportedVersion)
}

// WriteForest writes the header followed by every root of f.
func (w *Writer) WriteForest(f *irep.Forest) error {
	err := w.WriteHeader()
	if err != nil {
		return err
	}

	for _, root := range f.Roots {
		err = w.WriteNode(root)
		if err != nil {
			return err
		}
	}

	return w.Flush()
}

// WriteNode emits node as a reference. The body is written on the first
// occurrence of each node; later occurrences emit only the reference word.
// Named and comment edges are written in sorted key order so the output is
// deterministic.
func (w *Writer) WriteNode(node *irep.Node) error {
	if ref, ok := w.nodeRefs[node]; ok {
		return w.writeWord(ref)
	}

	ref := w.nextRef
	w.nextRef++
	w.nodeRefs[node] = ref

	err := w.writeWord(ref)
	if err != nil {
		return err
	}

	err = w.writeStringRef(node.ID)
	if err != nil {
		return err
	}

	for _, sub := range node.Sub {
		err = w.writeMarked(markSub, sub)
		if err != nil {
			return err
		}
	}

	err = w.writeNamed(markNamed, node.Named)
	if err != nil {
		return err
	}

	err = w.writeNamed(markComment, node.Comments)
	if err != nil {
		return err
	}

	err = w.w.WriteByte(0)
	if err != nil {
		return fmt.Errorf("write node terminator: %w", err)
	}

	return nil
}

// Flush writes any buffered output to the underlying writer.
func (w *Writer) Flush() error {
	err := w.w.Flush()
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

func (w *Writer) writeMarked(mark byte, node *irep.Node) error {
	err := w.w.WriteByte(mark)
	if err != nil {
		return fmt.Errorf("write marker %q: %w", mark, err)
	}

	return w.WriteNode(node)
}

func (w *Writer) writeNamed(mark byte, m map[uint64]*irep.Node) error {
	keys := make([]uint64, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		err := w.w.WriteByte(mark)
		if err != nil {
			return fmt.Errorf("write marker %q: %w", mark, err)
		}

		err = w.writeStringRef(key)
		if err != nil {
			return err
		}

		err = w.WriteNode(m[key])
		if err != nil {
			return err
		}
	}

	return nil
}

// writeStringRef emits a string reference, with contents on first occurrence.
func (w *Writer) writeStringRef(id uint64) error {
	if ref, ok := w.stringRefs[id]; ok {
		return w.writeWord(ref)
	}

	value, ok := w.strings.Resolve(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownString, id)
	}

	ref := w.nextRef
	w.nextRef++
	w.stringRefs[id] = ref

	err := w.writeWord(ref)
	if err != nil {
		return err
	}

	return w.writeString(value)
}

// writeString emits a NUL-terminated string, escaping backslashes and
// embedded NUL bytes so the reader recovers the exact contents.
func (w *Writer) writeString(s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == escape || c == 0 {
			err := w.w.WriteByte(escape)
			if err != nil {
				return fmt.Errorf("write escape: %w", err)
			}
		}

		err := w.w.WriteByte(c)
		if err != nil {
			return fmt.Errorf("write string: %w", err)
		}
	}

	err := w.w.WriteByte(0)
	if err != nil {
		return fmt.Errorf("write string terminator: %w", err)
	}

	return nil
}

func (w *Writer) writeWord(v uint32) error {
	var buf [wordSize]byte

	binary.BigEndian.PutUint32(buf[:], v)

	_, err := w.w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("write word: %w", err)
	}

	return nil
}

// WriteFile serializes f to the file at path. Paths with an ".lz4" suffix
// are compressed on the fly.
func WriteFile(path string, f *irep.Forest) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	var out io.Writer = file

	var zw *lz4.Writer
	if strings.HasSuffix(path, lz4Ext) {
		zw = lz4.NewWriter(file)
		out = zw
	}

	err = NewWriter(out, f.Strings).WriteForest(f)
	if err != nil {
		return err
	}

	if zw != nil {
		err = zw.Close()
		if err != nil {
			return fmt.Errorf("close compressor: %w", err)
		}
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
