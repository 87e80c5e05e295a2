// Package irep models the intermediate representation trees stored in
// goto-binary files. Node identifiers and named-edge keys are interned
// string identifiers; a Forest pairs the root nodes with the interner that
// owns them.
package irep

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"slices"
	"strings"

	"github.com/rafaelsamenezes/farol/pkg/interner"
)

// unresolved is printed for identifiers the interner cannot resolve.
const unresolved = "<NOT FOUND>"

// Node is a single irep expression. ID and the keys of Named and Comments
// are string-interner identifiers. Sub is ordered; Named holds named
// sub-expressions and Comments the ones whose name starts with '#'.
type Node struct {
	ID       uint64
	Sub      []*Node
	Named    map[uint64]*Node
	Comments map[uint64]*Node
}

// New interns id and returns a node carrying the resulting identifier.
func New(id string, it *interner.Interner) (*Node, error) {
	internedID, err := it.Intern(id)
	if err != nil {
		return nil, fmt.Errorf("intern node id: %w", err)
	}

	return &Node{
		ID:       internedID,
		Named:    map[uint64]*Node{},
		Comments: map[uint64]*Node{},
	}, nil
}

// Equal reports deep structural equality of two nodes.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}

	if n.ID != other.ID || len(n.Sub) != len(other.Sub) {
		return false
	}

	for i, sub := range n.Sub {
		if !sub.Equal(other.Sub[i]) {
			return false
		}
	}

	return mapsEqual(n.Named, other.Named) && mapsEqual(n.Comments, other.Comments)
}

func mapsEqual(a, b map[uint64]*Node) bool {
	if len(a) != len(b) {
		return false
	}

	for key, node := range a {
		otherNode, ok := b[key]
		if !ok || !node.Equal(otherNode) {
			return false
		}
	}

	return true
}

// Fingerprint returns a structural FNV-1a hash of the node. Named and
// comment edges are folded in sorted key order so the result is stable
// across map iteration orders. Equal nodes have equal fingerprints.
func (n *Node) Fingerprint() uint64 {
	h := fnv.New64a()
	n.fold(h)

	return h.Sum64()
}

func (n *Node) fold(h io.Writer) {
	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], n.ID)
	_, _ = h.Write(buf[:])

	for _, sub := range n.Sub {
		sub.fold(h)
	}

	foldMap(h, n.Named)
	foldMap(h, n.Comments)
}

func foldMap(h io.Writer, m map[uint64]*Node) {
	keys := make([]uint64, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	var buf [8]byte

	for _, key := range keys {
		binary.BigEndian.PutUint64(buf[:], key)
		_, _ = h.Write(buf[:])
		m[key].fold(h)
	}
}

// Render writes a human-readable indented tree, resolving identifiers
// through it. Named and comment edges are printed in sorted key order.
func (n *Node) Render(w io.Writer, it *interner.Interner) error {
	return n.render(w, it, 0)
}

func (n *Node) render(w io.Writer, it *interner.Interner, depth int) error {
	indent := strings.Repeat("  ", depth)

	_, err := fmt.Fprintf(w, "%sid: %s\n", indent, resolve(it, n.ID))
	if err != nil {
		return fmt.Errorf("render node: %w", err)
	}

	for _, sub := range n.Sub {
		renderErr := sub.render(w, it, depth+1)
		if renderErr != nil {
			return renderErr
		}
	}

	err = renderMap(w, it, "named", n.Named, depth)
	if err != nil {
		return err
	}

	return renderMap(w, it, "comment", n.Comments, depth)
}

func renderMap(w io.Writer, it *interner.Interner, label string, m map[uint64]*Node, depth int) error {
	keys := make([]uint64, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	indent := strings.Repeat("  ", depth)

	for _, key := range keys {
		_, err := fmt.Fprintf(w, "%s%s %s:\n", indent, label, resolve(it, key))
		if err != nil {
			return fmt.Errorf("render %s edge: %w", label, err)
		}

		renderErr := m[key].render(w, it, depth+1)
		if renderErr != nil {
			return renderErr
		}
	}

	return nil
}

func resolve(it *interner.Interner, id uint64) string {
	s, ok := it.Resolve(id)
	if !ok {
		return unresolved
	}

	return s
}

// Forest is an ordered collection of root nodes together with the interner
// that owns every identifier appearing in them.
type Forest struct {
	Roots   []*Node
	Strings *interner.Interner
}

// Equal reports whether two forests hold structurally equal roots in the
// same order. Interner identifiers are only comparable when both forests
// were produced against interners fed in the same order, as the GBF reader
// guarantees.
func (f *Forest) Equal(other *Forest) bool {
	if len(f.Roots) != len(other.Roots) {
		return false
	}

	for i, root := range f.Roots {
		if !root.Equal(other.Roots[i]) {
			return false
		}
	}

	return true
}
