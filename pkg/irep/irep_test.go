package irep_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelsamenezes/farol/pkg/interner"
	"github.com/rafaelsamenezes/farol/pkg/irep"
)

// buildNode interns id and attaches the given children as ordered subs.
func buildNode(t *testing.T, it *interner.Interner, id string, subs ...*irep.Node) *irep.Node {
	t.Helper()

	node, err := irep.New(id, it)
	require.NoError(t, err)

	node.Sub = append(node.Sub, subs...)

	return node
}

func newInterner(t *testing.T) *interner.Interner {
	t.Helper()

	it, err := interner.New()
	require.NoError(t, err)

	return it
}

func TestNew_InternsIdentifier(t *testing.T) {
	t.Parallel()

	it := newInterner(t)

	first, err := irep.New("symbol", it)
	require.NoError(t, err)

	second, err := irep.New("symbol", it)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint64(1), it.Len())
}

func TestNew_ClosedInterner(t *testing.T) {
	t.Parallel()

	it := newInterner(t)
	require.NoError(t, it.Close())

	_, err := irep.New("symbol", it)
	assert.ErrorIs(t, err, interner.ErrClosed)
}

func TestEqual(t *testing.T) {
	t.Parallel()

	it := newInterner(t)

	nameKey, err := it.Intern("name")
	require.NoError(t, err)

	makeTree := func() *irep.Node {
		leaf := buildNode(t, it, "constant")
		root := buildNode(t, it, "plus", leaf, buildNode(t, it, "constant"))
		root.Named[nameKey] = buildNode(t, it, "x")

		return root
	}

	a := makeTree()
	b := makeTree()

	assert.True(t, a.Equal(b))

	t.Run("differing_named_edge", func(t *testing.T) {
		t.Parallel()

		c := makeTree()
		c.Named[nameKey] = buildNode(t, it, "y")

		assert.False(t, a.Equal(c))
	})

	t.Run("differing_sub_order", func(t *testing.T) {
		t.Parallel()

		d := makeTree()
		d.Sub[0], d.Sub[1] = d.Sub[1], d.Sub[0]

		// Both subs are "constant" leaves, so swapping changes nothing.
		assert.True(t, a.Equal(d))

		d.Sub[0] = buildNode(t, it, "other")
		assert.False(t, a.Equal(d))
	})

	t.Run("nil_receiver_or_argument", func(t *testing.T) {
		t.Parallel()

		var nilNode *irep.Node

		assert.True(t, nilNode.Equal(nil))
		assert.False(t, a.Equal(nil))
	})
}

func TestFingerprint_StableAndDiscriminating(t *testing.T) {
	t.Parallel()

	it := newInterner(t)

	keyA, err := it.Intern("#comment")
	require.NoError(t, err)

	makeTree := func(leafID string) *irep.Node {
		root := buildNode(t, it, "expr", buildNode(t, it, leafID))
		root.Comments[keyA] = buildNode(t, it, "note")

		return root
	}

	assert.Equal(t, makeTree("leaf").Fingerprint(), makeTree("leaf").Fingerprint())
	assert.NotEqual(t, makeTree("leaf").Fingerprint(), makeTree("other").Fingerprint())
}

func TestRender(t *testing.T) {
	t.Parallel()

	it := newInterner(t)

	nameKey, err := it.Intern("identifier")
	require.NoError(t, err)

	root := buildNode(t, it, "symbol", buildNode(t, it, "type"))
	root.Named[nameKey] = buildNode(t, it, "main")

	var sb strings.Builder
	require.NoError(t, root.Render(&sb, it))

	out := sb.String()
	assert.Contains(t, out, "id: symbol")
	assert.Contains(t, out, "  id: type")
	assert.Contains(t, out, "named identifier:")
	assert.Contains(t, out, "  id: main")
}

func TestRender_UnresolvableIdentifier(t *testing.T) {
	t.Parallel()

	it := newInterner(t)

	node := &irep.Node{ID: 999}

	var sb strings.Builder
	require.NoError(t, node.Render(&sb, it))

	assert.Contains(t, sb.String(), "<NOT FOUND>")
}

func TestForest_Equal(t *testing.T) {
	t.Parallel()

	it := newInterner(t)

	a := &irep.Forest{Roots: []*irep.Node{buildNode(t, it, "one")}, Strings: it}
	b := &irep.Forest{Roots: []*irep.Node{buildNode(t, it, "one")}, Strings: it}
	c := &irep.Forest{Roots: []*irep.Node{buildNode(t, it, "two")}, Strings: it}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(&irep.Forest{}))
}
