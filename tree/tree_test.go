package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/testutil"
)

// twoClusterDataset returns eight 2-d points forming two well-separated
// clusters of four.
func twoClusterDataset(t *testing.T) *descriptor.Matrix[float32] {
	t.Helper()

	m, err := descriptor.FromRows([][]float32{
		{0, 0}, {0, 1}, {1, 0}, {1, 1},
		{10, 10}, {10, 11}, {11, 10}, {11, 11},
	})
	require.NoError(t, err)
	return m
}

func twoClusterParams() Params {
	return Params{
		Branching:     2,
		Depth:         2,
		MaxIterations: 10,
		CentersInit:   CentersKMeansPP,
		Seed:          0,
	}
}

func buildTree[E descriptor.Element](t *testing.T, data *descriptor.Matrix[E], params Params) *Tree[E] {
	t.Helper()

	tr, err := New(data, params)
	require.NoError(t, err)
	require.NoError(t, tr.Build(context.Background()))
	return tr
}

func walk[E descriptor.Element](n *Node[E], visit func(*Node[E])) {
	visit(n)
	for _, c := range n.Children {
		walk(c, visit)
	}
}

func TestBuildTwoClusters(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	assert.Equal(t, 4, tr.NumWords())
	assert.Equal(t, 4, tr.Size())
	assert.Equal(t, 7, tr.NumNodes())
	assert.Equal(t, 2, tr.Veclen())

	root := tr.Root()
	require.Len(t, root.Children, 2)
	for _, child := range root.Children {
		assert.False(t, child.IsLeaf())
		require.Len(t, child.Children, 2)
		for _, leaf := range child.Children {
			assert.True(t, leaf.IsLeaf())
		}
	}
}

func TestBuildInvalidBranching(t *testing.T) {
	tr, err := New(twoClusterDataset(t), Params{Branching: 1, Depth: 2, MaxIterations: 10})
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Build(context.Background()), ErrInvalidParams)
}

func TestBuildInvalidDepth(t *testing.T) {
	tr, err := New(twoClusterDataset(t), Params{Branching: 2, Depth: 0, MaxIterations: 10})
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Build(context.Background()), ErrInvalidParams)
}

func TestBuildEmptyDataset(t *testing.T) {
	empty := descriptor.NewMatrix[float32](0, 2)

	tr, err := New(empty, twoClusterParams())
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Build(context.Background()), ErrEmptyDataset)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, err := New(twoClusterDataset(t), twoClusterParams())
	require.NoError(t, err)

	err = tr.Build(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Rolled back: the tree stays unbuilt.
	assert.True(t, tr.Empty())
	_, _, err = tr.Quantize([]float32{0, 0}, 0)
	assert.ErrorIs(t, err, ErrTreeEmpty)
}

func TestQuantizeBeforeBuild(t *testing.T) {
	tr, err := New(twoClusterDataset(t), twoClusterParams())
	require.NoError(t, err)

	_, _, err = tr.Quantize([]float32{0, 0}, 0)
	assert.ErrorIs(t, err, ErrTreeEmpty)
}

func TestQuantizeLevelOutOfRange(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	_, _, err := tr.Quantize([]float32{0, 0}, -1)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, _, err = tr.Quantize([]float32{0, 0}, tr.Depth())
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestQuantizeDimensionMismatch(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	_, _, err := tr.Quantize([]float32{0, 0, 0}, 0)

	var dm *descriptor.ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)
}

func TestQuantizeLeafCentroid(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	walk(tr.Root(), func(n *Node[float32]) {
		if !n.IsLeaf() {
			return
		}
		word, _, err := tr.Quantize(n.Center, 0)
		require.NoError(t, err)
		assert.Equal(t, n.WordID, word)
	})
}

func TestQuantizeNodeAtLevel(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	// The near cluster sits under one root child, the far cluster under the
	// other; the recorded child index at level 0 must reflect that.
	_, nearChild, err := tr.Quantize([]float32{0, 0}, 0)
	require.NoError(t, err)
	_, farChild, err := tr.Quantize([]float32{11, 11}, 0)
	require.NoError(t, err)

	assert.NotEqual(t, nearChild, farChild)
	assert.Contains(t, []int{0, 1}, nearChild)
	assert.Contains(t, []int{0, 1}, farChild)
}

func TestWordIDContiguity(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	var leafWords []int
	var nodeIDs []int
	walk(tr.Root(), func(n *Node[float32]) {
		nodeIDs = append(nodeIDs, n.ID)
		if n.IsLeaf() {
			leafWords = append(leafWords, n.WordID)
		} else {
			assert.Equal(t, -1, n.WordID)
		}
	})

	// Pre-order child-0-first traversal yields word ids 0..W-1 strictly
	// ascending, and node ids 0..size-1 in visit order.
	require.Len(t, leafWords, tr.NumWords())
	for i, w := range leafWords {
		assert.Equal(t, i, w)
	}
	for i, id := range nodeIDs {
		assert.Equal(t, i, id)
	}
}

func TestQuantizationTotality(t *testing.T) {
	data := twoClusterDataset(t)
	tr := buildTree(t, data, twoClusterParams())

	counts := make([]int, tr.NumWords())
	for i := 0; i < data.Rows(); i++ {
		word, _, err := tr.Quantize(data.Row(i), 0)
		require.NoError(t, err)
		require.GreaterOrEqual(t, word, 0)
		require.Less(t, word, tr.NumWords())
		counts[word]++
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, data.Rows(), total)
}

func TestLeafCountBound(t *testing.T) {
	rows := make([][]float32, 50)
	for i := range rows {
		rows[i] = []float32{float32(i), float32(i % 7), float32(i % 3)}
	}
	data, err := descriptor.FromRows(rows)
	require.NoError(t, err)

	params := Params{Branching: 3, Depth: 3, MaxIterations: 10, CentersInit: CentersGonzales, Seed: 7}
	tr := buildTree(t, data, params)

	assert.LessOrEqual(t, tr.NumWords(), 27) // B^Depth
	assert.Greater(t, tr.NumWords(), 0)
}

func TestBuildDeterminism(t *testing.T) {
	inits := []CentersInit{CentersRandom, CentersGonzales, CentersKMeansPP}

	for _, init := range inits {
		t.Run(init.String(), func(t *testing.T) {
			params := twoClusterParams()
			params.CentersInit = init
			params.Seed = 42

			t1 := buildTree(t, twoClusterDataset(t), params)
			t2 := buildTree(t, twoClusterDataset(t), params)

			assert.True(t, t1.Equal(t2))
			assert.True(t, t2.Equal(t1))
		})
	}
}

func TestEqualDetectsCenterChange(t *testing.T) {
	t1 := buildTree(t, twoClusterDataset(t), twoClusterParams())
	t2 := buildTree(t, twoClusterDataset(t), twoClusterParams())
	require.True(t, t1.Equal(t2))

	t2.Root().Children[0].Center[0] += 1
	assert.False(t, t1.Equal(t2))
}

func TestEmptyClusterRepair(t *testing.T) {
	// One point repeated many times plus two distinct points: every child
	// of the root must end up with at least one member.
	rows := make([][]float32, 0, 12)
	for i := 0; i < 10; i++ {
		rows = append(rows, []float32{0, 0})
	}
	rows = append(rows, []float32{5, 5}, []float32{9, 0})
	data, err := descriptor.FromRows(rows)
	require.NoError(t, err)

	params := Params{Branching: 3, Depth: 1, MaxIterations: 10, CentersInit: CentersRandom, Seed: 1}
	tr := buildTree(t, data, params)

	require.Equal(t, 3, tr.NumWords())

	counts := make([]int, tr.NumWords())
	for i := 0; i < data.Rows(); i++ {
		word, _, err := tr.Quantize(data.Row(i), 0)
		require.NoError(t, err)
		counts[word]++
	}
	for w, c := range counts {
		assert.Greater(t, c, 0, "leaf %d has no members", w)
	}
}

func TestBuildBinary(t *testing.T) {
	rows := [][]uint8{
		{0x00, 0x00}, {0x01, 0x00}, {0x00, 0x01}, {0x01, 0x01},
		{0xFF, 0xFF}, {0xFE, 0xFF}, {0xFF, 0xFE}, {0xFE, 0xFE},
	}
	data, err := descriptor.FromRows(rows)
	require.NoError(t, err)

	params := Params{Branching: 2, Depth: 2, MaxIterations: 10, CentersInit: CentersKMeansPP, Seed: 3}
	tr := buildTree(t, data, params)

	assert.Equal(t, descriptor.Uint8, tr.ElementType())
	assert.Equal(t, 4, tr.NumWords())

	counts := make([]int, tr.NumWords())
	for i := 0; i < data.Rows(); i++ {
		word, _, err := tr.Quantize(data.Row(i), 0)
		require.NoError(t, err)
		counts[word]++
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, data.Rows(), total)

	t2 := buildTree(t, data, params)
	assert.True(t, tr.Equal(t2))
}

func TestParallelAssignmentDeterminism(t *testing.T) {
	// The chunked assignment step must produce the exact same tree as the
	// serial one, on a partition large enough to actually fan out.
	data := testutil.ClusteredFloatDataset(testutil.NewRNG(123), 8, 600, 8, 100, 0.5)
	params := Params{Branching: 3, Depth: 2, MaxIterations: 10, CentersInit: CentersKMeansPP, Seed: 9}

	serial, err := New(data, params, WithWorkers(1))
	require.NoError(t, err)
	require.NoError(t, serial.Build(context.Background()))

	parallel, err := New(data, params, WithWorkers(4))
	require.NoError(t, err)
	require.NoError(t, parallel.Build(context.Background()))

	assert.True(t, serial.Equal(parallel))
}

func TestUncappedIterations(t *testing.T) {
	params := twoClusterParams()
	params.MaxIterations = -1

	tr := buildTree(t, twoClusterDataset(t), params)
	assert.Equal(t, 4, tr.NumWords())
}
