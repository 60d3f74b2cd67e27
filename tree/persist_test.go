package tree

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vocabtree/descriptor"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	data := twoClusterDataset(t)
	tr := buildTree(t, data, twoClusterParams())

	path := filepath.Join(t.TempDir(), "vocab.tree.gz")
	require.NoError(t, tr.Save(path))

	loaded, err := Load[float32](path)
	require.NoError(t, err)

	assert.True(t, tr.Equal(loaded))
	assert.True(t, loaded.Equal(tr))
	assert.Equal(t, tr.NumWords(), loaded.NumWords())
	assert.Equal(t, tr.NumNodes(), loaded.NumNodes())
	assert.Equal(t, tr.Depth(), loaded.Depth())
	assert.Equal(t, tr.Branching(), loaded.Branching())
	assert.Equal(t, tr.Veclen(), loaded.Veclen())
	assert.Equal(t, tr.Params().MaxIterations, loaded.Params().MaxIterations)

	// Quantization must agree on every training descriptor at every level.
	for i := 0; i < data.Rows(); i++ {
		for level := 0; level < tr.Depth(); level++ {
			w1, n1, err := tr.Quantize(data.Row(i), level)
			require.NoError(t, err)
			w2, n2, err := loaded.Quantize(data.Row(i), level)
			require.NoError(t, err)

			assert.Equal(t, w1, w2)
			assert.Equal(t, n1, n2)
		}
	}
}

func TestSaveLoadRoundTripBinary(t *testing.T) {
	rows := [][]uint8{
		{0x00, 0x00}, {0x01, 0x00}, {0x00, 0x01}, {0x01, 0x01},
		{0xFF, 0xFF}, {0xFE, 0xFF}, {0xFF, 0xFE}, {0xFE, 0xFE},
	}
	data, err := descriptor.FromRows(rows)
	require.NoError(t, err)

	params := Params{Branching: 2, Depth: 2, MaxIterations: 10, CentersInit: CentersRandom, Seed: 5}
	tr := buildTree(t, data, params)

	path := filepath.Join(t.TempDir(), "vocab.bin.tree.gz")
	require.NoError(t, tr.Save(path))

	loaded, err := Load[uint8](path)
	require.NoError(t, err)
	assert.True(t, tr.Equal(loaded))
}

func TestSaveEmptyTree(t *testing.T) {
	tr, err := New(twoClusterDataset(t), twoClusterParams())
	require.NoError(t, err)

	err = tr.Save(filepath.Join(t.TempDir(), "empty.tree.gz"))
	assert.ErrorIs(t, err, ErrTreeEmpty)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load[float32](filepath.Join(t.TempDir(), "missing.tree.gz"))
	assert.Error(t, err)
}

func TestLoadElementKindMismatch(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	path := filepath.Join(t.TempDir(), "vocab.tree.gz")
	require.NoError(t, tr.Save(path))

	_, err := Load[uint8](path)
	assert.ErrorIs(t, err, ErrParse)
}

func TestEncodeDecode(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	var buf bytes.Buffer
	require.NoError(t, tr.Encode(&buf))

	doc := buf.String()
	assert.True(t, strings.HasPrefix(doc, "type: HKM\n"))
	assert.Contains(t, doc, "branching: 2\n")
	assert.Contains(t, doc, "depth: 2\n")
	assert.Contains(t, doc, "vectorLength: 2\n")
	assert.Contains(t, doc, "size: 7\n")
	assert.Contains(t, doc, "dt: f\n")
	assert.Contains(t, doc, "wordId: -1\n")

	loaded, err := Decode[float32](strings.NewReader(doc))
	require.NoError(t, err)
	assert.True(t, tr.Equal(loaded))
}

func TestDecodeInteriorBeyondDepth(t *testing.T) {
	// The header declares depth 1 but the document nests an interior node
	// at depth 1.
	var doc strings.Builder
	doc.WriteString("type: HKM\n")
	doc.WriteString("iterations: 10\n")
	doc.WriteString("branching: 2\n")
	doc.WriteString("depth: 1\n")
	doc.WriteString("vectorLength: 1\n")
	doc.WriteString("size: 7\n")
	doc.WriteString("nodes:\n")
	writeRecord := func(data string, nodeID, wordID int) {
		doc.WriteString("   -\n")
		doc.WriteString("      center:\n")
		doc.WriteString("         rows: 1\n")
		doc.WriteString("         cols: 1\n")
		doc.WriteString("         dt: f\n")
		doc.WriteString("         data: [ " + data + " ]\n")
		doc.WriteString("      nodeId: " + strconv.Itoa(nodeID) + "\n")
		doc.WriteString("      wordId: " + strconv.Itoa(wordID) + "\n")
	}
	writeRecord("0", 0, -1)  // root, interior
	writeRecord("1", 1, -1)  // child at depth 1: interior beyond declared depth
	writeRecord("1.5", 2, 0) // would-be grandchildren
	writeRecord("2.5", 3, 1)
	writeRecord("9", 4, 0)

	_, err := Decode[float32](strings.NewReader(doc.String()))
	assert.ErrorIs(t, err, ErrParse)
}

func TestDecodeTruncated(t *testing.T) {
	tr := buildTree(t, twoClusterDataset(t), twoClusterParams())

	var buf bytes.Buffer
	require.NoError(t, tr.Encode(&buf))

	truncated := buf.String()[:buf.Len()/2]
	_, err := Decode[float32](strings.NewReader(truncated))
	assert.ErrorIs(t, err, ErrParse)
}

func TestDecodeMissingNodesSection(t *testing.T) {
	doc := "type: HKM\nbranching: 2\ndepth: 2\nvectorLength: 2\nsize: 3\n"
	_, err := Decode[float32](strings.NewReader(doc))
	assert.ErrorIs(t, err, ErrParse)
}
