package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/persistence"
)

// The inverted-index file is a gzip-compressed little-endian binary stream:
// a header (magic, version, norm kind, word count, image count), one record
// per image in id order (image id, pair count, (word, count) pairs, norm
// kind tag, norm value), and a trailing global section with per-word
// document frequencies and the database size.

type wordCount struct {
	word  uint32
	count uint32
}

// Save persists the index, committing it first so the stored norms match
// the stored posting lists.
func (idx *InvertedIndex[E]) Save(path string) error {
	return persistence.SaveGzipFile(path, idx.Encode)
}

// Encode writes the index stream to w without compression framing.
func (idx *InvertedIndex[E]) Encode(w io.Writer) error {
	idx.mu.RLock()
	for idx.dirty {
		idx.mu.RUnlock()
		idx.Commit()
		idx.mu.RLock()
	}
	defer idx.mu.RUnlock()

	le := binary.LittleEndian

	for _, v := range []uint32{persistence.IndexMagic, persistence.Version} {
		if err := binary.Write(w, le, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, le, uint8(idx.norm)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(idx.numWords)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(idx.images)); err != nil {
		return err
	}

	// Regroup the postings into per-image sparse vectors.
	vecs := make([][]wordCount, idx.images)
	for w32, plist := range idx.postings {
		for _, p := range plist {
			vecs[p.imageID] = append(vecs[p.imageID], wordCount{word: uint32(w32), count: p.count})
		}
	}

	for id, vec := range vecs {
		sort.Slice(vec, func(a, b int) bool { return vec[a].word < vec[b].word })

		if err := binary.Write(w, le, uint32(id)); err != nil {
			return err
		}
		if err := binary.Write(w, le, uint32(len(vec))); err != nil {
			return err
		}
		for _, wc := range vec {
			if err := binary.Write(w, le, wc.word); err != nil {
				return err
			}
			if err := binary.Write(w, le, wc.count); err != nil {
				return err
			}
		}
		if err := binary.Write(w, le, uint8(idx.norm)); err != nil {
			return err
		}
		if err := binary.Write(w, le, idx.norms[id]); err != nil {
			return err
		}
	}

	// Trailing global section: per-word df, then the database size.
	for _, plist := range idx.postings {
		if err := binary.Write(w, le, uint32(len(plist))); err != nil {
			return err
		}
	}
	return binary.Write(w, le, uint32(idx.images))
}

// LoadInvertedIndex reads an index previously written by Save.
func LoadInvertedIndex[E descriptor.Element](path string) (*InvertedIndex[E], error) {
	var idx *InvertedIndex[E]
	err := persistence.LoadGzipFile(path, func(r io.Reader) error {
		var derr error
		idx, derr = DecodeInvertedIndex[E](r)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// DecodeInvertedIndex reads an uncompressed index stream from r.
func DecodeInvertedIndex[E descriptor.Element](r io.Reader) (*InvertedIndex[E], error) {
	le := binary.LittleEndian

	var magic, version uint32
	if err := binary.Read(r, le, &magic); err != nil {
		return nil, err
	}
	if magic != persistence.IndexMagic {
		return nil, fmt.Errorf("%w: got 0x%08x", persistence.ErrInvalidMagic, magic)
	}
	if err := binary.Read(r, le, &version); err != nil {
		return nil, err
	}
	if version != persistence.Version {
		return nil, fmt.Errorf("%w: got 0x%08x", persistence.ErrInvalidVersion, version)
	}

	var normTag uint8
	if err := binary.Read(r, le, &normTag); err != nil {
		return nil, err
	}
	norm := NormKind(normTag)
	if err := norm.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var numWords, numImages uint32
	if err := binary.Read(r, le, &numWords); err != nil {
		return nil, err
	}
	if err := binary.Read(r, le, &numImages); err != nil {
		return nil, err
	}

	idx := &InvertedIndex[E]{
		norm:     norm,
		numWords: int(numWords),
		postings: make([][]posting, numWords),
		images:   int(numImages),
	}

	for i := uint32(0); i < numImages; i++ {
		var id, npairs uint32
		if err := binary.Read(r, le, &id); err != nil {
			return nil, err
		}
		if id != i {
			return nil, fmt.Errorf("%w: image record %d has id %d", ErrParse, i, id)
		}
		if err := binary.Read(r, le, &npairs); err != nil {
			return nil, err
		}

		for p := uint32(0); p < npairs; p++ {
			var word, count uint32
			if err := binary.Read(r, le, &word); err != nil {
				return nil, err
			}
			if err := binary.Read(r, le, &count); err != nil {
				return nil, err
			}
			if word >= numWords {
				return nil, fmt.Errorf("%w: word %d out of range [0,%d)", ErrParse, word, numWords)
			}
			idx.postings[word] = append(idx.postings[word], posting{imageID: id, count: count})
		}

		var recNorm uint8
		if err := binary.Read(r, le, &recNorm); err != nil {
			return nil, err
		}
		if NormKind(recNorm) != norm {
			return nil, fmt.Errorf("%w: image %d norm kind %d differs from header %d", ErrParse, id, recNorm, normTag)
		}
		var normVal float32
		if err := binary.Read(r, le, &normVal); err != nil {
			return nil, err
		}
	}

	// Global section validates the reconstructed posting lists.
	for w := uint32(0); w < numWords; w++ {
		var df uint32
		if err := binary.Read(r, le, &df); err != nil {
			return nil, err
		}
		if int(df) != len(idx.postings[w]) {
			return nil, fmt.Errorf("%w: word %d df %d does not match %d postings", ErrParse, w, df, len(idx.postings[w]))
		}
	}
	var total uint32
	if err := binary.Read(r, le, &total); err != nil {
		return nil, err
	}
	if total != numImages {
		return nil, fmt.Errorf("%w: trailer image count %d does not match header %d", ErrParse, total, numImages)
	}

	// Norms and idf are derived state; recompute instead of trusting the
	// stored values.
	idx.commitLocked()

	return idx, nil
}

// Save persists the direct index as a gzip-compressed binary stream.
func (d *DirectIndex) Save(path string) error {
	return persistence.SaveGzipFile(path, d.Encode)
}

// Encode writes the direct-index stream to w without compression framing.
func (d *DirectIndex) Encode(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	le := binary.LittleEndian

	for _, v := range []uint32{persistence.DirectIndexMagic, persistence.Version} {
		if err := binary.Write(w, le, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, le, uint32(d.level)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(len(d.images))); err != nil {
		return err
	}

	ids := make([]uint32, 0, len(d.images))
	for id := range d.images {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	for _, id := range ids {
		nodes := d.images[id]

		if err := binary.Write(w, le, id); err != nil {
			return err
		}
		if err := binary.Write(w, le, uint32(len(nodes))); err != nil {
			return err
		}

		nodeIDs := make([]int, 0, len(nodes))
		for n := range nodes {
			nodeIDs = append(nodeIDs, n)
		}
		sort.Ints(nodeIDs)

		for _, n := range nodeIDs {
			if err := binary.Write(w, le, int32(n)); err != nil {
				return err
			}
			if err := binary.Write(w, le, uint32(len(nodes[n]))); err != nil {
				return err
			}
			for _, idx := range nodes[n] {
				if err := binary.Write(w, le, uint32(idx)); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// LoadDirectIndex reads a direct index previously written by Save.
func LoadDirectIndex(path string) (*DirectIndex, error) {
	var d *DirectIndex
	err := persistence.LoadGzipFile(path, func(r io.Reader) error {
		var derr error
		d, derr = DecodeDirectIndex(r)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeDirectIndex reads an uncompressed direct-index stream from r.
func DecodeDirectIndex(r io.Reader) (*DirectIndex, error) {
	le := binary.LittleEndian

	var magic, version uint32
	if err := binary.Read(r, le, &magic); err != nil {
		return nil, err
	}
	if magic != persistence.DirectIndexMagic {
		return nil, fmt.Errorf("%w: got 0x%08x", persistence.ErrInvalidMagic, magic)
	}
	if err := binary.Read(r, le, &version); err != nil {
		return nil, err
	}
	if version != persistence.Version {
		return nil, fmt.Errorf("%w: got 0x%08x", persistence.ErrInvalidVersion, version)
	}

	var level, numImages uint32
	if err := binary.Read(r, le, &level); err != nil {
		return nil, err
	}
	if err := binary.Read(r, le, &numImages); err != nil {
		return nil, err
	}

	d := &DirectIndex{
		level:  int(level),
		images: make(map[uint32]map[int][]int, numImages),
	}

	for i := uint32(0); i < numImages; i++ {
		var id, numNodes uint32
		if err := binary.Read(r, le, &id); err != nil {
			return nil, err
		}
		if err := binary.Read(r, le, &numNodes); err != nil {
			return nil, err
		}

		nodes := make(map[int][]int, numNodes)
		for n := uint32(0); n < numNodes; n++ {
			var node int32
			var count uint32
			if err := binary.Read(r, le, &node); err != nil {
				return nil, err
			}
			if err := binary.Read(r, le, &count); err != nil {
				return nil, err
			}

			indices := make([]int, count)
			for k := range indices {
				var v uint32
				if err := binary.Read(r, le, &v); err != nil {
					return nil, err
				}
				indices[k] = int(v)
			}
			nodes[int(node)] = indices
		}

		if _, dup := d.images[id]; dup {
			return nil, fmt.Errorf("%w: duplicate image id %d", ErrParse, id)
		}
		d.images[id] = nodes
	}

	return d, nil
}
