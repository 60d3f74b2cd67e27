package vocabtree

import (
	"bytes"
	"context"
	"io"

	"github.com/hupe1980/vocabtree/blobstore"
	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/index"
	"github.com/hupe1980/vocabtree/persistence"
	"github.com/hupe1980/vocabtree/tree"
)

// SaveTreeToStore persists a tree into a blob store using the same gzip
// document format as Tree.Save.
func SaveTreeToStore[E descriptor.Element](ctx context.Context, store blobstore.Store, name string, t *tree.Tree[E]) error {
	if t == nil || t.Empty() {
		return ErrTreeEmpty
	}

	var buf bytes.Buffer
	if err := persistence.WriteGzip(&buf, t.Encode); err != nil {
		return err
	}
	return store.Put(ctx, name, buf.Bytes())
}

// LoadTreeFromStore reads a tree previously written with SaveTreeToStore.
func LoadTreeFromStore[E descriptor.Element](ctx context.Context, store blobstore.Store, name string) (*tree.Tree[E], error) {
	rc, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var t *tree.Tree[E]
	err = persistence.ReadGzip(rc, func(r io.Reader) error {
		var derr error
		t, derr = tree.Decode[E](r)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SaveIndexToStore persists an inverted index into a blob store using the
// same gzip stream format as InvertedIndex.Save.
func SaveIndexToStore[E descriptor.Element](ctx context.Context, store blobstore.Store, name string, idx *index.InvertedIndex[E]) error {
	var buf bytes.Buffer
	if err := persistence.WriteGzip(&buf, idx.Encode); err != nil {
		return err
	}
	return store.Put(ctx, name, buf.Bytes())
}

// LoadIndexFromStore reads an inverted index previously written with
// SaveIndexToStore.
func LoadIndexFromStore[E descriptor.Element](ctx context.Context, store blobstore.Store, name string) (*index.InvertedIndex[E], error) {
	rc, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var idx *index.InvertedIndex[E]
	err = persistence.ReadGzip(rc, func(r io.Reader) error {
		var derr error
		idx, derr = index.DecodeInvertedIndex[E](r)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}
