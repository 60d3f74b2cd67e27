package vocabtree_test

import (
	"context"
	"fmt"
	"log"

	vocabtree "github.com/hupe1980/vocabtree"
	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/tree"
)

func Example() {
	ctx := context.Background()

	// Train a tiny vocabulary over two well-separated clusters.
	training, err := descriptor.FromRows([][]float32{
		{0, 0}, {0, 1}, {1, 0}, {1, 1},
		{10, 10}, {10, 11}, {11, 10}, {11, 11},
	})
	if err != nil {
		log.Fatal(err)
	}

	t, err := tree.New(training, tree.Params{
		Branching:     2,
		Depth:         2,
		MaxIterations: 10,
		CentersInit:   tree.CentersKMeansPP,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := t.Build(ctx); err != nil {
		log.Fatal(err)
	}

	db, err := vocabtree.NewDatabase(t)
	if err != nil {
		log.Fatal(err)
	}

	near, _ := descriptor.FromRows([][]float32{{0, 0}, {1, 1}})
	far, _ := descriptor.FromRows([][]float32{{10, 10}, {11, 11}})
	if _, err := db.AddImage(ctx, near); err != nil {
		log.Fatal(err)
	}
	if _, err := db.AddImage(ctx, far); err != nil {
		log.Fatal(err)
	}
	db.Commit()

	scores, perm, err := db.ScoreQuery(ctx, near)
	if err != nil {
		log.Fatal(err)
	}

	best := vocabtree.TopK(scores, perm, 1)
	fmt.Printf("best match: image %d\n", best[0].ImageID)
	// Output: best match: image 0
}
