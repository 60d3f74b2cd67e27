// Package vocabtree provides a hierarchical vocabulary-tree image
// retrieval engine for content-based image search and place recognition.
//
// A corpus of images is represented as sets of local feature descriptors,
// either real-valued (e.g. SIFT) or binary bit-vectors packed into bytes
// (e.g. ORB/BRIEF). The engine learns a hierarchical quantizer over a
// training descriptor set (the vocabulary tree), assigns each descriptor to
// a leaf visual word, aggregates per-image word occurrences into tf-idf
// weighted bag-of-words vectors, and ranks database images against a query
// through an inverted index.
//
// # Quick Start
//
//	data, _ := descriptor.FromRows(trainingDescriptors)
//
//	t, _ := tree.New(data, tree.DefaultParams())
//	_ = t.Build(ctx)
//
//	db, _ := vocabtree.NewDatabase(t)
//	for _, img := range images {
//	    _, _ = db.AddImage(ctx, img)
//	}
//
//	scores, perm, _ := db.ScoreQuery(ctx, query)
//	best := vocabtree.TopK(scores, perm, 5)
//
// Trees and indexes persist to gzip-compressed files (Save/Load) or to any
// blobstore.Store, including S3-compatible object storage.
package vocabtree
