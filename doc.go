// Package dataprep turns a catalogue of labelled text records into a
// partitioned binary training dataset.
//
// The work is split into two resumable phases that share one on-disk shard
// cache:
//
//   - Embed parses the records, cuts the canonical order into shards and
//     embeds every shard that is not already cached. The shard plan is saved
//     as a manifest.
//   - Assemble re-derives the same plan, checks it against the manifest,
//     draws the seeded train/dev split and streams the cached vectors into a
//     staged container that is published atomically.
//
// Run performs both phases in order.
//
//	cfg := dataprep.NewConfig(
//	    dataprep.WithSourceDir("data"),
//	    dataprep.WithOutputPath("out/products.dpds"),
//	    dataprep.WithCacheDir("out/cache"),
//	)
//	p, err := dataprep.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	report, err := p.Run(ctx, embedder)
package dataprep
