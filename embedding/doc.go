// Package embedding runs the embed phase of the pipeline.
//
// The canonical record order is cut into contiguous shards by
// PartitionRecords. A Manager embeds each shard with an ai.Embedder and
// persists the result to a storage.ShardCache, one atomic entry per shard.
// Shards are independent: they run on a worker pool, complete in any order,
// and a failed shard never blocks or corrupts the others.
//
// Completed entries survive interruption. Rerunning with
// RunOptions.SkipExisting only recomputes shards that are missing or whose
// ids and texts changed since they were cached.
package embedding
