// Package assembly streams cached shard embeddings into the two dataset
// partitions through fixed-size chunk buffers.
//
// The Assembler walks the shard plan in index order and, within each shard,
// in the canonical record order. Each row is routed to the train or dev
// partition by its position's split membership and appended to that
// partition's chunk. A full chunk is copied into the partition's Store at
// the partition's write offset and then reset, so peak memory depends on the
// chunk size and not on the corpus size. After the last shard, non-empty
// chunks are flushed and every Store is trimmed to exactly the rows written.
//
// Assembly is sequential and does no locking. Stores are owned by the
// Assembler for the duration of Assemble.
package assembly
