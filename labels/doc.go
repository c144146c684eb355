// Package labels builds the fixed label vocabulary of a run and encodes
// record categories as one-hot and multi-hot vectors.
//
// The vocabulary is an ordered list of distinct labels. A label's position
// is its basis index, so vocabulary order determines column order in every
// encoded row. Once built, a Vocabulary is immutable and safe for concurrent
// reads.
package labels
