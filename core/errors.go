// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"context"
	"errors"
	"fmt"
)

// Pipeline error categories. Callers match them with errors.Is.
var (
	// ErrConfig indicates missing or invalid run configuration, such as an
	// unreadable vocabulary file.
	ErrConfig = errors.New("configuration error")

	// ErrUnknownLabel indicates a record references a label that is not in
	// the vocabulary.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrShardCompute indicates the embedding provider failed for a shard or
	// returned a result that does not line up with the shard's records.
	ErrShardCompute = errors.New("shard compute failed")

	// ErrIO indicates a file read or write failure.
	ErrIO = errors.New("i/o error")

	// ErrInvalidShardEntry indicates a ShardEntry failed validation.
	ErrInvalidShardEntry = errors.New("invalid shard entry")
)

// ShardError reports a failure confined to a single shard. Shards are
// idempotent, so a caller may recompute just the failed index.
type ShardError struct {
	Index int
	Err   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d: %v", e.Index, e.Err)
}

// Unwrap exposes the underlying cause. ErrShardCompute is added unless the
// cause is an I/O failure or a cancellation, neither of which says anything
// about the shard's inputs.
func (e *ShardError) Unwrap() []error {
	if errors.Is(e.Err, ErrIO) || errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return []error{e.Err}
	}
	return []error{ErrShardCompute, e.Err}
}

// NewShardError wraps err as a failure of shard index.
func NewShardError(index int, err error) error {
	return &ShardError{Index: index, Err: err}
}
