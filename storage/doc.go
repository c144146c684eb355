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


// Package storage provides the storage abstraction layer for the embedding cache.
//
// The embed phase of the pipeline writes one ShardEntry per shard; the
// assemble phase reads them back in shard-index order. This package defines
// the ShardCache and ManifestRepository interfaces that decouple those
// phases from the concrete backend, along with the mus serialization helpers
// and the block compression codec applied to cached values.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interfaces:
//
//	cache, err := badger.NewShardCache(backend)  // returns storage.ShardCache
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/cache", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	cache, err := badger.NewShardCache(backend, badger.WithCompression(storage.CompressionZSTD))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Use in tests with in-memory storage:
//
//	cache, manifests, backend, err := badger.NewMemoryRepositories()
//
// # Atomicity
//
// PutShard must write a whole entry in one transaction so an interrupted run
// never leaves a shard whose ids and vectors disagree. Completed shards stay
// valid across interruptions, which is what makes the embed phase resumable.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
