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
// Package ai provides the embedding capability used by the dataset pipeline.
//
// The pipeline treats the text-embedding model as a black box: a batch of
// strings goes in, one fixed-width float32 vector per string comes out. The
// Embedder interface captures exactly that, so the embed phase can be driven
// by a remote service in production and by a deterministic double in tests.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test double for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewEmbedder, NewRetryingEmbedder) return the
// Embedder interface. The test constructor mock.NewMockEmbedder returns the
// concrete type so tests can inject behavior and assert on call counts.
//
//	embedder, err := openai.NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	embedder = ai.NewRetryingEmbedder(embedder, 3, time.Second)
//
// # Retries
//
// The core pipeline never retries a failed shard on its own. Shards are
// idempotent, so callers that want retries wrap the embedder with
// NewRetryingEmbedder or rerun the embed phase with skip-existing enabled.
package ai
