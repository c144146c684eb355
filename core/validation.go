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

import "fmt"

// ValidateShardEntry validates a ShardEntry according to the cache rules.
//
// Validation rules:
//   - IDs and Vectors must have the same length
//   - every vector must have exactly Dim elements
//   - Dim must be positive unless the entry is empty
func ValidateShardEntry(entry *ShardEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidShardEntry)
	}

	if len(entry.IDs) != len(entry.Vectors) {
		return fmt.Errorf("%w: %d ids but %d vectors", ErrInvalidShardEntry, len(entry.IDs), len(entry.Vectors))
	}

	if len(entry.IDs) > 0 && entry.Dim <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrInvalidShardEntry, entry.Dim)
	}

	for i, vector := range entry.Vectors {
		if len(vector) != entry.Dim {
			return fmt.Errorf("%w: row %d has width %d, want %d", ErrInvalidShardEntry, i, len(vector), entry.Dim)
		}
	}

	return nil
}

// ValidateManifest checks that a manifest describes a usable shard plan.
func ValidateManifest(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("%w: manifest is nil", ErrConfig)
	}
	if m.ShardSize < 1 {
		return fmt.Errorf("%w: shard size %d", ErrConfig, m.ShardSize)
	}
	if m.NumRecords < 0 || m.NumShards < 0 {
		return fmt.Errorf("%w: negative counts in manifest", ErrConfig)
	}
	return nil
}
