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
package embedding

import (
	"fmt"

	"github.com/poiesic/dataprep/core"
)

// PartitionRecords cuts ids into contiguous shards of at most shardSize
// records. Shard i holds ids[i*shardSize : (i+1)*shardSize]; only the last
// shard may be short. The shards share ids' backing array.
func PartitionRecords(ids []string, shardSize int) ([]core.Shard, error) {
	if shardSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidShardSize, shardSize)
	}

	shards := make([]core.Shard, 0, (len(ids)+shardSize-1)/shardSize)
	for start := 0; start < len(ids); start += shardSize {
		end := min(start+shardSize, len(ids))
		shards = append(shards, core.Shard{
			Index: len(shards),
			IDs:   ids[start:end:end],
		})
	}
	return shards, nil
}

// SamePlan reports whether two shard plans cut the same ids at the same
// boundaries.
func SamePlan(a, b []core.Shard) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Index != b[i].Index || len(a[i].IDs) != len(b[i].IDs) {
			return false
		}
		for j := range a[i].IDs {
			if a[i].IDs[j] != b[i].IDs[j] {
				return false
			}
		}
	}
	return true
}
