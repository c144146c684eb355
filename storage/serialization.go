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


package storage

import (
	"fmt"

	"github.com/poiesic/dataprep/core"
)

// MarshalShardEntry serializes a ShardEntry to bytes.
func MarshalShardEntry(entry *core.ShardEntry) []byte {
	buf := make([]byte, core.ShardEntryMUS.Size(*entry))
	core.ShardEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalShardEntry deserializes a ShardEntry from bytes.
func UnmarshalShardEntry(data []byte) (*core.ShardEntry, error) {
	entry, _, err := core.ShardEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}

// MarshalManifest serializes a Manifest to bytes.
func MarshalManifest(manifest *core.Manifest) []byte {
	buf := make([]byte, core.ManifestMUS.Size(*manifest))
	core.ManifestMUS.Marshal(*manifest, buf)
	return buf
}

// UnmarshalManifest deserializes a Manifest from bytes.
func UnmarshalManifest(data []byte) (*core.Manifest, error) {
	manifest, _, err := core.ManifestMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &manifest, nil
}

// MarshalContainerHeader serializes a ContainerHeader to bytes.
func MarshalContainerHeader(header *core.ContainerHeader) []byte {
	buf := make([]byte, core.ContainerHeaderMUS.Size(*header))
	core.ContainerHeaderMUS.Marshal(*header, buf)
	return buf
}

// UnmarshalContainerHeader deserializes a ContainerHeader from bytes.
func UnmarshalContainerHeader(data []byte) (*core.ContainerHeader, error) {
	header, _, err := core.ContainerHeaderMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &header, nil
}
