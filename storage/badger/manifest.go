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


package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/dataprep/core"
	"github.com/poiesic/dataprep/storage"
)

// ManifestRepository implements storage.ManifestRepository for BadgerDB.
type ManifestRepository struct {
	backend *Backend
}

var _ storage.ManifestRepository = (*ManifestRepository)(nil)

// NewManifestRepository creates a new ManifestRepository.
func NewManifestRepository(backend *Backend) *ManifestRepository {
	return &ManifestRepository{
		backend: backend,
	}
}

// SaveManifest persists the shard plan of an embed phase.
func (r *ManifestRepository) SaveManifest(ctx context.Context, manifest *core.Manifest) error {
	if err := core.ValidateManifest(manifest); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		manifest.UpdatedAt = time.Now().UTC().UnixMicro()
		value := storage.MarshalManifest(manifest)
		if err := tx.Set(makeManifestKey(), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadManifest retrieves the stored manifest.
// Returns nil, nil if no manifest exists.
func (r *ManifestRepository) LoadManifest(ctx context.Context) (*core.Manifest, error) {
	var manifest *core.Manifest
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeManifestKey())
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			manifest, unmarshalErr = storage.UnmarshalManifest(val)
			return unmarshalErr
		})
	}, false)

	return manifest, err
}
