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
// Package dataset stages and publishes the binary dataset container.
//
// During assembly each partition is backed by a Group: three growable files
// in a hidden staging directory beside the output, holding float32
// embeddings, int32 label rows and fixed-width ids. Groups implement
// assembly.Store, so rows stream to disk chunk by chunk and memory stays
// bounded.
//
// Publish concatenates the trimmed groups into a single container file and
// appends a footer:
//
//	[train embeddings][train labels][train ids]
//	[dev embeddings][dev labels][dev ids]
//	[header][uint32 header length][uint32 header CRC32][magic "DPDS"]
//
// All integers and array elements are little-endian. The header is a
// mus-encoded core.ContainerHeader that locates every array. The container
// is written to a temporary file, synced and renamed into place, so readers
// never observe a partial dataset. A cancelled or failed run calls Discard
// and leaves no output behind.
package dataset
