// Copyright 2026 Corvid Labs
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

// Package reembed backfills embeddings for stored records.
//
// The core never computes vectors itself; it stores what it is given. This
// package walks every source's entities and relationships, obtains vectors
// from an ai.Embedder in batches with retry, and attaches them through the
// ingestion pipeline's dimension-checked AttachEmbeddings path. Records the
// store rejects (stale ids, dimension mismatches) are counted and reported,
// not fatal.
package reembed
