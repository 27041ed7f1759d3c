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


// Package storage provides the storage abstraction layer for sectra.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic, so different backends (BadgerDB, in-memory) can be used
// interchangeably.
//
// # Constructor Return Type Pattern
//
// This package follows a strict "return interface" pattern for all public
// constructors to enforce abstraction and enable multiple storage backend
// implementations:
//
//	repo, err := badger.NewSourceRepository(backend)  // returns storage.SourceRepository
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - Repository: base interface with transactions and vector search
//   - SourceRepository: sources and their atomic replacement
//   - EntityRepository: entity reads and vector/canonical updates
//   - RelationshipRepository: relationship reads and vector updates
//   - AliasRepository: persisted alias clusters
//   - SearchRepository: lexical postings and embedding metadata
//
// # Write Path
//
// All per-source records enter storage through one operation,
// SourceRepository.ReplaceSource, which removes the previous version of the
// source and writes the new batch in a single transaction. The other
// repositories only read, or rewrite records in place.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and timeout
// support. Pass context.Background() for operations without specific timeout
// requirements.
package storage
