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


package badger

import "github.com/corvid-labs/sectra/storage"

// Repositories bundles the full repository set over one backend.
type Repositories struct {
	Sources       storage.SourceRepository
	Entities      storage.EntityRepository
	Relationships storage.RelationshipRepository
	Aliases       storage.AliasRepository
	Search        storage.SearchRepository
}

// NewRepositories creates the full repository set over a backend.
func NewRepositories(backend *Backend) (*Repositories, error) {
	sources, err := NewSourceRepository(backend)
	if err != nil {
		return nil, err
	}
	entities, err := NewEntityRepository(backend)
	if err != nil {
		return nil, err
	}
	rels, err := NewRelationshipRepository(backend)
	if err != nil {
		return nil, err
	}
	aliases, err := NewAliasRepository(backend)
	if err != nil {
		return nil, err
	}
	search, err := NewSearchRepository(backend)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Sources:       sources,
		Entities:      entities,
		Relationships: rels,
		Aliases:       aliases,
		Search:        search,
	}, nil
}

// NewMemoryRepositories creates an in-memory repository set for testing.
// Caller must close the backend when done.
func NewMemoryRepositories() (*Repositories, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}
	repos, err := NewRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return repos, backend, nil
}
