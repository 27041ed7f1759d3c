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

package openai

import (
	"github.com/corvid-labs/sectra/ai"
)

// Provider bundles the embedder and the record extractor behind ai.AIProvider,
// built from one validated configuration.
type Provider struct {
	embedder  *Embedder
	extractor *RecordExtractor
}

// NewProvider wires both OpenAI-compatible services from the configuration.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	extractor, err := newRecordExtractor(config)
	if err != nil {
		return nil, err
	}

	return &Provider{embedder: embedder, extractor: extractor}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// RecordExtractor returns the record extraction service.
func (p *Provider) RecordExtractor() ai.RecordExtractor {
	return p.extractor
}

// Close releases provider resources. The underlying HTTP clients hold none.
func (p *Provider) Close() error {
	return nil
}
