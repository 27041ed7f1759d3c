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

package mock

import "github.com/corvid-labs/sectra/ai"

// MockProvider bundles a MockEmbedder and MockRecordExtractor behind
// ai.AIProvider. The GetMockX accessors expose the concrete doubles so tests
// can inject behavior and inspect call counts.
type MockProvider struct {
	embedder  *MockEmbedder
	extractor *MockRecordExtractor
}

// NewMockProvider creates a provider over fresh default doubles.
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithServices(NewMockEmbedder(), NewMockRecordExtractor())
}

// NewMockProviderWithServices creates a provider over caller-supplied doubles.
func NewMockProviderWithServices(embedder *MockEmbedder, extractor *MockRecordExtractor) ai.AIProvider {
	return &MockProvider{embedder: embedder, extractor: extractor}
}

// Embedder returns the mock embedder as ai.Embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// RecordExtractor returns the mock extractor as ai.RecordExtractor.
func (p *MockProvider) RecordExtractor() ai.RecordExtractor {
	return p.extractor
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the concrete embedder double.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockExtractor returns the concrete extractor double.
func (p *MockProvider) GetMockExtractor() *MockRecordExtractor {
	return p.extractor
}
