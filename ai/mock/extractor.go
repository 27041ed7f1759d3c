package mock

import (
	"context"
	"unicode"

	"github.com/corvid-labs/sectra/ai"
)

// MockRecordExtractor is a test double for ai.RecordExtractor.
// It allows custom behavior injection via function fields.
type MockRecordExtractor struct {
	// ExtractRecordsFunc is called by ExtractRecords if set.
	// If nil, uses default capitalized-phrase extraction.
	ExtractRecordsFunc func(ctx context.Context, text string) (*ai.ExtractionBatch, error)

	callCount int
}

// NewMockRecordExtractor creates a mock record extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockRecordExtractor() *MockRecordExtractor {
	return &MockRecordExtractor{}
}

// ExtractRecords extracts simple mock records from text.
// Default behavior: each capitalized word run becomes a concept entity with
// its real char interval, capped at five entities. No relationships.
func (m *MockRecordExtractor) ExtractRecords(ctx context.Context, text string) (*ai.ExtractionBatch, error) {
	m.callCount++

	if m.ExtractRecordsFunc != nil {
		return m.ExtractRecordsFunc(ctx, text)
	}

	batch := &ai.ExtractionBatch{}
	runes := []rune(text)
	// Byte offsets, tracked alongside the rune scan so intervals index the
	// original string.
	offset := 0
	start := -1
	for i := 0; i <= len(runes); i++ {
		inWord := i < len(runes) && (unicode.IsLetter(runes[i]) || runes[i] == ' ')
		upperStart := i < len(runes) && unicode.IsUpper(runes[i])
		if start < 0 && upperStart {
			start = offset
		} else if start >= 0 && !inWord {
			batch.Entities = append(batch.Entities, ai.EntityRecord{
				Category: "concept",
				Start:    start,
				End:      offset,
			})
			start = -1
			if len(batch.Entities) >= 5 {
				break
			}
		}
		if i < len(runes) {
			offset += len(string(runes[i]))
		}
	}
	if start >= 0 && len(batch.Entities) < 5 {
		batch.Entities = append(batch.Entities, ai.EntityRecord{
			Category: "concept",
			Start:    start,
			End:      offset,
		})
	}
	return batch, nil
}

// CallCount returns the number of times ExtractRecords was called.
func (m *MockRecordExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockRecordExtractor) Reset() {
	m.callCount = 0
	m.ExtractRecordsFunc = nil
}
