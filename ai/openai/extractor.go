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
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/corvid-labs/sectra/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// RecordExtractor implements ai.RecordExtractor using OpenAI-compatible chat APIs.
//
// The model returns entity and relationship records with verbatim quotes of
// the source text; the extractor locates each quote in the raw input to
// recover char intervals. Records whose quote cannot be found are dropped.
type RecordExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// llmEntity is an internal type used for JSON unmarshaling.
// It matches the structure expected from the LLM.
type llmEntity struct {
	Text     string            `json:"text"`
	Category string            `json:"category"`
	Attrs    map[string]string `json:"attrs"`
}

// llmRelationship carries subject/object as indices into the entities array.
type llmRelationship struct {
	Category  string `json:"category"`
	Predicate string `json:"predicate"`
	Subject   int    `json:"subject"`
	Object    *int   `json:"object"`
	ObjectRef string `json:"object_ref"`
	Condition string `json:"condition"`
	Text      string `json:"text"`
}

// llmBatch is the wrapper structure for the LLM's JSON response.
type llmBatch struct {
	Entities      []llmEntity       `json:"entities"`
	Relationships []llmRelationship `json:"relationships"`
}

// newRecordExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newRecordExtractor(config *ai.Config) (*RecordExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for chat/extraction
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &RecordExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewRecordExtractor creates a new record extractor using the provided configuration.
//
// Returns ai.RecordExtractor interface to enforce abstraction.
func NewRecordExtractor(config *ai.Config) (ai.RecordExtractor, error) {
	return newRecordExtractor(config)
}

// ExtractRecords extracts entity and relationship records from text using an LLM.
func (e *RecordExtractor) ExtractRecords(ctx context.Context, text string) (*ai.ExtractionBatch, error) {
	systemPrompt := buildSystemPrompt()
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result llmBatch
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &ai.ExtractionBatch{}, nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		result = llmBatch{}
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		// Success
		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	return e.groundBatch(text, &result), nil
}

// groundBatch converts model output into char-interval records. Entity quotes
// are located left to right so that repeated mentions resolve to successive
// occurrences. Relationships referencing a dropped entity are dropped too.
func (e *RecordExtractor) groundBatch(text string, raw *llmBatch) *ai.ExtractionBatch {
	batch := &ai.ExtractionBatch{}
	remap := make(map[int]int, len(raw.Entities))

	cursor := 0
	for i, ent := range raw.Entities {
		quote := strings.TrimSpace(ent.Text)
		if quote == "" {
			continue
		}
		start := indexFrom(text, quote, cursor)
		if start < 0 {
			e.logger.Warn("entity quote not found in source text", "quote", quote)
			continue
		}
		remap[i] = len(batch.Entities)
		batch.Entities = append(batch.Entities, ai.EntityRecord{
			Category: normalizeCategory(ent.Category),
			Start:    start,
			End:      start + len(quote),
			Attrs:    ent.Attrs,
		})
		cursor = start + 1
	}

	for _, rel := range raw.Relationships {
		subject, ok := remap[rel.Subject]
		if !ok {
			continue
		}
		rec := ai.RelationshipRecord{
			Category:  normalizeCategory(rel.Category),
			Predicate: rel.Predicate,
			Subject:   subject,
			ObjectRef: rel.ObjectRef,
			Condition: rel.Condition,
		}
		if rel.Object != nil {
			object, ok := remap[*rel.Object]
			if !ok {
				continue
			}
			rec.Object = &object
			rec.ObjectRef = ""
		}
		if quote := strings.TrimSpace(rel.Text); quote != "" {
			if start := indexFrom(text, quote, 0); start >= 0 {
				rec.Start = start
				rec.End = start + len(quote)
			}
		}
		batch.Relationships = append(batch.Relationships, rec)
	}

	e.logger.Debug("grounded extraction batch",
		"entities", len(batch.Entities),
		"relationships", len(batch.Relationships),
		"dropped_entities", len(raw.Entities)-len(batch.Entities))
	return batch
}

// indexFrom finds quote at or after offset, falling back to a full scan when
// the model reported mentions out of document order.
func indexFrom(text, quote string, offset int) int {
	if offset < len(text) {
		if idx := strings.Index(text[offset:], quote); idx >= 0 {
			return offset + idx
		}
	}
	return strings.Index(text, quote)
}

// normalizeCategory maps loose model spellings onto wire names.
func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	category = strings.ReplaceAll(category, " ", "-")
	return strings.ReplaceAll(category, "_", "-")
}
