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


package core

import "fmt"

// ValidateEntity validates an entity against the configured taxonomy.
//
// Validation rules:
//   - the interval must be well-formed and within the source text
//   - every attribute name must be in the category's vocabulary
//
// NOT validated (populated later by ingestion):
//   - SectionId, CanonicalId, Vector
func ValidateEntity(entity *Entity, textLen int, cfg *CategoryConfig) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}
	if err := ValidateInterval(entity.Start, entity.End, textLen); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	for _, attr := range entity.Attrs {
		if attr.Name == "" {
			return fmt.Errorf("%w: attribute with empty name", ErrInvalidEntity)
		}
		if !cfg.AllowedAttr(entity.Category, attr.Name) {
			return fmt.Errorf("%w: attribute %q not allowed for category %s",
				ErrInvalidEntity, attr.Name, cfg.EntityCategoryName(entity.Category))
		}
	}
	return nil
}

// ValidateRelationship validates a relationship against the configured
// taxonomy. Referential integrity is checked separately by ingestion, since
// it needs store state.
func ValidateRelationship(rel *Relationship, cfg *CategoryConfig) error {
	if rel == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalidRelationship)
	}
	if rel.Predicate == "" {
		return fmt.Errorf("%w: empty predicate", ErrInvalidRelationship)
	}
	if !cfg.AllowedPredicate(rel.Category, rel.Predicate) {
		return fmt.Errorf("%w: predicate %q outside the %s vocabulary",
			ErrInvalidRelationship, rel.Predicate, rel.Category)
	}
	if rel.SubjectId == 0 {
		return fmt.Errorf("%w: missing subject", ErrInvalidRelationship)
	}
	if rel.ObjectId == 0 && rel.ObjectRef == "" {
		return fmt.Errorf("%w: missing object", ErrInvalidRelationship)
	}
	if rel.ObjectId != 0 && rel.ObjectRef != "" {
		return fmt.Errorf("%w: both object entity and external reference set", ErrInvalidRelationship)
	}
	return nil
}

// ValidateInterval checks a half-open char interval against the source
// text length.
func ValidateInterval(start, end, textLen int) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%w: [%d,%d)", ErrInvalidInterval, start, end)
	}
	if textLen > 0 && start >= textLen {
		return fmt.Errorf("%w: start %d beyond text length %d", ErrInvalidInterval, start, textLen)
	}
	return nil
}
