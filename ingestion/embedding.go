package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

// EmbeddingRef attaches an externally computed vector to a stored record.
type EmbeddingRef struct {
	Kind   core.ResultKind
	Id     core.ID
	Vector []float32
}

// AttachEmbeddings stores vectors on existing entities and relationships.
// The first accepted vector pins the store's embedding dimension; later
// vectors of a different dimension are rejected individually and their
// records stay on lexical-only indexing. Missing records are rejected
// individually as well, so a stale ref list never fails the batch.
func (p *Pipeline) AttachEmbeddings(ctx context.Context, refs []EmbeddingRef) (*Report, error) {
	report := &Report{}

	for i, ref := range refs {
		if len(ref.Vector) == 0 {
			report.reject(ref.Kind, i, fmt.Errorf("%w: empty vector", core.ErrEmbeddingMismatch))
			continue
		}

		err := p.searchRepo.SetEmbeddingDimension(ctx, len(ref.Vector))
		if errors.Is(err, core.ErrEmbeddingMismatch) {
			report.reject(ref.Kind, i, fmt.Errorf("%w: got %d", err, len(ref.Vector)))
			continue
		}
		if err != nil {
			return report, err
		}

		switch ref.Kind {
		case core.KindEntity:
			err = p.attachEntityVector(ctx, ref)
			if err == nil {
				report.Entities++
			}
		case core.KindRelationship:
			err = p.attachRelationshipVector(ctx, ref)
			if err == nil {
				report.Relationships++
			}
		default:
			err = fmt.Errorf("unknown record kind %d", ref.Kind)
		}
		if err != nil {
			report.reject(ref.Kind, i, err)
		}
	}

	p.logger.Debug("attached embeddings",
		"entities", report.Entities,
		"relationships", report.Relationships,
		"rejected", len(report.Rejected))
	return report, nil
}

func (p *Pipeline) attachEntityVector(ctx context.Context, ref EmbeddingRef) error {
	ent, err := p.entities.GetEntity(ctx, ref.Id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("entity %d: %w", ref.Id, err)
	}
	if err != nil {
		return err
	}
	ent.Vector = ref.Vector
	_, err = p.entities.UpdateEntities(ctx, ent)
	return err
}

func (p *Pipeline) attachRelationshipVector(ctx context.Context, ref EmbeddingRef) error {
	rel, err := p.relationships.GetRelationship(ctx, ref.Id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("relationship %d: %w", ref.Id, err)
	}
	if err != nil {
		return err
	}
	rel.Vector = ref.Vector
	_, err = p.relationships.UpdateRelationships(ctx, rel)
	return err
}
