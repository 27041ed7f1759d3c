package ingestion

import "errors"

var (
	// ErrSourceRepositoryRequired is returned when a source repository is not provided.
	ErrSourceRepositoryRequired = errors.New("source repository required")

	// ErrEntityRepositoryRequired is returned when an entity repository is not provided.
	ErrEntityRepositoryRequired = errors.New("entity repository required")

	// ErrRelationshipRepositoryRequired is returned when a relationship repository is not provided.
	ErrRelationshipRepositoryRequired = errors.New("relationship repository required")

	// ErrSearchRepositoryRequired is returned when a search repository is not provided.
	ErrSearchRepositoryRequired = errors.New("search repository required")

	// ErrAliasResolverRequired is returned when an alias resolver is not provided.
	ErrAliasResolverRequired = errors.New("alias resolver required")
)
