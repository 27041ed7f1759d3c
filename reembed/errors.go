package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrAttacherRequired is returned when an embedding attacher is not provided.
	ErrAttacherRequired = errors.New("embedding attacher required")

	// ErrSourceRepositoryRequired is returned when a source repository is not provided.
	ErrSourceRepositoryRequired = errors.New("source repository required")

	// ErrInvalidBatchSize is returned when the batch size is <= 0.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")
)
