package storygraph

import "errors"

var (
	// ErrParse is returned when the input document does not follow the
	// chapter-structured format (no chapter markers, orphan sub-lists,
	// non-contiguous chapter numbers).
	ErrParse = errors.New("storygraph: document parsing failed")

	// ErrExtractionSchema is returned when the LLM extraction response does
	// not match the expected schema after the bounded repair retry.
	ErrExtractionSchema = errors.New("storygraph: extraction response does not match schema")

	// ErrUpsertConflict marks a natural-key collision with incompatible
	// attributes. The offending entity is skipped; the rest of the batch
	// proceeds.
	ErrUpsertConflict = errors.New("storygraph: upsert natural-key conflict")

	// ErrUpdate is returned when a revised document fails structural
	// validation. The graph is untouched in that case.
	ErrUpdate = errors.New("storygraph: document update failed")

	// ErrGameNotFound is returned when a game title does not exist in the store.
	ErrGameNotFound = errors.New("storygraph: game not found")

	// ErrResetNotConfirmed is returned when a whole-store reset is requested
	// without the explicit confirmation flag.
	ErrResetNotConfirmed = errors.New("storygraph: reset requires explicit confirmation")

	// ErrLLMUnavailable is returned when the LLM provider cannot be reached
	// after the transport retry policy is exhausted.
	ErrLLMUnavailable = errors.New("storygraph: LLM provider unavailable")
)
