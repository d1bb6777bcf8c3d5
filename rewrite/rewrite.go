// Package rewrite runs the consistency-update loop: retrieve graph context
// for a change request, have the model revise the document against that
// context, validate the revision, and re-extract only the chapters the
// revision actually touched.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ybkang/storygraph/extract"
	"github.com/ybkang/storygraph/graph"
	"github.com/ybkang/storygraph/llm"
	"github.com/ybkang/storygraph/parser"
	"github.com/ybkang/storygraph/retrieval"
)

// ErrInvalidRevision reports a model revision that no longer parses as a
// structured design document. The stored graph is left untouched.
var ErrInvalidRevision = errors.New("revised document failed validation")

const rewriteSystemPrompt = `You revise game design documents in response to change requests.

Rules:
- Preserve the document's structure exactly: chapter headings of the form "#### Chapter N: Title", the bold list labels, and the bullet lists under them.
- Change only what the request demands. Chapters the request does not affect must be reproduced verbatim.
- Stay consistent with the established story state given in the context block: character roles, locations and past events must not contradict it.
- Never renumber, add or remove chapters unless the request explicitly asks for it.
- Output the full revised document and nothing else.`

// UpdateResult reports what an update pass changed.
type UpdateResult struct {
	RevisedDocument string
	TouchedChapters []int
	WholeGame       bool
	FallbackContext bool
}

// Orchestrator wires retrieval, the chat provider, and re-extraction into
// one update pass.
type Orchestrator struct {
	provider  llm.Provider
	model     string
	retriever *retrieval.Retriever
	extractor extract.Extractor
	upserter  *graph.Upserter
	logger    *slog.Logger
}

// New builds an update orchestrator.
func New(provider llm.Provider, model string, retriever *retrieval.Retriever, extractor extract.Extractor, upserter *graph.Upserter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider:  provider,
		model:     model,
		retriever: retriever,
		extractor: extractor,
		upserter:  upserter,
		logger:    logger,
	}
}

// Update revises the document per the request and converges the stored
// graph to the revision. The original document is never modified on disk;
// the caller decides what to do with the returned revision.
func (o *Orchestrator) Update(ctx context.Context, gameTitle, originalDoc, request string) (*UpdateResult, error) {
	original, err := parser.Parse(originalDoc)
	if err != nil {
		return nil, fmt.Errorf("parsing original document: %w", err)
	}

	bundle, err := o.retriever.Retrieve(ctx, gameTitle, request)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	resp, err := o.provider.Chat(ctx, llm.ChatRequest{
		Model: o.model,
		Messages: []llm.Message{
			{Role: "system", Content: rewriteSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"Established story state:\n%s\n\nDocument:\n%s\n\nChange request: %s",
				bundle.Format(), originalDoc, request)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite chat request: %w", err)
	}

	revisedDoc := resp.Content
	revised, err := parser.Parse(revisedDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRevision, err)
	}

	touched, wholeGame := diffChapters(original, revised)
	if len(touched) == 0 && !wholeGame {
		o.logger.Info("revision changed no chapter, graph left as is",
			"game", gameTitle)
		return &UpdateResult{
			RevisedDocument: revisedDoc,
			FallbackContext: bundle.Fallback,
		}, nil
	}

	res, err := o.extractor.Extract(ctx, revisedDoc)
	if err != nil {
		return nil, fmt.Errorf("re-extracting revision: %w", err)
	}

	scope := graph.WholeGame
	if !wholeGame && len(touched) == 1 {
		scope = graph.Scope{ChapterNumber: touched[0]}
	}
	if err := o.upserter.Apply(ctx, gameTitle, res, scope); err != nil {
		return nil, fmt.Errorf("merging revision: %w", err)
	}

	o.logger.Info("update applied",
		"game", gameTitle,
		"touched_chapters", touched,
		"whole_game", scope == graph.WholeGame)
	return &UpdateResult{
		RevisedDocument: revisedDoc,
		TouchedChapters: touched,
		WholeGame:       scope == graph.WholeGame,
		FallbackContext: bundle.Fallback,
	}, nil
}

// diffChapters compares the original and revised documents chapter by
// chapter. Added or removed chapter numbers force whole-game scope; body
// changes (title, summary or any owned list) mark the chapter touched.
func diffChapters(original, revised *parser.Document) (touched []int, wholeGame bool) {
	origByNum := make(map[int]parser.Chapter, len(original.Chapters))
	for _, ch := range original.Chapters {
		origByNum[ch.Number] = ch
	}
	revByNum := make(map[int]parser.Chapter, len(revised.Chapters))
	for _, ch := range revised.Chapters {
		revByNum[ch.Number] = ch
	}

	for num := range origByNum {
		if _, ok := revByNum[num]; !ok {
			return nil, true
		}
	}
	for num, rev := range revByNum {
		orig, ok := origByNum[num]
		if !ok {
			return nil, true
		}
		if chapterChanged(orig, rev) {
			touched = append(touched, num)
		}
	}
	slices.Sort(touched)
	return touched, false
}

func chapterChanged(a, b parser.Chapter) bool {
	return a.Title != b.Title ||
		a.Summary != b.Summary ||
		!slices.Equal(a.Goals, b.Goals) ||
		!slices.Equal(a.Locations, b.Locations) ||
		!slices.Equal(a.Events, b.Events) ||
		!slices.Equal(a.Challenges, b.Challenges)
}
