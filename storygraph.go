// Package storygraph turns LLM-generated game design documents into a
// queryable property graph and keeps that graph consistent through
// narrative change requests.
package storygraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ybkang/storygraph/extract"
	"github.com/ybkang/storygraph/graph"
	"github.com/ybkang/storygraph/llm"
	"github.com/ybkang/storygraph/parser"
	"github.com/ybkang/storygraph/retrieval"
	"github.com/ybkang/storygraph/rewrite"
	"github.com/ybkang/storygraph/store"
)

// Engine is the top-level facade: ingestion, retrieval, updates and graph
// maintenance for any number of games in one store.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	store     *store.Store
	registry  *parser.Registry
	provider  llm.Provider
	extractor extract.Extractor
	retriever *retrieval.Retriever
	upserter  *graph.Upserter
	updater   *rewrite.Orchestrator
}

// New builds an engine from config. When no LLM provider is configured the
// engine runs fully offline on the parser-backed extractor, and Update
// returns ErrLLMUnavailable.
func New(cfg Config) (*Engine, error) {
	logger := newLogger(cfg.LogLevel)

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: parser.NewRegistry(),
		upserter: graph.NewUpserter(st, logger),
		retriever: retrieval.New(st, retrieval.Config{
			HopLimit:         cfg.HopLimit,
			MaxItems:         cfg.MaxContextItems,
			FallbackChapters: cfg.FallbackChapters,
		}, logger),
	}

	if cfg.LLM.Provider != "" {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("configuring llm provider: %w", err)
		}
		e.provider = provider
		e.extractor = extract.NewLLMExtractor(provider, cfg.LLM.Model, logger)
		e.updater = rewrite.New(provider, cfg.LLM.Model, e.retriever, e.extractor, e.upserter, logger)
	} else {
		e.extractor = extract.NewFallbackExtractor()
		logger.Info("no llm provider configured, using parser-backed extraction")
	}

	return e, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the underlying store for direct queries.
func (e *Engine) Store() *store.Store {
	return e.store
}

// IngestFile reads a design document from disk and ingests it. The file
// format is picked by extension; markdown, plain text and PDF are
// supported.
func (e *Engine) IngestFile(ctx context.Context, path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	fp, err := e.registry.Get(ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	text, err := fp.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	return e.IngestText(ctx, text)
}

// IngestText extracts a graph payload from document text and merges it
// into the store under the document's own game title. Returns the game
// title the document resolved to. Re-ingesting an unchanged document is a
// no-op on the graph.
func (e *Engine) IngestText(ctx context.Context, text string) (string, error) {
	doc, err := parser.Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	res, err := e.extractor.Extract(ctx, text)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrSchema):
			return "", fmt.Errorf("%w: %v", ErrExtractionSchema, err)
		case errors.Is(err, llm.ErrUnavailable):
			return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
		}
		return "", err
	}
	if res.GameTitle == "" {
		res.GameTitle = doc.GameTitle
	}

	if err := e.upserter.Apply(ctx, res.GameTitle, res, graph.WholeGame); err != nil {
		switch {
		case errors.Is(err, graph.ErrChapterGap):
			return "", fmt.Errorf("%w: %v", ErrParse, err)
		case errors.Is(err, graph.ErrConflict):
			return "", fmt.Errorf("%w: %v", ErrUpsertConflict, err)
		}
		return "", err
	}

	e.logRun(ctx, res, "whole_game")
	e.logger.Info("document ingested",
		"game", res.GameTitle,
		"chapters", len(res.Chapters),
		"characters", len(res.Characters))
	return res.GameTitle, nil
}

// Update revises a document per a change request and converges the graph
// to the revision. Requires a configured LLM provider.
func (e *Engine) Update(ctx context.Context, gameTitle, documentText, request string) (*rewrite.UpdateResult, error) {
	if e.updater == nil {
		return nil, ErrLLMUnavailable
	}
	result, err := e.updater.Update(ctx, gameTitle, documentText, request)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameTitle)
		case errors.Is(err, rewrite.ErrInvalidRevision):
			return nil, fmt.Errorf("%w: %v", ErrUpdate, err)
		case errors.Is(err, extract.ErrSchema):
			return nil, fmt.Errorf("%w: %v", ErrExtractionSchema, err)
		case errors.Is(err, llm.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
		}
		return nil, err
	}
	return result, nil
}

// Context renders the graph context bundle an update for this request would
// see, without calling the model or changing anything.
func (e *Engine) Context(ctx context.Context, gameTitle, request string) (string, error) {
	bundle, err := e.retriever.Retrieve(ctx, gameTitle, request)
	if err != nil {
		if retrieval.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrGameNotFound, gameTitle)
		}
		return "", err
	}
	return bundle.Format(), nil
}

// Games lists every stored game.
func (e *Engine) Games(ctx context.Context) ([]store.Game, error) {
	return e.store.ListGames(ctx)
}

// Stats reports node and edge counts for one game.
func (e *Engine) Stats(ctx context.Context, gameTitle string) (*store.GraphStats, error) {
	stats, err := e.upserter.Stats(ctx, gameTitle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameTitle)
		}
		return nil, err
	}
	return stats, nil
}

// Reset deletes one game and everything it owns. The confirm flag must be
// true; resets are never implicit.
func (e *Engine) Reset(ctx context.Context, gameTitle string, confirm bool) error {
	if !confirm {
		return ErrResetNotConfirmed
	}
	if err := e.store.DeleteGame(ctx, gameTitle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrGameNotFound, gameTitle)
		}
		return err
	}
	e.logger.Info("game deleted", "game", gameTitle)
	return nil
}

// ResetAll deletes every game in the store. The confirm flag must be true.
func (e *Engine) ResetAll(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrResetNotConfirmed
	}
	if err := e.store.ClearAll(ctx); err != nil {
		return err
	}
	e.logger.Info("store cleared")
	return nil
}

func (e *Engine) logRun(ctx context.Context, res *extract.Result, scope string) {
	game, err := e.store.GetGameByTitle(ctx, res.GameTitle)
	if err != nil {
		e.logger.Warn("skipping extraction audit entry", "error", err)
		return
	}
	run := store.ExtractionRun{
		RunUUID:       uuid.NewString(),
		GameID:        game.ID,
		Scope:         scope,
		Chapters:      len(res.Chapters),
		Entities:      res.CountEntities(),
		Relationships: res.CountRelationships(),
	}
	if err := e.store.LogExtractionRun(ctx, run); err != nil {
		e.logger.Warn("skipping extraction audit entry", "error", err)
	}
}
