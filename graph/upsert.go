// Package graph merges extraction payloads into the stored property graph.
// Re-running an identical extraction leaves the graph unchanged; a changed
// document converges the graph to the new state through set-difference
// cleanup rather than rebuild-from-scratch.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ybkang/storygraph/extract"
	"github.com/ybkang/storygraph/store"
)

// ErrChapterGap reports a payload whose chapter numbers do not form a
// contiguous 1..N sequence. Nothing is written when this fires.
var ErrChapterGap = errors.New("chapter numbers are not contiguous from 1")

// ErrConflict reports a payload row that cannot be placed in the graph,
// such as an empty natural key or a participation naming an unknown
// character. Conflicting rows are skipped, not fatal.
var ErrConflict = errors.New("unresolvable graph reference")

// Scope narrows an Apply pass. The zero value means whole-game: chapters
// absent from the payload are deleted. A ChapterNumber > 0 touches only
// that chapter and leaves its siblings alone.
type Scope struct {
	ChapterNumber int
}

// WholeGame is the scope covering every chapter of the document.
var WholeGame = Scope{}

// Upserter merges extraction payloads into the store.
type Upserter struct {
	store  *store.Store
	logger *slog.Logger
}

// NewUpserter builds an upserter over a store.
func NewUpserter(st *store.Store, logger *slog.Logger) *Upserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Upserter{store: st, logger: logger}
}

// Apply merges a payload into the game's graph. Whole-game scope validates
// chapter contiguity first and removes stale chapters after the merge. Each
// chapter lands in its own transaction so a failure mid-document leaves
// earlier chapters fully merged and later ones untouched; the chapter chain
// and character set are settled in a final transaction.
func (u *Upserter) Apply(ctx context.Context, gameTitle string, res *extract.Result, scope Scope) error {
	if scope.ChapterNumber == 0 {
		if err := validateContiguity(res.Chapters); err != nil {
			return err
		}
	}

	title := gameTitle
	if title == "" {
		title = res.GameTitle
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: game has no title", ErrConflict)
	}

	var gameID int64
	if err := u.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		gameID, err = tx.UpsertGame(title, "")
		return err
	}); err != nil {
		return err
	}

	for _, ch := range res.Chapters {
		if scope.ChapterNumber > 0 && ch.Number != scope.ChapterNumber {
			continue
		}
		if err := u.applyChapter(ctx, gameID, ch); err != nil {
			return fmt.Errorf("merging chapter %d: %w", ch.Number, err)
		}
	}

	return u.store.WithTx(ctx, func(tx *store.Tx) error {
		if scope.ChapterNumber == 0 {
			keep := make([]int, 0, len(res.Chapters))
			for _, ch := range res.Chapters {
				keep = append(keep, ch.Number)
			}
			if err := tx.DeleteChaptersExcept(gameID, keep); err != nil {
				return err
			}
		}
		if err := u.applyCharacters(ctx, tx, gameID, res, scope); err != nil {
			return err
		}
		if err := tx.PruneOrphanLocations(gameID); err != nil {
			return err
		}
		return tx.RebuildChain(gameID)
	})
}

// validateContiguity checks that chapters number exactly 1..N with no gaps
// or duplicates.
func validateContiguity(chapters []extract.Chapter) error {
	seen := make(map[int]bool, len(chapters))
	for _, ch := range chapters {
		if seen[ch.Number] {
			return fmt.Errorf("%w: chapter %d appears twice", ErrChapterGap, ch.Number)
		}
		seen[ch.Number] = true
	}
	for n := 1; n <= len(chapters); n++ {
		if !seen[n] {
			return fmt.Errorf("%w: missing chapter %d of %d", ErrChapterGap, n, len(chapters))
		}
	}
	return nil
}

// applyChapter merges one chapter and everything it owns inside a single
// transaction.
func (u *Upserter) applyChapter(ctx context.Context, gameID int64, ch extract.Chapter) error {
	return u.store.WithTx(ctx, func(tx *store.Tx) error {
		chapterID, err := tx.UpsertChapter(gameID, ch.Number, ch.Title, ch.Summary)
		if err != nil {
			return err
		}

		children := []struct {
			table string
			items []string
		}{
			{"goals", ch.Goals},
			{"events", ch.Events},
			{"challenges", ch.Challenges},
		}
		for _, c := range children {
			for _, item := range c.items {
				if _, err := tx.UpsertChapterChild(c.table, chapterID, item); err != nil {
					return err
				}
			}
			if err := tx.DeleteChapterChildrenExcept(c.table, chapterID, c.items); err != nil {
				return err
			}
		}

		locationIDs := make([]int64, 0, len(ch.Locations))
		byName := make(map[string]int64, len(ch.Locations))
		for _, name := range ch.Locations {
			if strings.TrimSpace(name) == "" {
				u.logger.Warn("skipping location with empty name",
					"chapter", ch.Number, "error", ErrConflict)
				continue
			}
			locID, err := tx.UpsertLocation(gameID, name, "")
			if err != nil {
				return err
			}
			if err := tx.LinkChapterLocation(chapterID, locID); err != nil {
				return err
			}
			locationIDs = append(locationIDs, locID)
			byName[name] = locID
		}
		if err := tx.UnlinkChapterLocationsExcept(chapterID, locationIDs); err != nil {
			return err
		}
		return nestLocations(tx, ch.Locations, byName)
	})
}

// applyCharacters merges the character set and participation edges, and
// falls back to linking the protagonist to every event when the payload
// carries no participations at all. Participation edges within the scope
// are cleared and relinked as a set so edges absent from the current
// payload do not survive a re-extraction.
func (u *Upserter) applyCharacters(ctx context.Context, tx *store.Tx, gameID int64, res *extract.Result, scope Scope) error {
	charIDs := make(map[string]int64, len(res.Characters))
	var protagonist string
	for _, c := range res.Characters {
		if strings.TrimSpace(c.Name) == "" {
			u.logger.Warn("skipping character with empty name", "error", ErrConflict)
			continue
		}
		id, err := tx.UpsertCharacter(gameID, c.Name, c.Role, c.Traits)
		if err != nil {
			return err
		}
		charIDs[store.NormalizeName(c.Name)] = id
		if c.Role == "Protagonist" && protagonist == "" {
			protagonist = c.Name
		}
	}

	participations := res.Participations
	if len(participations) == 0 && protagonist != "" {
		for _, ch := range res.Chapters {
			for _, event := range ch.Events {
				participations = append(participations, extract.Participation{
					Character: protagonist,
					Event:     event,
				})
			}
		}
	}

	if err := tx.ClearParticipations(gameID, scope.ChapterNumber); err != nil {
		return err
	}

	for _, p := range participations {
		charID, ok := charIDs[store.NormalizeName(p.Character)]
		if !ok {
			u.logger.Warn("skipping participation for unknown character",
				"character", p.Character, "error", ErrConflict)
			continue
		}
		eventID, err := tx.EventIDByDescription(gameID, p.Event)
		if err != nil {
			u.logger.Warn("skipping participation for unknown event",
				"character", p.Character, "event", p.Event, "error", ErrConflict)
			continue
		}
		if err := tx.LinkParticipation(charID, eventID); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports node and edge counts for one game.
func (u *Upserter) Stats(ctx context.Context, gameTitle string) (*store.GraphStats, error) {
	game, err := u.store.GetGameByTitle(ctx, gameTitle)
	if err != nil {
		return nil, err
	}
	return u.store.Stats(ctx, game.ID)
}
