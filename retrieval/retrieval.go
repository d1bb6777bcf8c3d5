// Package retrieval assembles a bounded context bundle around an update
// request: it seeds on entity mentions in the request, walks the graph a
// fixed number of hops, and ranks what it finds so the rewrite prompt stays
// small and relevant.
package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/ybkang/storygraph/parser"
	"github.com/ybkang/storygraph/store"
)

// Config bounds the graph walk.
type Config struct {
	// HopLimit is how far from a seed entity the walk may reach. Hop 1 is
	// a chapter directly tied to a mentioned entity; hop 2 its neighbors.
	HopLimit int
	// MaxItems caps the number of chapters in the bundle.
	MaxItems int
	// FallbackChapters is how many recent chapters to return when no
	// mention in the request matches a stored entity.
	FallbackChapters int
}

// DefaultConfig returns the standard walk bounds.
func DefaultConfig() Config {
	return Config{HopLimit: 2, MaxItems: 20, FallbackChapters: 3}
}

// ChapterContext is one chapter in a bundle, with the neighborhood detail
// the rewrite prompt needs.
type ChapterContext struct {
	Chapter      store.Chapter
	Hop          int
	Goals        []string
	Events       []string
	Challenges   []string
	Locations    []string
	Participants []string
}

// Bundle is the ranked context handed to the rewrite step.
type Bundle struct {
	GameTitle  string
	Chapters   []ChapterContext
	Characters []store.Character
	Fallback   bool
}

// Retriever walks the stored graph.
type Retriever struct {
	store  *store.Store
	cfg    Config
	logger *slog.Logger
}

// New builds a retriever with the given bounds. Zero-value bounds fall back
// to the defaults.
func New(st *store.Store, cfg Config, logger *slog.Logger) *Retriever {
	def := DefaultConfig()
	if cfg.HopLimit <= 0 {
		cfg.HopLimit = def.HopLimit
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}
	if cfg.FallbackChapters <= 0 {
		cfg.FallbackChapters = def.FallbackChapters
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: st, cfg: cfg, logger: logger}
}

// Retrieve builds the context bundle for an update request against one
// game. When no mention in the request resolves to a stored character or
// location, the bundle falls back to the most recent chapters so the
// rewrite step always has something to anchor on.
func (r *Retriever) Retrieve(ctx context.Context, gameTitle, request string) (*Bundle, error) {
	game, err := r.store.GetGameByTitle(ctx, gameTitle)
	if err != nil {
		return nil, err
	}

	// Capitalized runs merge adjacent names ("Make Kai" as one mention), so
	// seed on the individual words as well as the full run.
	mentions := parser.HarvestMentions(request)
	seenNorm := make(map[string]bool)
	var normNames []string
	addNorm := func(s string) {
		n := store.NormalizeName(s)
		if n != "" && !seenNorm[n] {
			seenNorm[n] = true
			normNames = append(normNames, n)
		}
	}
	for _, m := range mentions {
		addNorm(m)
		words := strings.Fields(m)
		if len(words) > 1 {
			for _, w := range words {
				addNorm(w)
			}
		}
	}

	seedChars, err := r.store.CharactersByNormNames(ctx, game.ID, normNames)
	if err != nil {
		return nil, err
	}
	seedLocs, err := r.store.LocationsByNormNames(ctx, game.ID, normNames)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{GameTitle: game.Title}

	hops := make(map[int64]int) // chapter id -> best hop
	chapters := make(map[int64]store.Chapter)
	record := func(list []store.Chapter, hop int) {
		for _, c := range list {
			if prev, ok := hops[c.ID]; !ok || hop < prev {
				hops[c.ID] = hop
				chapters[c.ID] = c
			}
		}
	}

	for _, c := range seedChars {
		linked, err := r.store.ChaptersForCharacter(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		record(linked, 1)
	}
	for _, l := range seedLocs {
		linked, err := r.store.ChaptersForLocation(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		record(linked, 1)
	}

	if len(hops) == 0 {
		r.logger.Debug("no entity mention matched, falling back to recency",
			"game", game.Title, "mentions", len(mentions))
		bundle.Fallback = true
		recent, err := r.recentChapters(ctx, game.ID)
		if err != nil {
			return nil, err
		}
		record(recent, 1)
	} else if r.cfg.HopLimit >= 2 {
		// Expand along the chapter chain, one hop per round, up to the
		// configured limit.
		chain, err := r.store.Chain(ctx, game.ID)
		if err != nil {
			return nil, err
		}
		all, err := r.store.ChaptersForGame(ctx, game.ID)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]store.Chapter, len(all))
		for _, c := range all {
			byID[c.ID] = c
		}
		adjacent := make(map[int64][]int64, len(chain))
		for _, link := range chain {
			adjacent[link.FromChapterID] = append(adjacent[link.FromChapterID], link.ToChapterID)
			adjacent[link.ToChapterID] = append(adjacent[link.ToChapterID], link.FromChapterID)
		}
		for hop := 2; hop <= r.cfg.HopLimit; hop++ {
			var frontier []store.Chapter
			for id, h := range hops {
				if h != hop-1 {
					continue
				}
				for _, next := range adjacent[id] {
					if _, ok := hops[next]; !ok {
						frontier = append(frontier, byID[next])
					}
				}
			}
			if len(frontier) == 0 {
				break
			}
			record(frontier, hop)
		}
	}

	ranked := make([]ChapterContext, 0, len(hops))
	for id, hop := range hops {
		ranked = append(ranked, ChapterContext{Chapter: chapters[id], Hop: hop})
	}
	// Closer hops first, then later chapters first: recent story state
	// matters more than early setup.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Hop != ranked[j].Hop {
			return ranked[i].Hop < ranked[j].Hop
		}
		return ranked[i].Chapter.Number > ranked[j].Chapter.Number
	})
	if len(ranked) > r.cfg.MaxItems {
		ranked = ranked[:r.cfg.MaxItems]
	}

	seenChars := make(map[int64]bool)
	for _, c := range seedChars {
		bundle.Characters = append(bundle.Characters, c)
		seenChars[c.ID] = true
	}

	for i := range ranked {
		if err := r.fillChapter(ctx, &ranked[i]); err != nil {
			return nil, err
		}
		participants, err := r.store.ParticipantsForChapter(ctx, ranked[i].Chapter.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range participants {
			ranked[i].Participants = append(ranked[i].Participants, p.Name)
			if !seenChars[p.ID] {
				bundle.Characters = append(bundle.Characters, p)
				seenChars[p.ID] = true
			}
		}
	}
	bundle.Chapters = ranked
	return bundle, nil
}

func (r *Retriever) fillChapter(ctx context.Context, cc *ChapterContext) error {
	var err error
	if cc.Goals, err = r.store.GoalsForChapter(ctx, cc.Chapter.ID); err != nil {
		return err
	}
	if cc.Events, err = r.store.EventsForChapter(ctx, cc.Chapter.ID); err != nil {
		return err
	}
	if cc.Challenges, err = r.store.ChallengesForChapter(ctx, cc.Chapter.ID); err != nil {
		return err
	}
	locs, err := r.store.LocationsForChapter(ctx, cc.Chapter.ID)
	if err != nil {
		return err
	}
	for _, l := range locs {
		cc.Locations = append(cc.Locations, l.Name)
	}
	return nil
}

// recentChapters returns the last FallbackChapters chapters in number order.
func (r *Retriever) recentChapters(ctx context.Context, gameID int64) ([]store.Chapter, error) {
	all, err := r.store.ChaptersForGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(all) > r.cfg.FallbackChapters {
		all = all[len(all)-r.cfg.FallbackChapters:]
	}
	return all, nil
}

// IsNotFound reports whether err means the game does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
