package graph

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ybkang/storygraph/extract"
	"github.com/ybkang/storygraph/store"
)

func newTestUpserter(t *testing.T) (*Upserter, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewUpserter(s, nil), s
}

func twoChapterResult() *extract.Result {
	return &extract.Result{
		GameTitle: "Escape the Mine",
		Chapters: []extract.Chapter{
			{
				Number: 1, Title: "The Collapse", Summary: "Kai is trapped.",
				Goals:      []string{"Find a light source"},
				Locations:  []string{"Planet Veyra", "Collapsed Mine"},
				Events:     []string{"The tunnel collapses"},
				Challenges: []string{"Unstable ceilings"},
			},
			{
				Number: 2, Title: "The Watcher Below", Summary: "Something follows.",
				Goals:     []string{"Evade the watcher"},
				Locations: []string{"Flooded Gallery"},
				Events:    []string{"Kai evades the watcher"},
			},
		},
		Characters: []extract.Character{
			{Name: "Kai", Role: "Protagonist", Traits: []string{"stubborn"}},
			{Name: "The Watcher", Role: "Antagonist"},
		},
		Participations: []extract.Participation{
			{Character: "Kai", Event: "The tunnel collapses"},
			{Character: "The Watcher", Event: "Kai evades the watcher"},
		},
	}
}

func TestApplyAndStats(t *testing.T) {
	u, _ := newTestUpserter(t)
	ctx := context.Background()

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	stats, err := u.Stats(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chapters != 2 || stats.Characters != 2 || stats.Locations != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ChapterLinks != 1 {
		t.Errorf("2 chapters should carry 1 link, got %d", stats.ChapterLinks)
	}
	if stats.Participations != 2 {
		t.Errorf("participations = %d, want 2", stats.Participations)
	}
}

func TestApplyIdempotent(t *testing.T) {
	u, _ := newTestUpserter(t)
	ctx := context.Background()

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	first, err := u.Stats(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	second, err := u.Stats(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if *first != *second {
		t.Errorf("re-applying an identical payload changed the graph: %+v vs %+v", first, second)
	}
}

func TestApplyContiguity(t *testing.T) {
	u, _ := newTestUpserter(t)
	ctx := context.Background()

	res := &extract.Result{
		GameTitle: "Gappy",
		Chapters: []extract.Chapter{
			{Number: 1, Title: "One"},
			{Number: 3, Title: "Three"},
		},
	}
	if err := u.Apply(ctx, "", res, WholeGame); !errors.Is(err, ErrChapterGap) {
		t.Fatalf("err = %v, want ErrChapterGap", err)
	}

	dup := &extract.Result{
		GameTitle: "Doubled",
		Chapters: []extract.Chapter{
			{Number: 1, Title: "One"},
			{Number: 1, Title: "One again"},
		},
	}
	if err := u.Apply(ctx, "", dup, WholeGame); !errors.Is(err, ErrChapterGap) {
		t.Fatalf("err = %v, want ErrChapterGap", err)
	}
}

func TestApplyShrinkRemovesStaleChapters(t *testing.T) {
	u, s := newTestUpserter(t)
	ctx := context.Background()

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	shrunk := twoChapterResult()
	shrunk.Chapters = shrunk.Chapters[:1]
	shrunk.Participations = shrunk.Participations[:1]
	if err := u.Apply(ctx, "", shrunk, WholeGame); err != nil {
		t.Fatalf("Apply shrunk: %v", err)
	}

	game, err := s.GetGameByTitle(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("GetGameByTitle: %v", err)
	}
	chapters, err := s.ChaptersForGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("ChaptersForGame: %v", err)
	}
	if len(chapters) != 1 || chapters[0].Number != 1 {
		t.Fatalf("chapters after shrink = %+v", chapters)
	}

	// Chapter 2's location has no link left and must be pruned.
	locs, err := s.LocationsForGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("LocationsForGame: %v", err)
	}
	for _, l := range locs {
		if l.Name == "Flooded Gallery" {
			t.Errorf("orphaned location survived: %+v", l)
		}
	}
}

func TestApplyChapterScope(t *testing.T) {
	u, s := newTestUpserter(t)
	ctx := context.Background()

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	revised := twoChapterResult()
	revised.Chapters[1].Goals = []string{"Befriend the watcher"}
	revised.Chapters[1].Events = []string{"Kai calms the watcher"}
	revised.Participations = []extract.Participation{
		{Character: "Kai", Event: "The tunnel collapses"},
		{Character: "Kai", Event: "Kai calms the watcher"},
	}
	if err := u.Apply(ctx, "", revised, Scope{ChapterNumber: 2}); err != nil {
		t.Fatalf("scoped Apply: %v", err)
	}

	game, err := s.GetGameByTitle(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("GetGameByTitle: %v", err)
	}
	ch1, err := s.GetChapter(ctx, game.ID, 1)
	if err != nil {
		t.Fatalf("GetChapter 1: %v", err)
	}
	goals1, err := s.GoalsForChapter(ctx, ch1.ID)
	if err != nil {
		t.Fatalf("GoalsForChapter: %v", err)
	}
	if len(goals1) != 1 || goals1[0] != "Find a light source" {
		t.Errorf("chapter 1 was touched by a chapter-2 scope: %v", goals1)
	}

	ch2, err := s.GetChapter(ctx, game.ID, 2)
	if err != nil {
		t.Fatalf("GetChapter 2: %v", err)
	}
	goals2, err := s.GoalsForChapter(ctx, ch2.ID)
	if err != nil {
		t.Fatalf("GoalsForChapter: %v", err)
	}
	if len(goals2) != 1 || goals2[0] != "Befriend the watcher" {
		t.Errorf("chapter 2 not converged: %v", goals2)
	}
}

func TestApplyCharacterCaseVariants(t *testing.T) {
	u, s := newTestUpserter(t)
	ctx := context.Background()

	res := twoChapterResult()
	res.Characters = append(res.Characters, extract.Character{Name: "KAI", Role: ""})
	if err := u.Apply(ctx, "", res, WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	game, err := s.GetGameByTitle(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("GetGameByTitle: %v", err)
	}
	chars, err := s.CharactersForGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("CharactersForGame: %v", err)
	}
	if len(chars) != 2 {
		t.Errorf("case variants produced %d characters, want 2: %+v", len(chars), chars)
	}
}

func TestApplyProtagonistFallback(t *testing.T) {
	u, s := newTestUpserter(t)
	ctx := context.Background()

	res := twoChapterResult()
	res.Participations = nil
	if err := u.Apply(ctx, "", res, WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	game, err := s.GetGameByTitle(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("GetGameByTitle: %v", err)
	}
	chars, err := s.CharactersByNormNames(ctx, game.ID, []string{"kai"})
	if err != nil || len(chars) != 1 {
		t.Fatalf("resolving Kai: %v %v", chars, err)
	}
	events, err := s.EventsForCharacter(ctx, chars[0].ID)
	if err != nil {
		t.Fatalf("EventsForCharacter: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("protagonist should join every event, got %d", len(events))
	}
}

func TestApplyLocationNesting(t *testing.T) {
	u, s := newTestUpserter(t)
	ctx := context.Background()

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	game, err := s.GetGameByTitle(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("GetGameByTitle: %v", err)
	}
	locs, err := s.LocationsByNormNames(ctx, game.ID, []string{"collapsed mine"})
	if err != nil || len(locs) != 1 {
		t.Fatalf("resolving mine: %v %v", locs, err)
	}
	outer, err := s.OuterLocations(ctx, locs[0].ID)
	if err != nil {
		t.Fatalf("OuterLocations: %v", err)
	}
	if len(outer) != 1 || outer[0].Name != "Planet Veyra" {
		t.Errorf("mine should sit on Planet Veyra, got %+v", outer)
	}
}

func TestApplyDropsStaleParticipations(t *testing.T) {
	u, s := newTestUpserter(t)
	ctx := context.Background()

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Same chapters and events, but The Watcher no longer participates.
	revised := twoChapterResult()
	revised.Participations = []extract.Participation{
		{Character: "Kai", Event: "The tunnel collapses"},
	}
	if err := u.Apply(ctx, "", revised, WholeGame); err != nil {
		t.Fatalf("Apply revised: %v", err)
	}

	stats, err := u.Stats(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Participations != 1 {
		t.Errorf("stale participation survived re-extraction: got %d edges, want 1", stats.Participations)
	}

	game, err := s.GetGameByTitle(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("GetGameByTitle: %v", err)
	}
	watchers, err := s.CharactersByNormNames(ctx, game.ID, []string{"the watcher"})
	if err != nil || len(watchers) != 1 {
		t.Fatalf("resolving The Watcher: %v %v", watchers, err)
	}
	events, err := s.EventsForCharacter(ctx, watchers[0].ID)
	if err != nil {
		t.Fatalf("EventsForCharacter: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("dropped participant still joined to events: %+v", events)
	}
}

func TestApplyScopedDropsStaleParticipations(t *testing.T) {
	u, _ := newTestUpserter(t)
	ctx := context.Background()

	if err := u.Apply(ctx, "", twoChapterResult(), WholeGame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Chapter-2 scope drops The Watcher's edge there but must leave
	// chapter 1's edges alone.
	revised := twoChapterResult()
	revised.Participations = []extract.Participation{
		{Character: "Kai", Event: "The tunnel collapses"},
		{Character: "Kai", Event: "Kai evades the watcher"},
	}
	if err := u.Apply(ctx, "", revised, Scope{ChapterNumber: 2}); err != nil {
		t.Fatalf("scoped Apply: %v", err)
	}

	stats, err := u.Stats(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Participations != 2 {
		t.Errorf("participations after scoped re-extraction = %d, want 2", stats.Participations)
	}
}

func TestApplySkipsUnknownParticipant(t *testing.T) {
	u, _ := newTestUpserter(t)
	ctx := context.Background()

	res := twoChapterResult()
	res.Participations = append(res.Participations, extract.Participation{
		Character: "Nobody", Event: "The tunnel collapses",
	})
	if err := u.Apply(ctx, "", res, WholeGame); err != nil {
		t.Fatalf("unknown participant should be skipped, not fatal: %v", err)
	}
	stats, err := u.Stats(ctx, "Escape the Mine")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Participations != 2 {
		t.Errorf("participations = %d, want 2", stats.Participations)
	}
}
