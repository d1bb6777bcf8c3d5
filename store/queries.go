package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// GetGameByTitle looks a game up by exact title. Returns sql.ErrNoRows when
// absent; callers translate that into their own sentinel.
func (s *Store) GetGameByTitle(ctx context.Context, title string) (*Game, error) {
	var g Game
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, created_at, updated_at
		FROM games WHERE title = ?
	`, title).Scan(&g.ID, &g.Title, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGames returns every game ordered by title.
func (s *Store) ListGames(ctx context.Context) ([]Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, created_at, updated_at
		FROM games ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// ChaptersForGame returns the game's chapters in number order.
func (s *Store) ChaptersForGame(ctx context.Context, gameID int64) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, number, title, summary
		FROM chapters WHERE game_id = ? ORDER BY number
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChapters(rows)
}

// GetChapter looks up one chapter by game and number.
func (s *Store) GetChapter(ctx context.Context, gameID int64, number int) (*Chapter, error) {
	var c Chapter
	err := s.db.QueryRowContext(ctx, `
		SELECT id, game_id, number, title, summary
		FROM chapters WHERE game_id = ? AND number = ?
	`, gameID, number).Scan(&c.ID, &c.GameID, &c.Number, &c.Title, &c.Summary)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanChapters(rows *sql.Rows) ([]Chapter, error) {
	var chapters []Chapter
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.GameID, &c.Number, &c.Title, &c.Summary); err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

func (s *Store) chapterChildDescriptions(ctx context.Context, table string, chapterID int64) ([]string, error) {
	if !chapterChildTables[table] {
		return nil, fmt.Errorf("unknown chapter child table %q", table)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT description FROM %s WHERE chapter_id = ? ORDER BY id", table), chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// GoalsForChapter returns the chapter's goal descriptions.
func (s *Store) GoalsForChapter(ctx context.Context, chapterID int64) ([]string, error) {
	return s.chapterChildDescriptions(ctx, "goals", chapterID)
}

// EventsForChapter returns the chapter's event descriptions.
func (s *Store) EventsForChapter(ctx context.Context, chapterID int64) ([]string, error) {
	return s.chapterChildDescriptions(ctx, "events", chapterID)
}

// ChallengesForChapter returns the chapter's challenge descriptions.
func (s *Store) ChallengesForChapter(ctx context.Context, chapterID int64) ([]string, error) {
	return s.chapterChildDescriptions(ctx, "challenges", chapterID)
}

// LocationsForChapter returns the locations linked to one chapter.
func (s *Store) LocationsForChapter(ctx context.Context, chapterID int64) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.game_id, l.name, l.norm_name, l.description
		FROM locations l
		JOIN chapter_locations cl ON cl.location_id = l.id
		WHERE cl.chapter_id = ?
		ORDER BY l.name
	`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocations(rows)
}

// LocationsForGame returns every location of a game.
func (s *Store) LocationsForGame(ctx context.Context, gameID int64) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, name, norm_name, description
		FROM locations WHERE game_id = ? ORDER BY name
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocations(rows)
}

// LocationsByNormNames resolves locations of a game by normalized name.
func (s *Store) LocationsByNormNames(ctx context.Context, gameID int64, normNames []string) ([]Location, error) {
	if len(normNames) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(normNames)-1) + "?"
	args := make([]any, 0, len(normNames)+1)
	args = append(args, gameID)
	for _, n := range normNames {
		args = append(args, n)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, game_id, name, norm_name, description
		FROM locations WHERE game_id = ? AND norm_name IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocations(rows)
}

func scanLocations(rows *sql.Rows) ([]Location, error) {
	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.GameID, &l.Name, &l.NormName, &l.Description); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// OuterLocations returns the locations the given location sits on or within.
func (s *Store) OuterLocations(ctx context.Context, locationID int64) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.game_id, l.name, l.norm_name, l.description
		FROM locations l
		JOIN location_nesting n ON n.outer_id = l.id
		WHERE n.inner_id = ?
		ORDER BY l.name
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocations(rows)
}

// CharactersForGame returns every character of a game.
func (s *Store) CharactersForGame(ctx context.Context, gameID int64) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, name, norm_name, role, traits
		FROM characters WHERE game_id = ? ORDER BY name
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharacters(rows)
}

// CharactersByNormNames resolves characters of a game by normalized name.
func (s *Store) CharactersByNormNames(ctx context.Context, gameID int64, normNames []string) ([]Character, error) {
	if len(normNames) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(normNames)-1) + "?"
	args := make([]any, 0, len(normNames)+1)
	args = append(args, gameID)
	for _, n := range normNames {
		args = append(args, n)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, game_id, name, norm_name, role, traits
		FROM characters WHERE game_id = ? AND norm_name IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharacters(rows)
}

func scanCharacters(rows *sql.Rows) ([]Character, error) {
	var characters []Character
	for rows.Next() {
		var c Character
		var traitsRaw string
		if err := rows.Scan(&c.ID, &c.GameID, &c.Name, &c.NormName, &c.Role, &traitsRaw); err != nil {
			return nil, err
		}
		c.Traits = unmarshalTraits(traitsRaw)
		characters = append(characters, c)
	}
	return characters, rows.Err()
}

// EventsForCharacter returns the events a character participates in, joined
// back to their chapters, newest chapter first.
func (s *Store) EventsForCharacter(ctx context.Context, characterID int64) ([]CharacterEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.description, c.number, c.title
		FROM events e
		JOIN participations p ON p.event_id = e.id
		JOIN chapters c ON c.id = e.chapter_id
		WHERE p.character_id = ?
		ORDER BY c.number DESC, e.id
	`, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CharacterEvent
	for rows.Next() {
		var ev CharacterEvent
		if err := rows.Scan(&ev.Description, &ev.ChapterNumber, &ev.ChapterTitle); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ParticipantsForChapter returns the characters participating in any event
// of the chapter.
func (s *Store) ParticipantsForChapter(ctx context.Context, chapterID int64) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ch.id, ch.game_id, ch.name, ch.norm_name, ch.role, ch.traits
		FROM characters ch
		JOIN participations p ON p.character_id = ch.id
		JOIN events e ON e.id = p.event_id
		WHERE e.chapter_id = ?
		ORDER BY ch.name
	`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharacters(rows)
}

// ChaptersForCharacter returns the chapters in which a character
// participates in at least one event, in number order.
func (s *Store) ChaptersForCharacter(ctx context.Context, characterID int64) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.game_id, c.number, c.title, c.summary
		FROM chapters c
		JOIN events e ON e.chapter_id = c.id
		JOIN participations p ON p.event_id = e.id
		WHERE p.character_id = ?
		ORDER BY c.number
	`, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChapters(rows)
}

// ChaptersForLocation returns the chapters linked to a location, in number
// order.
func (s *Store) ChaptersForLocation(ctx context.Context, locationID int64) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.game_id, c.number, c.title, c.summary
		FROM chapters c
		JOIN chapter_locations cl ON cl.chapter_id = c.id
		WHERE cl.location_id = ?
		ORDER BY c.number
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChapters(rows)
}

// Chain returns the game's FOLLOWED_BY edges in chapter order.
func (s *Store) Chain(ctx context.Context, gameID int64) ([]ChapterLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cl.game_id, cl.from_chapter_id, cl.to_chapter_id
		FROM chapter_links cl
		JOIN chapters c ON c.id = cl.from_chapter_id
		WHERE cl.game_id = ?
		ORDER BY c.number
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []ChapterLink
	for rows.Next() {
		var l ChapterLink
		if err := rows.Scan(&l.GameID, &l.FromChapterID, &l.ToChapterID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Stats counts the game's nodes and edges.
func (s *Store) Stats(ctx context.Context, gameID int64) (*GraphStats, error) {
	var st GraphStats
	queries := []struct {
		dst   *int
		query string
	}{
		{&st.Chapters, "SELECT COUNT(*) FROM chapters WHERE game_id = ?"},
		{&st.Goals, "SELECT COUNT(*) FROM goals g JOIN chapters c ON c.id = g.chapter_id WHERE c.game_id = ?"},
		{&st.Events, "SELECT COUNT(*) FROM events e JOIN chapters c ON c.id = e.chapter_id WHERE c.game_id = ?"},
		{&st.Challenges, "SELECT COUNT(*) FROM challenges ch JOIN chapters c ON c.id = ch.chapter_id WHERE c.game_id = ?"},
		{&st.Locations, "SELECT COUNT(*) FROM locations WHERE game_id = ?"},
		{&st.Characters, "SELECT COUNT(*) FROM characters WHERE game_id = ?"},
		{&st.ChapterLinks, "SELECT COUNT(*) FROM chapter_links WHERE game_id = ?"},
		{&st.Participations, "SELECT COUNT(*) FROM participations p JOIN characters ch ON ch.id = p.character_id WHERE ch.game_id = ?"},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, gameID).Scan(q.dst); err != nil {
			return nil, err
		}
	}
	return &st, nil
}
