package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Tx is a transaction handle exposing the merge primitives. All writes to
// the graph go through these so that a chapter's nodes and edges land
// atomically.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

// UpsertGame creates or updates a game by title and returns its id. A
// non-empty description enriches the stored one; an empty description never
// blanks an existing value.
func (t *Tx) UpsertGame(title, description string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO games (title, description)
		VALUES (?, ?)
		ON CONFLICT(title) DO UPDATE SET
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE games.description END,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, title, description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting game %q: %w", title, err)
	}
	return id, nil
}

// UpsertChapter creates or updates a chapter keyed by (game, number) and
// returns its id.
func (t *Tx) UpsertChapter(gameID int64, number int, title, summary string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO chapters (game_id, number, title, summary)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(game_id, number) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary
		RETURNING id
	`, gameID, number, title, summary).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting chapter %d: %w", number, err)
	}
	return id, nil
}

// chapterChildTables are the per-chapter description-keyed node tables.
var chapterChildTables = map[string]bool{
	"goals":      true,
	"events":     true,
	"challenges": true,
}

func (t *Tx) upsertChapterChild(table string, chapterID int64, description string) (int64, error) {
	if !chapterChildTables[table] {
		return 0, fmt.Errorf("unknown chapter child table %q", table)
	}
	var id int64
	err := t.tx.QueryRowContext(t.ctx, fmt.Sprintf(`
		INSERT INTO %s (chapter_id, description)
		VALUES (?, ?)
		ON CONFLICT(chapter_id, description) DO UPDATE SET description = excluded.description
		RETURNING id
	`, table), chapterID, description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting into %s: %w", table, err)
	}
	return id, nil
}

// UpsertChapterChild merges one row into the named chapter-child table
// (goals, events or challenges) and returns its id.
func (t *Tx) UpsertChapterChild(table string, chapterID int64, description string) (int64, error) {
	return t.upsertChapterChild(table, chapterID, description)
}

// UpsertGoal merges one goal under a chapter and returns its id.
func (t *Tx) UpsertGoal(chapterID int64, description string) (int64, error) {
	return t.upsertChapterChild("goals", chapterID, description)
}

// UpsertEvent merges one event under a chapter and returns its id.
func (t *Tx) UpsertEvent(chapterID int64, description string) (int64, error) {
	return t.upsertChapterChild("events", chapterID, description)
}

// UpsertChallenge merges one challenge under a chapter and returns its id.
func (t *Tx) UpsertChallenge(chapterID int64, description string) (int64, error) {
	return t.upsertChapterChild("challenges", chapterID, description)
}

// DeleteChapterChildrenExcept removes rows of one chapter-child table that
// are no longer present in the latest extraction. An empty keep set clears
// the table for that chapter.
func (t *Tx) DeleteChapterChildrenExcept(table string, chapterID int64, keep []string) error {
	if !chapterChildTables[table] {
		return fmt.Errorf("unknown chapter child table %q", table)
	}
	if len(keep) == 0 {
		_, err := t.tx.ExecContext(t.ctx, fmt.Sprintf("DELETE FROM %s WHERE chapter_id = ?", table), chapterID)
		return err
	}
	placeholders := strings.Repeat("?,", len(keep)-1) + "?"
	args := make([]any, 0, len(keep)+1)
	args = append(args, chapterID)
	for _, k := range keep {
		args = append(args, k)
	}
	_, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE chapter_id = ? AND description NOT IN (%s)", table, placeholders), args...)
	return err
}

// UpsertLocation merges a location by normalized name and returns its id.
// The display name of the first mention wins; a non-empty description
// enriches the stored one.
func (t *Tx) UpsertLocation(gameID int64, name, description string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO locations (game_id, name, norm_name, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(game_id, norm_name) DO UPDATE SET
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE locations.description END
		RETURNING id
	`, gameID, name, NormalizeName(name), description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting location %q: %w", name, err)
	}
	return id, nil
}

// LinkChapterLocation records that a chapter takes place at a location.
func (t *Tx) LinkChapterLocation(chapterID, locationID int64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO chapter_locations (chapter_id, location_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, chapterID, locationID)
	return err
}

// UnlinkChapterLocationsExcept removes chapter-location edges not in the
// keep set of location ids. The location nodes themselves survive until
// PruneOrphanLocations runs.
func (t *Tx) UnlinkChapterLocationsExcept(chapterID int64, keep []int64) error {
	if len(keep) == 0 {
		_, err := t.tx.ExecContext(t.ctx, "DELETE FROM chapter_locations WHERE chapter_id = ?", chapterID)
		return err
	}
	placeholders := strings.Repeat("?,", len(keep)-1) + "?"
	args := make([]any, 0, len(keep)+1)
	args = append(args, chapterID)
	for _, id := range keep {
		args = append(args, id)
	}
	_, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(
		"DELETE FROM chapter_locations WHERE chapter_id = ? AND location_id NOT IN (%s)", placeholders), args...)
	return err
}

// NestLocation records that the inner location sits on or within the outer
// one.
func (t *Tx) NestLocation(innerID, outerID int64) error {
	if innerID == outerID {
		return nil
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO location_nesting (inner_id, outer_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, innerID, outerID)
	return err
}

// PruneOrphanLocations deletes locations of a game no chapter links to
// anymore. Nesting edges follow via cascade.
func (t *Tx) PruneOrphanLocations(gameID int64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM locations
		WHERE game_id = ?
		AND id NOT IN (SELECT location_id FROM chapter_locations)
	`, gameID)
	return err
}

// UpsertCharacter merges a character by normalized name and returns its id.
// Role and traits enrich the stored values; empty inputs never blank
// existing non-empty ones.
func (t *Tx) UpsertCharacter(gameID int64, name, role string, traits []string) (int64, error) {
	traitsJSON, err := marshalTraits(traits)
	if err != nil {
		return 0, fmt.Errorf("encoding traits for %q: %w", name, err)
	}
	var id int64
	err = t.tx.QueryRowContext(t.ctx, `
		INSERT INTO characters (game_id, name, norm_name, role, traits)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(game_id, norm_name) DO UPDATE SET
			role = CASE WHEN excluded.role != '' THEN excluded.role ELSE characters.role END,
			traits = CASE WHEN excluded.traits != '[]' THEN excluded.traits ELSE characters.traits END
		RETURNING id
	`, gameID, name, NormalizeName(name), role, traitsJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting character %q: %w", name, err)
	}
	return id, nil
}

// EventIDByDescription resolves an event of a game by its exact
// description. Returns sql.ErrNoRows when no chapter of the game carries
// such an event.
func (t *Tx) EventIDByDescription(gameID int64, description string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT e.id FROM events e
		JOIN chapters c ON c.id = e.chapter_id
		WHERE c.game_id = ? AND e.description = ?
		ORDER BY c.number LIMIT 1
	`, gameID, description).Scan(&id)
	return id, err
}

// ClearParticipations removes every PARTICIPATES_IN edge for events of one
// game, narrowed to a single chapter when chapterNumber > 0. Like the
// chapter chain, participations are cleared and relinked as a set rather
// than patched edge by edge.
func (t *Tx) ClearParticipations(gameID int64, chapterNumber int) error {
	query := `
		DELETE FROM participations WHERE event_id IN (
			SELECT e.id FROM events e
			JOIN chapters c ON c.id = e.chapter_id
			WHERE c.game_id = ?`
	args := []any{gameID}
	if chapterNumber > 0 {
		query += " AND c.number = ?"
		args = append(args, chapterNumber)
	}
	query += ")"
	_, err := t.tx.ExecContext(t.ctx, query, args...)
	return err
}

// LinkParticipation records that a character participates in an event.
func (t *Tx) LinkParticipation(characterID, eventID int64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO participations (character_id, event_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, characterID, eventID)
	return err
}

// DeleteChaptersExcept removes chapters of a game whose numbers are not in
// the keep set. Child nodes and edges cascade away with them.
func (t *Tx) DeleteChaptersExcept(gameID int64, keepNumbers []int) error {
	if len(keepNumbers) == 0 {
		_, err := t.tx.ExecContext(t.ctx, "DELETE FROM chapters WHERE game_id = ?", gameID)
		return err
	}
	placeholders := strings.Repeat("?,", len(keepNumbers)-1) + "?"
	args := make([]any, 0, len(keepNumbers)+1)
	args = append(args, gameID)
	for _, n := range keepNumbers {
		args = append(args, n)
	}
	_, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(
		"DELETE FROM chapters WHERE game_id = ? AND number NOT IN (%s)", placeholders), args...)
	return err
}

// RebuildChain drops every FOLLOWED_BY edge of the game and rebuilds the
// chain from the surviving chapters in number order. The chain is never
// patched in place.
func (t *Tx) RebuildChain(gameID int64) error {
	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM chapter_links WHERE game_id = ?", gameID); err != nil {
		return fmt.Errorf("clearing chapter chain: %w", err)
	}
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT id FROM chapters WHERE game_id = ? ORDER BY number", gameID)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for i := 0; i+1 < len(ids); i++ {
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO chapter_links (game_id, from_chapter_id, to_chapter_id)
			VALUES (?, ?, ?)
		`, gameID, ids[i], ids[i+1]); err != nil {
			return fmt.Errorf("linking chapter chain: %w", err)
		}
	}
	return nil
}
