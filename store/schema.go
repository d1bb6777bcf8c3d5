package store

// schemaSQL is the DDL for the property graph. Nodes live in per-label
// tables keyed by their natural key; edges live in link tables with
// ON DELETE CASCADE so removing a node removes its edges.
const schemaSQL = `
-- Game nodes, the ownership roots
CREATE TABLE IF NOT EXISTS games (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Chapter nodes; HAS_CHAPTER is the game_id column
CREATE TABLE IF NOT EXISTS chapters (
    id INTEGER PRIMARY KEY,
    game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    number INTEGER NOT NULL,
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    UNIQUE(game_id, number)
);

-- FOLLOWED_BY chain, rebuilt as a whole per game
CREATE TABLE IF NOT EXISTS chapter_links (
    game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    from_chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
    to_chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
    UNIQUE(game_id, from_chapter_id)
);

-- Chapter-owned children: HAS_GOAL / CONTAINS_EVENT / PRESENTS_CHALLENGE
CREATE TABLE IF NOT EXISTS goals (
    id INTEGER PRIMARY KEY,
    chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
    description TEXT NOT NULL,
    UNIQUE(chapter_id, description)
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
    description TEXT NOT NULL,
    UNIQUE(chapter_id, description)
);

CREATE TABLE IF NOT EXISTS challenges (
    id INTEGER PRIMARY KEY,
    chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
    description TEXT NOT NULL,
    UNIQUE(chapter_id, description)
);

-- Location nodes, shared across chapters within a game
CREATE TABLE IF NOT EXISTS locations (
    id INTEGER PRIMARY KEY,
    game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    norm_name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    UNIQUE(game_id, norm_name)
);

-- TAKES_PLACE_AT
CREATE TABLE IF NOT EXISTS chapter_locations (
    chapter_id INTEGER NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
    location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    PRIMARY KEY (chapter_id, location_id)
);

-- LOCATED_ON (nesting)
CREATE TABLE IF NOT EXISTS location_nesting (
    inner_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    outer_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    PRIMARY KEY (inner_id, outer_id)
);

-- Character nodes, shared across chapters within a game; HAS_CHARACTER is game_id
CREATE TABLE IF NOT EXISTS characters (
    id INTEGER PRIMARY KEY,
    game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    norm_name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT '',
    traits JSON NOT NULL DEFAULT '[]',
    UNIQUE(game_id, norm_name)
);

-- PARTICIPATES_IN
CREATE TABLE IF NOT EXISTS participations (
    character_id INTEGER NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    PRIMARY KEY (character_id, event_id)
);

-- Extraction run audit log
CREATE TABLE IF NOT EXISTS extraction_runs (
    id INTEGER PRIMARY KEY,
    run_uuid TEXT NOT NULL,
    game_id INTEGER REFERENCES games(id) ON DELETE SET NULL,
    scope TEXT NOT NULL,
    chapters INTEGER NOT NULL DEFAULT 0,
    entities INTEGER NOT NULL DEFAULT 0,
    relationships INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_chapters_game ON chapters(game_id);
CREATE INDEX IF NOT EXISTS idx_goals_chapter ON goals(chapter_id);
CREATE INDEX IF NOT EXISTS idx_events_chapter ON events(chapter_id);
CREATE INDEX IF NOT EXISTS idx_challenges_chapter ON challenges(chapter_id);
CREATE INDEX IF NOT EXISTS idx_locations_game ON locations(game_id);
CREATE INDEX IF NOT EXISTS idx_characters_game ON characters(game_id);
CREATE INDEX IF NOT EXISTS idx_chapter_locations_location ON chapter_locations(location_id);
CREATE INDEX IF NOT EXISTS idx_participations_event ON participations(event_id);
CREATE INDEX IF NOT EXISTS idx_runs_game ON extraction_runs(game_id);
`
