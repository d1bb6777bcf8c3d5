// Package extract turns raw document text into a structured graph payload,
// either through an LLM provider or through a deterministic parser-backed
// fallback. The JSON contract between prompt and engine lives here.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrSchema reports a payload that failed structural validation. The
// extractor retries once with a repair prompt before giving up.
var ErrSchema = errors.New("extraction payload failed schema validation")

// Result is a validated, normalized extraction payload ready for the
// upsert engine.
type Result struct {
	GameTitle      string          `json:"game_title"`
	Chapters       []Chapter       `json:"chapters"`
	Characters     []Character     `json:"characters"`
	Participations []Participation `json:"participations"`
}

// Chapter is one extracted chapter with its owned lists.
type Chapter struct {
	Number     int      `json:"number"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Goals      []string `json:"goals"`
	Locations  []string `json:"locations"`
	Events     []string `json:"events"`
	Challenges []string `json:"challenges"`
}

// Character is one extracted character.
type Character struct {
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Traits []string `json:"traits"`
}

// Participation links a character name to an event description.
type Participation struct {
	Character string `json:"character"`
	Event     string `json:"event"`
}

func (c Chapter) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Number, validation.Required, validation.Min(1)),
		validation.Field(&c.Title, validation.Required),
	)
}

func (c Character) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
	)
}

func (p Participation) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Character, validation.Required),
		validation.Field(&p.Event, validation.Required),
	)
}

// Decode parses raw JSON into a Result and validates it structurally.
// Validation failures wrap ErrSchema so callers can trigger a repair pass.
func Decode(raw []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if len(res.Chapters) == 0 {
		return nil, fmt.Errorf("%w: no chapters in payload", ErrSchema)
	}
	for i, ch := range res.Chapters {
		if err := ch.validate(); err != nil {
			return nil, fmt.Errorf("%w: chapter %d: %v", ErrSchema, i+1, err)
		}
	}
	for i, c := range res.Characters {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("%w: character %d: %v", ErrSchema, i+1, err)
		}
	}
	for i, p := range res.Participations {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: participation %d: %v", ErrSchema, i+1, err)
		}
	}
	res.normalize()
	return &res, nil
}

// roleBuckets maps loose role descriptions onto the canonical buckets.
var roleBuckets = []struct {
	bucket   string
	keywords []string
}{
	{"Protagonist", []string{"protagonist", "hero", "main character", "player character", "주인공"}},
	{"Antagonist", []string{"antagonist", "villain", "enemy", "악당", "적"}},
	{"Guardian", []string{"guardian", "mentor", "protector", "guide", "수호자", "조력자"}},
}

// NormalizeRole folds a free-form role string into one of the canonical
// buckets, defaulting to Side Character for anything unrecognized. An empty
// role stays empty so upserts do not blank a stored value.
func NormalizeRole(role string) string {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	for _, b := range roleBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				return b.bucket
			}
		}
	}
	return "Side Character"
}

// normalize trims strings, drops empties, dedupes list items, sorts
// chapters by number, and folds roles into canonical buckets.
func (r *Result) normalize() {
	r.GameTitle = strings.TrimSpace(r.GameTitle)

	for i := range r.Chapters {
		ch := &r.Chapters[i]
		ch.Title = strings.TrimSpace(ch.Title)
		ch.Summary = strings.TrimSpace(ch.Summary)
		ch.Goals = cleanList(ch.Goals)
		ch.Locations = cleanList(ch.Locations)
		ch.Events = cleanList(ch.Events)
		ch.Challenges = cleanList(ch.Challenges)
	}
	for i := 0; i < len(r.Chapters); i++ {
		for j := i + 1; j < len(r.Chapters); j++ {
			if r.Chapters[j].Number < r.Chapters[i].Number {
				r.Chapters[i], r.Chapters[j] = r.Chapters[j], r.Chapters[i]
			}
		}
	}

	seen := make(map[string]int)
	kept := r.Characters[:0]
	for _, c := range r.Characters {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		c.Role = NormalizeRole(c.Role)
		c.Traits = cleanList(c.Traits)
		key := strings.ToLower(strings.Join(strings.Fields(c.Name), " "))
		if idx, ok := seen[key]; ok {
			if kept[idx].Role == "" {
				kept[idx].Role = c.Role
			}
			kept[idx].Traits = cleanList(append(kept[idx].Traits, c.Traits...))
			continue
		}
		seen[key] = len(kept)
		kept = append(kept, c)
	}
	r.Characters = kept

	pkept := r.Participations[:0]
	pseen := make(map[string]bool)
	for _, p := range r.Participations {
		p.Character = strings.TrimSpace(p.Character)
		p.Event = strings.TrimSpace(p.Event)
		if p.Character == "" || p.Event == "" {
			continue
		}
		key := strings.ToLower(p.Character) + "\x00" + p.Event
		if pseen[key] {
			continue
		}
		pseen[key] = true
		pkept = append(pkept, p)
	}
	r.Participations = pkept
}

func cleanList(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CountEntities totals the nodes a result will produce, for the audit log.
func (r *Result) CountEntities() int {
	n := len(r.Chapters) + len(r.Characters)
	locs := make(map[string]bool)
	for _, ch := range r.Chapters {
		n += len(ch.Goals) + len(ch.Events) + len(ch.Challenges)
		for _, l := range ch.Locations {
			locs[strings.ToLower(l)] = true
		}
	}
	return n + len(locs)
}

// CountRelationships totals the edges a result will produce, for the audit
// log. Chapter ownership edges are implicit in the relational layout and
// not counted.
func (r *Result) CountRelationships() int {
	n := len(r.Participations)
	if len(r.Chapters) > 1 {
		n += len(r.Chapters) - 1
	}
	for _, ch := range r.Chapters {
		n += len(ch.Locations)
	}
	return n
}
