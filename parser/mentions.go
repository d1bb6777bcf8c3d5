package parser

import (
	"regexp"
	"strings"
)

// properNounRe matches capitalized word runs, the best-effort signal for
// character and location names in free text.
var properNounRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*\b`)

// mentionStoplist filters common sentence-initial and structural words that
// match the proper-noun pattern but are never entity names.
var mentionStoplist = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true,
	"but": true, "by": true, "chapter": true, "for": true, "from": true,
	"game": true, "goal": true, "goals": true, "he": true, "her": true,
	"his": true, "i": true, "in": true, "it": true, "its": true,
	"location": true, "locations": true, "make": true, "new": true,
	"now": true, "of": true, "on": true, "or": true, "our": true,
	"she": true, "should": true, "so": true, "that": true, "the": true,
	"their": true, "then": true, "there": true, "they": true, "this": true,
	"to": true, "update": true, "we": true, "when": true, "where": true,
	"which": true, "while": true, "who": true, "with": true, "you": true,
	"event": true, "events": true, "challenge": true, "challenges": true,
}

// HarvestMentions returns proper-noun-like tokens from text, filtered by a
// stoplist and deduplicated case-insensitively. This is a heuristic shared
// by character harvesting and retrieval seeding; false positives and
// negatives are acceptable and corrected downstream.
func HarvestMentions(text string) []string {
	seen := make(map[string]bool)
	var mentions []string
	for _, m := range properNounRe.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		key := strings.ToLower(m)
		if key == "" || seen[key] {
			continue
		}
		// Multi-word candidates are kept if any word survives the stoplist.
		words := strings.Fields(key)
		kept := false
		for _, w := range words {
			if !mentionStoplist[w] {
				kept = true
				break
			}
		}
		if !kept {
			continue
		}
		seen[key] = true
		mentions = append(mentions, m)
	}
	return mentions
}
