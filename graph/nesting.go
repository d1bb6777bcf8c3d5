package graph

import (
	"strings"

	"github.com/ybkang/storygraph/store"
)

// outerKeywords mark locations that read as large containing places. When a
// chapter names both an outer location and smaller ones, the smaller ones
// are nested on the first outer location listed.
var outerKeywords = []string{
	"planet", "world", "moon", "continent", "island", "행성", "대륙",
}

// innerKeywords mark locations that read as sites within a larger place.
var innerKeywords = []string{
	"facility", "station", "ruins", "mine", "base", "outpost", "lab",
	"laboratory", "temple", "cave", "city", "village", "시설", "기지",
	"유적", "광산", "도시", "마을", "동굴",
}

func matchesAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// nestLocations applies the containment heuristic to one chapter's location
// list: inner-looking locations sit on the first outer-looking one.
func nestLocations(tx *store.Tx, names []string, ids map[string]int64) error {
	var outerID int64
	for _, name := range names {
		if matchesAny(name, outerKeywords) {
			outerID = ids[name]
			break
		}
	}
	if outerID == 0 {
		return nil
	}
	for _, name := range names {
		id := ids[name]
		if id == 0 || id == outerID {
			continue
		}
		if !matchesAny(name, innerKeywords) {
			continue
		}
		if err := tx.NestLocation(id, outerID); err != nil {
			return err
		}
	}
	return nil
}
