// Package parser converts chapter-structured game design documents into
// ordered chapter records and character sheets, and harvests candidate
// entity mentions for downstream retrieval.
package parser

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNoChapters is returned when the document contains no chapter markers.
	ErrNoChapters = errors.New("parser: no chapter markers found")

	// ErrOrphanList is returned when a labeled sub-list appears before any
	// chapter marker, so it cannot be attributed to a chapter.
	ErrOrphanList = errors.New("parser: sub-list without chapter context")
)

// Document is the parsed form of a game design document.
type Document struct {
	GameTitle  string
	Chapters   []Chapter
	Characters []CharacterSheet
}

// Chapter is one chapter record in document order.
type Chapter struct {
	Number     int
	Title      string
	Summary    string
	Goals      []string
	Locations  []string
	Events     []string
	Challenges []string
}

// CharacterSheet is a character block harvested from the document.
type CharacterSheet struct {
	Name       string
	Role       string
	Background string
}

// Chapter markers: "#### Chapter N: title" in English or Korean.
var chapterMarkerRe = regexp.MustCompile(`(?m)^####\s*(?:Chapter|챕터)\s+(\d+)\s*:\s*(.+)$`)

// Game title: first level-1 markdown heading.
var gameTitleRe = regexp.MustCompile(`(?m)^#\s+([^\n#][^\n]*)$`)

// Labeled sub-lists inside a chapter block. Korean labels are the primary
// document convention; English aliases are accepted for translated documents.
var sublistLabels = []struct {
	field string
	re    *regexp.Regexp
}{
	{"goals", regexp.MustCompile(`(?m)^\*\*(?:목표|Goals?)\s*:\*\*`)},
	{"locations", regexp.MustCompile(`(?m)^\*\*(?:주요 위치|Locations?|Key Locations?)\s*:\*\*`)},
	{"events", regexp.MustCompile(`(?m)^\*\*(?:주요 사건|Events?|Key Events?)\s*:\*\*`)},
	{"challenges", regexp.MustCompile(`(?m)^\*\*(?:도전 과제|Challenges?)\s*:\*\*`)},
}

var anySublistLabelRe = regexp.MustCompile(`(?m)^\*\*(?:목표|Goals?|주요 위치|Locations?|Key Locations?|주요 사건|Events?|Key Events?|도전 과제|Challenges?)\s*:\*\*`)

var bulletRe = regexp.MustCompile(`(?m)^-\s+(.+)$`)

// chapterNameRe recognizes chapter marker titles so the character sheet
// harvester does not mistake them for names.
var chapterNameRe = regexp.MustCompile(`^(?:Chapter|챕터)\s+\d+`)

// Character sheets: "#### Name" followed by role and background lines,
// Korean or English labels, in either adjacent or separated form.
var characterSheetRes = []*regexp.Regexp{
	regexp.MustCompile(`####\s*([^\n#]+)\n\s*-\s*\*\*(?:역할|Role)\s*:\*\*\s*([^\n]+)\n\s*-\s*\*\*(?:배경|Background)\s*:\*\*\s*([^\n]+)`),
	regexp.MustCompile(`####\s*([^\n#]+)[\s\S]*?\*\*(?:역할|Role)\s*:\*\*\s*([^\n]+)[\s\S]*?\*\*(?:배경|Background)\s*:\*\*\s*([^\n]+)`),
}

// Parse converts document text into a Document. It fails with ErrNoChapters
// when no chapter markers exist, and with ErrOrphanList when a labeled
// sub-list appears with no chapter to own it. Missing or whitespace-only
// sub-lists yield empty slices, not errors.
func Parse(text string) (*Document, error) {
	doc := &Document{GameTitle: GameTitle(text)}

	markers := chapterMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(markers) == 0 {
		if anySublistLabelRe.MatchString(text) {
			return nil, ErrOrphanList
		}
		return nil, ErrNoChapters
	}

	// A labeled sub-list before the first chapter marker has no owner.
	if loc := anySublistLabelRe.FindStringIndex(text); loc != nil && loc[0] < markers[0][0] {
		return nil, ErrOrphanList
	}

	seen := make(map[int]bool)
	for i, m := range markers {
		number, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		title := strings.TrimSpace(text[m[4]:m[5]])

		// Duplicate chapter blocks (overview + detail sections) collapse to
		// the first occurrence.
		if seen[number] {
			continue
		}
		seen[number] = true

		start := m[1]
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		block := text[start:end]

		ch := Chapter{
			Number:  number,
			Title:   title,
			Summary: chapterSummary(block),
		}
		for _, label := range sublistLabels {
			items := sublistItems(block, label.re)
			switch label.field {
			case "goals":
				ch.Goals = items
			case "locations":
				ch.Locations = items
			case "events":
				ch.Events = items
			case "challenges":
				ch.Challenges = items
			}
		}
		doc.Chapters = append(doc.Chapters, ch)
	}

	sort.Slice(doc.Chapters, func(i, j int) bool {
		return doc.Chapters[i].Number < doc.Chapters[j].Number
	})

	doc.Characters = characterSheets(text)
	return doc, nil
}

// GameTitle extracts the game title from the first level-1 heading,
// defaulting to "Game" when none exists.
func GameTitle(text string) string {
	if m := gameTitleRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return "Game"
}

// chapterSummary is the free text between the chapter marker and the first
// labeled sub-list (or the end of the block).
func chapterSummary(block string) string {
	end := len(block)
	if loc := anySublistLabelRe.FindStringIndex(block); loc != nil {
		end = loc[0]
	}
	return strings.TrimSpace(block[:end])
}

// sublistItems extracts the bulleted items following a sub-list label.
// The list runs until the next blank-line-separated label or heading.
func sublistItems(block string, labelRe *regexp.Regexp) []string {
	loc := labelRe.FindStringIndex(block)
	if loc == nil {
		return nil
	}
	rest := block[loc[1]:]
	if next := anySublistLabelRe.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	if next := strings.Index(rest, "####"); next >= 0 {
		rest = rest[:next]
	}

	var items []string
	for _, m := range bulletRe.FindAllStringSubmatch(rest, -1) {
		item := strings.TrimSpace(m[1])
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// characterSheets harvests character blocks. Duplicate names keep the first
// (more specific pattern) match.
func characterSheets(text string) []CharacterSheet {
	var sheets []CharacterSheet
	seen := make(map[string]bool)
	for _, re := range characterSheetRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if name == "" || seen[strings.ToLower(name)] {
				continue
			}
			// Chapter markers also start with "####"; skip them.
			if chapterNameRe.MatchString(name) {
				continue
			}
			seen[strings.ToLower(name)] = true
			sheets = append(sheets, CharacterSheet{
				Name:       name,
				Role:       strings.TrimSpace(m[2]),
				Background: strings.TrimSpace(m[3]),
			})
		}
	}
	return sheets
}
