package extract

import (
	"context"
	"fmt"

	"github.com/ybkang/storygraph/parser"
)

// FallbackExtractor builds the graph payload directly from the document's
// markdown structure, with no model in the loop. It covers well-formed
// documents deterministically and backs the engine when no provider is
// configured.
type FallbackExtractor struct{}

// NewFallbackExtractor returns a parser-backed extractor.
func NewFallbackExtractor() *FallbackExtractor {
	return &FallbackExtractor{}
}

// Extract parses the document and maps its structure onto the payload
// schema. Characters come from character sheets; participations pair the
// protagonist with every event, matching how the design documents narrate
// chapters around their lead.
func (f *FallbackExtractor) Extract(ctx context.Context, documentText string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := parser.Parse(documentText)
	if err != nil {
		return nil, fmt.Errorf("fallback extraction: %w", err)
	}

	res := &Result{GameTitle: doc.GameTitle}
	for _, ch := range doc.Chapters {
		res.Chapters = append(res.Chapters, Chapter{
			Number:     ch.Number,
			Title:      ch.Title,
			Summary:    ch.Summary,
			Goals:      ch.Goals,
			Locations:  ch.Locations,
			Events:     ch.Events,
			Challenges: ch.Challenges,
		})
	}

	var protagonist string
	for _, sheet := range doc.Characters {
		role := NormalizeRole(sheet.Role)
		if role == "Protagonist" && protagonist == "" {
			protagonist = sheet.Name
		}
		var traits []string
		if sheet.Background != "" {
			traits = []string{sheet.Background}
		}
		res.Characters = append(res.Characters, Character{
			Name:   sheet.Name,
			Role:   role,
			Traits: traits,
		})
	}

	if protagonist != "" {
		for _, ch := range res.Chapters {
			for _, event := range ch.Events {
				res.Participations = append(res.Participations, Participation{
					Character: protagonist,
					Event:     event,
				})
			}
		}
	}

	res.normalize()
	return res, nil
}
