package retrieval

import (
	"fmt"
	"strings"
)

// Format renders the bundle as the deterministic context block the rewrite
// prompt embeds. Chapters appear in ranked order; the same bundle always
// renders the same text.
func (b *Bundle) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Game: %s\n", b.GameTitle)
	if b.Fallback {
		sb.WriteString("(no request entity matched; showing most recent chapters)\n")
	}

	if len(b.Characters) > 0 {
		sb.WriteString("\nCharacters:\n")
		for _, c := range b.Characters {
			line := "- " + c.Name
			if c.Role != "" {
				line += " (" + c.Role + ")"
			}
			if len(c.Traits) > 0 {
				line += ": " + strings.Join(c.Traits, "; ")
			}
			sb.WriteString(line + "\n")
		}
	}

	for _, cc := range b.Chapters {
		fmt.Fprintf(&sb, "\nChapter %d: %s\n", cc.Chapter.Number, cc.Chapter.Title)
		if cc.Chapter.Summary != "" {
			sb.WriteString(cc.Chapter.Summary + "\n")
		}
		writeList(&sb, "Goals", cc.Goals)
		writeList(&sb, "Locations", cc.Locations)
		writeList(&sb, "Events", cc.Events)
		writeList(&sb, "Challenges", cc.Challenges)
		writeList(&sb, "Participants", cc.Participants)
	}
	return sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(label + ":\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
}
