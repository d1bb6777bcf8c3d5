package extract

import (
	"errors"
	"testing"
)

func TestDecodeValidPayload(t *testing.T) {
	raw := `{
		"game_title": "Escape the Mine",
		"chapters": [
			{"number": 2, "title": "Second", "summary": "", "goals": ["g"], "locations": [], "events": [], "challenges": []},
			{"number": 1, "title": "First", "summary": "s", "goals": ["g", "g", " "], "locations": ["Mine"], "events": ["e"], "challenges": []}
		],
		"characters": [
			{"name": "Kai", "role": "the heroic protagonist", "traits": ["stubborn"]},
			{"name": "kai", "role": "", "traits": ["loyal"]}
		],
		"participations": [
			{"character": "Kai", "event": "e"},
			{"character": "Kai", "event": "e"}
		]
	}`
	res, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Chapters[0].Number != 1 || res.Chapters[1].Number != 2 {
		t.Errorf("chapters not sorted: %+v", res.Chapters)
	}
	if len(res.Chapters[0].Goals) != 1 {
		t.Errorf("duplicate and blank goals not cleaned: %v", res.Chapters[0].Goals)
	}
	if len(res.Characters) != 1 {
		t.Fatalf("case-variant characters not merged: %+v", res.Characters)
	}
	if res.Characters[0].Role != "Protagonist" {
		t.Errorf("role not folded into bucket: %q", res.Characters[0].Role)
	}
	if len(res.Characters[0].Traits) != 2 {
		t.Errorf("traits not merged: %v", res.Characters[0].Traits)
	}
	if len(res.Participations) != 1 {
		t.Errorf("duplicate participations kept: %+v", res.Participations)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte("not json"))
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

func TestDecodeRejectsEmptyChapters(t *testing.T) {
	_, err := Decode([]byte(`{"chapters": [], "characters": [], "participations": []}`))
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

func TestDecodeRejectsInvalidChapter(t *testing.T) {
	_, err := Decode([]byte(`{"chapters": [{"number": 0, "title": ""}]}`))
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

func TestDecodeRejectsPartialParticipation(t *testing.T) {
	raw := `{
		"chapters": [{"number": 1, "title": "One"}],
		"participations": [{"character": "Kai", "event": ""}]
	}`
	_, err := Decode([]byte(raw))
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]string{
		"the heroic protagonist": "Protagonist",
		"주인공":                   "Protagonist",
		"Villain of the story":   "Antagonist",
		"mentor figure":          "Guardian",
		"shopkeeper":             "Side Character",
		"":                       "",
	}
	for in, want := range cases {
		if got := NormalizeRole(in); got != want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1}\n```":     `{"a": 1}`,
		"```\n{\"a\": 1}\n```":         `{"a": 1}`,
		"Here you go: {\"a\": 1} done": `{"a": 1}`,
		`{"a": 1}`:                     `{"a": 1}`,
	}
	for in, want := range cases {
		if got := ExtractJSON(in); got != want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
