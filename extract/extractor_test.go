package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/ybkang/storygraph/llm"
)

// scriptedProvider replays canned replies in order.
type scriptedProvider struct {
	replies []string
	calls   int
}

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.calls >= len(p.replies) {
		return nil, errors.New("no scripted reply left")
	}
	reply := p.replies[p.calls]
	p.calls++
	return &llm.ChatResponse{Content: reply}, nil
}

const validPayload = `{
	"game_title": "Escape the Mine",
	"chapters": [{"number": 1, "title": "The Collapse", "summary": "s", "goals": [], "locations": [], "events": [], "challenges": []}],
	"characters": [],
	"participations": []
}`

func TestLLMExtractorFirstTry(t *testing.T) {
	p := &scriptedProvider{replies: []string{validPayload}}
	ex := NewLLMExtractor(p, "test-model", nil)

	res, err := ex.Extract(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.GameTitle != "Escape the Mine" || len(res.Chapters) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1", p.calls)
	}
}

func TestLLMExtractorRepairsOnce(t *testing.T) {
	p := &scriptedProvider{replies: []string{"garbage reply", "```json\n" + validPayload + "\n```"}}
	ex := NewLLMExtractor(p, "test-model", nil)

	res, err := ex.Extract(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Extract after repair: %v", err)
	}
	if len(res.Chapters) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if p.calls != 2 {
		t.Errorf("provider called %d times, want 2", p.calls)
	}
}

func TestLLMExtractorGivesUpAfterRepair(t *testing.T) {
	p := &scriptedProvider{replies: []string{"garbage", "still garbage", validPayload}}
	ex := NewLLMExtractor(p, "test-model", nil)

	_, err := ex.Extract(context.Background(), "doc")
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
	if p.calls != 2 {
		t.Errorf("provider called %d times, want exactly 2", p.calls)
	}
}

func TestFallbackExtractor(t *testing.T) {
	doc := `# Escape the Mine

#### Chapter 1: The Collapse
Kai wakes in the dark.

**Goals:**
- Find a light source

**Events:**
- The tunnel collapses
- Kai finds the old lift

#### Kai
- **Role:** Protagonist
- **Background:** A stranded miner.

#### Mirra
- **Role:** mentor
- **Background:** Voice on the radio.
`
	res, err := NewFallbackExtractor().Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.GameTitle != "Escape the Mine" {
		t.Errorf("game title = %q", res.GameTitle)
	}
	if len(res.Chapters) != 1 || len(res.Chapters[0].Events) != 2 {
		t.Fatalf("chapters = %+v", res.Chapters)
	}
	if len(res.Characters) != 2 {
		t.Fatalf("characters = %+v", res.Characters)
	}
	if res.Characters[0].Role != "Protagonist" || res.Characters[1].Role != "Guardian" {
		t.Errorf("roles not normalized: %+v", res.Characters)
	}
	// The protagonist is linked to every event of the document.
	if len(res.Participations) != 2 {
		t.Fatalf("participations = %+v", res.Participations)
	}
	for _, p := range res.Participations {
		if p.Character != "Kai" {
			t.Errorf("participation for %q, want Kai", p.Character)
		}
	}
}

func TestFallbackExtractorPropagatesParseErrors(t *testing.T) {
	_, err := NewFallbackExtractor().Extract(context.Background(), "no structure here")
	if err == nil {
		t.Fatal("expected error for unparseable document")
	}
}
