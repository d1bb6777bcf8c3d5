package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ybkang/storygraph/llm"
)

// Extractor produces a structured graph payload from raw document text.
type Extractor interface {
	Extract(ctx context.Context, documentText string) (*Result, error)
}

// maxAttempts bounds how many times the LLM extractor asks for a payload:
// one initial request plus one repair pass.
const maxAttempts = 2

const extractionSystemPrompt = `You are a structured data extractor for game design documents.
You read a narrative design document and emit a single JSON object, nothing else.

The JSON object has this exact shape:
{
  "game_title": "string",
  "chapters": [
    {
      "number": 1,
      "title": "string",
      "summary": "string",
      "goals": ["string"],
      "locations": ["string"],
      "events": ["string"],
      "challenges": ["string"]
    }
  ],
  "characters": [
    {"name": "string", "role": "string", "traits": ["string"]}
  ],
  "participations": [
    {"character": "string", "event": "string"}
  ]
}

Rules:
- Extract ONLY what the document states. Never invent chapters, characters or events.
- Chapter numbers come from the document's chapter headings.
- "role" is the character's narrative role as the document describes it.
- Each participation pairs a character name with the exact text of one event it takes part in.
- Output raw JSON only. No markdown, no commentary.`

// LLMExtractor drives a chat provider with a fixed extraction prompt and
// validates the reply against the payload schema. A malformed reply earns
// one repair pass that feeds the validation error back to the model.
type LLMExtractor struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// NewLLMExtractor builds an extractor on top of a chat provider.
func NewLLMExtractor(provider llm.Provider, model string, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{provider: provider, model: model, logger: logger}
}

// Extract asks the model for a graph payload and validates it. Returns an
// error wrapping ErrSchema when both the initial reply and the repair pass
// fail validation.
func (e *LLMExtractor) Extract(ctx context.Context, documentText string) (*Result, error) {
	messages := []llm.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: "Document:\n\n" + documentText},
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := e.provider.Chat(ctx, llm.ChatRequest{
			Model:          e.model,
			Messages:       messages,
			Temperature:    0,
			ResponseFormat: "json_object",
		})
		if err != nil {
			return nil, fmt.Errorf("extraction chat request: %w", err)
		}

		res, err := Decode([]byte(ExtractJSON(resp.Content)))
		if err == nil {
			e.logger.Debug("extraction payload accepted",
				"attempt", attempt,
				"chapters", len(res.Chapters),
				"characters", len(res.Characters))
			return res, nil
		}
		lastErr = err
		e.logger.Warn("extraction payload rejected",
			"attempt", attempt,
			"error", err)

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: fmt.Sprintf(
				"Your previous reply was rejected: %v\nEmit the corrected JSON object only.", err)},
		)
	}
	return nil, lastErr
}

// ExtractJSON strips markdown code fences from a model reply and trims to
// the outermost JSON object. Models wrap JSON in fences even when told not
// to.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
