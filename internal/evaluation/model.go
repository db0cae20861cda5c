package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtran2108/collabo-speak/internal/llm"
)

const evaluationSystemPrompt = `You evaluate one participant's performance in a spoken group conversation.
Respond with a single JSON object and nothing else, using exactly these keys:
"strengths", "improvements", "tips", "objectives" (arrays of short strings),
"words_per_minute", "filler_words_per_minute", "participation_pct",
"duration_seconds" (numbers), and "collaboration" (object with
"contribution", "communication", "responsiveness", each a score from 1 to 4).`

// Model evaluates transcripts directly against an LLM provider instead of
// the hosted evaluation endpoint. Used when no endpoint URL is configured.
type Model struct {
	client llm.Client
}

func NewModel(client llm.Client) *Model {
	return &Model{client: client}
}

func (m *Model) Evaluate(ctx context.Context, transcriptText string) (*Result, error) {
	if strings.TrimSpace(transcriptText) == "" {
		return nil, fmt.Errorf("empty transcript")
	}

	out, err := m.client.CompleteJSON(ctx, evaluationSystemPrompt, transcriptText)
	if err != nil {
		return nil, fmt.Errorf("evaluation completion: %w", err)
	}

	return ParseResult([]byte(out))
}
