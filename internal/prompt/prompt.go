// Package prompt builds the grounding prompt that restricts the model to the
// retrieved context.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/models"
)

// RefusalText is the answer the model is instructed to give when the context
// does not support an answer.
const RefusalText = "I don't know based on the provided sources."

// OffDomainText is the answer the model is shown for questions unrelated to health.
const OffDomainText = "I'm only able to answer health-related questions."

const grounding = `You are a trusted and professional **health assistant**. Your job is to answer only questions related to health or medicine, using only the provided context.

Use the examples below as a guide to your behavior:
- Q: hi
  A: Hello! 👋 I'm your Health Assistant. Feel free to ask me anything about health or medicine.
- Q: what's the weather like in New York?
  A: {{.OffDomain}}
- Q: Who is the president of the US?
  A: {{.OffDomain}}
- Q: What are the symptoms of diabetes?
  A: [A factual answer, based strictly on the context.]

If the answer is not clearly found in the context, respond with:
"{{.Refusal}}"

### Context:
{{.Context}}

### Question:
{{.Question}}

### Answer:
`

var groundingTemplate = template.Must(template.New("grounding").Parse(grounding))

type templateData struct {
	OffDomain string
	Refusal   string
	Context   string
	Question  string
}

// Prompt is a rendered prompt and how many of the retrieved chunks it holds.
type Prompt struct {
	Text    string
	Chunks  int
	Dropped int
}

// Builder renders prompts from a question and ranked chunks.
type Builder struct {
	tokenBudget int
	logger      *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithTokenBudget caps the estimated prompt size in tokens. Lowest-ranked
// chunks are dropped until the prompt fits. Zero means no cap.
func WithTokenBudget(tokens int) Option {
	return func(b *Builder) { b.tokenBudget = tokens }
}

// WithLogger sets a logger for dropped-context warnings.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a prompt builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build fills the grounding template with the chunk texts, in rank order,
// and the question verbatim.
func (b *Builder) Build(question string, chunks []*models.ScoredChunk) (*Prompt, error) {
	n := len(chunks)
	for {
		text, err := render(question, chunks[:n])
		if err != nil {
			return nil, err
		}
		if b.tokenBudget <= 0 || n == 0 || EstimateTokens(text) <= b.tokenBudget {
			if n < len(chunks) {
				b.logger.Warn("dropped context chunks to fit token budget",
					zap.Int("kept", n),
					zap.Int("dropped", len(chunks)-n),
					zap.Int("budget", b.tokenBudget),
				)
			}
			return &Prompt{Text: text, Chunks: n, Dropped: len(chunks) - n}, nil
		}
		n--
	}
}

// Context joins chunk contents with blank lines, most relevant first.
func Context(chunks []*models.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c == nil || c.Chunk == nil {
			continue
		}
		parts = append(parts, c.Chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

func render(question string, chunks []*models.ScoredChunk) (string, error) {
	var sb strings.Builder
	err := groundingTemplate.Execute(&sb, templateData{
		OffDomain: OffDomainText,
		Refusal:   RefusalText,
		Context:   Context(chunks),
		Question:  question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// EstimateTokens approximates the token count of s at four characters per token.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}
