// Package tokens measures chat transcripts and trims them to a token budget.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

// Token overhead per message, following the chat-model accounting of
// 3 tokens per message plus 1 for the role.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
)

// DefaultBudget is the transcript budget used when none is configured.
const DefaultBudget = 8000

// Counter counts tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts with a tiktoken encoding.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	return &TiktokenCounter{codec: codec}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return Estimator{}.Count(text)
	}
	return len(ids)
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

func (e Estimator) Count(text string) int {
	per := e.CharsPerToken
	if per <= 0 {
		per = 4.0
	}
	return int(float64(len(text))/per + 0.5)
}

// Budget trims transcripts to at most Max tokens.
type Budget struct {
	Max     int
	counter Counter
}

// NewBudget creates a budget of max tokens using tiktoken, falling back to
// the character estimator when the encoding cannot be loaded.
func NewBudget(max int) *Budget {
	if max <= 0 {
		max = DefaultBudget
	}
	var counter Counter = Estimator{}
	if tc, err := NewTiktokenCounter(); err == nil {
		counter = tc
	}
	return &Budget{Max: max, counter: counter}
}

// NewBudgetWithCounter creates a budget with an explicit counter.
func NewBudgetWithCounter(max int, counter Counter) *Budget {
	return &Budget{Max: max, counter: counter}
}

// MessageTokens returns the cost of a single message including overhead.
func (b *Budget) MessageTokens(msg domain.ChatMessage) int {
	return tokensPerMessage + tokensPerRole + b.counter.Count(msg.Text)
}

// Count returns the cost of the whole transcript.
func (b *Budget) Count(messages []domain.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += b.MessageTokens(msg)
	}
	return total
}

// Trim drops the oldest messages until the transcript fits. The newest
// message is always kept, even when it alone exceeds the budget. It returns
// the kept suffix and how many messages were dropped.
func (b *Budget) Trim(messages []domain.ChatMessage) ([]domain.ChatMessage, int) {
	if len(messages) == 0 {
		return messages, 0
	}

	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := b.MessageTokens(messages[i])
		if i < len(messages)-1 && total+cost > b.Max {
			break
		}
		total += cost
		start = i
	}
	return messages[start:], start
}
