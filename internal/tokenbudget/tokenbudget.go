// Package tokenbudget counts and caps text against a token budget using
// tiktoken-go. The Task Runner uses it to cap dependency-result summaries
// embedded in a task's prompt trailer and to enforce a cumulative
// output-token ceiling across a task's tool loop.
package tokenbudget

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// Counter counts tokens for one model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewCounter returns a Counter for model, falling back to cl100k_base when
// the model name isn't recognized by tiktoken-go.
func NewCounter(model string) (*Counter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &Counter{encoding: cached, model: model}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tokenbudget: load fallback encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = enc
	cacheMu.Unlock()
	return &Counter{encoding: enc, model: model}, nil
}

// Count returns the number of tokens text encodes to.
func (c *Counter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return len(text) / 4
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CapText truncates text to at most maxTokens tokens, appending a marker
// that states how many tokens were dropped. Never silently truncates — the
// marker is the point.
func (c *Counter) CapText(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	kept := c.encoding.Decode(tokens[:maxTokens])
	dropped := len(tokens) - maxTokens
	return fmt.Sprintf("%s\n…[truncated %d tokens]", kept, dropped)
}
