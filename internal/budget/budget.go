// Package budget estimates token usage for a conversation so callers can
// decide whether a continuation still fits inside a model's context window
// before starting another retry iteration.
package budget

import (
	"sort"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// modelEncodings maps model name prefixes to their tiktoken encoding.
// Unknown models default to cl100k_base. Longer prefixes take priority over
// shorter ones that also match (e.g. "gpt-4o" over "gpt-4"), so entry order
// here does not matter.
var modelEncodings = map[string]string{
	"claude-opus-4":   "cl100k_base",
	"claude-sonnet-4": "cl100k_base",
	"claude-haiku-4":  "cl100k_base",
	"gpt-4-turbo":     "cl100k_base",
	"gpt-4":           "cl100k_base",
	"gpt-4o-mini":     "o200k_base",
	"gpt-4o":          "o200k_base",
}

// modelPrefixesByLength caches modelEncodings' keys sorted longest-first so
// encodingFor always matches the most specific prefix.
var modelPrefixesByLength = sortedPrefixes(modelEncodings)

func sortedPrefixes(m map[string]string) []string {
	prefixes := make([]string, 0, len(m))
	for p := range m {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return prefixes
}

// Estimator counts tokens in conversation messages using cached tiktoken
// encoders. The zero value is ready to use.
type Estimator struct {
	cl100kOnce sync.Once
	cl100kEnc  *tiktoken.Tiktoken
	cl100kErr  error

	o200kOnce sync.Once
	o200kEnc  *tiktoken.Tiktoken
	o200kErr  error
}

// New returns a ready-to-use Estimator.
func New() *Estimator {
	return &Estimator{}
}

// encodingFor returns the tiktoken encoding name for model, defaulting to
// cl100k_base for unrecognised models.
func encodingFor(model string) string {
	lower := strings.ToLower(model)
	for _, prefix := range modelPrefixesByLength {
		if strings.HasPrefix(lower, prefix) {
			return modelEncodings[prefix]
		}
	}
	return "cl100k_base"
}

func (e *Estimator) encoder(model string) (*tiktoken.Tiktoken, error) {
	switch encodingFor(model) {
	case "o200k_base":
		e.o200kOnce.Do(func() {
			e.o200kEnc, e.o200kErr = tiktoken.GetEncoding("o200k_base")
		})
		return e.o200kEnc, e.o200kErr
	default:
		e.cl100kOnce.Do(func() {
			e.cl100kEnc, e.cl100kErr = tiktoken.GetEncoding("cl100k_base")
		})
		return e.cl100kEnc, e.cl100kErr
	}
}

// Estimate returns the approximate token count of messages plus systemPrompt
// under model's encoding. Each message costs 4 framing tokens plus the
// tokens of its role and content, matching the chat completion format every
// supported provider uses; the system prompt costs 4 framing tokens plus its
// own; 3 additional tokens account for reply priming.
func (e *Estimator) Estimate(model, systemPrompt string, messages []inference.Message) (int, error) {
	enc, err := e.encoder(model)
	if err != nil {
		return 0, err
	}

	total := 0
	if systemPrompt != "" {
		total += 4 + len(enc.Encode(systemPrompt, nil, nil))
	}
	for _, m := range messages {
		total += 4
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
	}
	total += 3

	return total, nil
}

// Fits reports whether the estimated token count of req stays within limit.
func (e *Estimator) Fits(model string, req inference.Request, limit int) (bool, error) {
	n, err := e.Estimate(model, req.SystemPrompt, req.Messages)
	if err != nil {
		return false, err
	}
	return n <= limit, nil
}
