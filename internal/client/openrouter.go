package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
)

// OpenRouterClient calls the OpenRouter chat completions API.
type OpenRouterClient struct {
	baseURL string
	req     *requester
}

func NewOpenRouterClient(baseURL, apiKey string, timeout time.Duration) *OpenRouterClient {
	return &OpenRouterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		req: &requester{
			name:       "openrouter",
			httpClient: newHTTPClient(timeout),
			headers: map[string]string{
				"Authorization": "Bearer " + apiKey,
				"HTTP-Referer":  "https://lakeb2b.com",
				"X-Title":       "LakeB2B Pitch Deck Creator",
			},
		},
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations,omitempty"`
}

// Completion is the first answer of a chat completion. Search backed models
// also return the pages they cited.
type Completion struct {
	Content   string
	Citations []string
}

// Completer is implemented by OpenRouterClient.
type Completer interface {
	Complete(ctx context.Context, model string, messages []ChatMessage, maxTokens int) (Completion, error)
}

var _ Completer = (*OpenRouterClient)(nil)

func (c *OpenRouterClient) Complete(ctx context.Context, model string, messages []ChatMessage, maxTokens int) (Completion, error) {
	var resp chatResponse
	err := c.req.doJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}, &resp)
	if err != nil {
		return Completion{}, err
	}

	if len(resp.Choices) == 0 {
		return Completion{}, pipeline.Permanent(errors.New("openrouter returned no choices"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Completion{}, pipeline.Permanent(fmt.Errorf("model %s returned an empty answer", model))
	}
	return Completion{Content: content, Citations: resp.Citations}, nil
}
