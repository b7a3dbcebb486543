// Package openai adapts the OpenAI chat-completion API to the Reasoner
// port. Depth levels map to fixed model parameters: low for cheap routing
// calls, medium for critique rationale and plan synthesis, high for
// candidate generation.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

const systemPrompt = "You are a materials science research assistant for aerospace alloy discovery. " +
	"Answer precisely; when asked for JSON, output only raw JSON with no markdown fences."

// depthParams are the fixed collaborator call parameters per depth level.
type depthParams struct {
	temperature float32
	maxTokens   int
}

var paramsByDepth = map[domain.DepthLevel]depthParams{
	domain.DepthLow:    {temperature: 0.0, maxTokens: 256},
	domain.DepthMedium: {temperature: 0.2, maxTokens: 1024},
	domain.DepthHigh:   {temperature: 0.7, maxTokens: 2048},
}

// Reasoner calls the OpenAI API.
type Reasoner struct {
	client *openai.Client
	models map[domain.DepthLevel]string
}

// New creates the adapter. Model names select the latency/quality
// tradeoff per depth.
func New(apiKey, modelLow, modelMedium, modelHigh string) (*Reasoner, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key not configured")
	}
	return &Reasoner{
		client: openai.NewClient(apiKey),
		models: map[domain.DepthLevel]string{
			domain.DepthLow:    modelLow,
			domain.DepthMedium: modelMedium,
			domain.DepthHigh:   modelHigh,
		},
	}, nil
}

// Reason implements ports.Reasoner.
func (r *Reasoner) Reason(ctx context.Context, prompt string, depth domain.DepthLevel) (string, error) {
	params, ok := paramsByDepth[depth]
	if !ok {
		return "", domain.Permanent(fmt.Errorf("unknown depth level %q", depth))
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.models[depth],
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:         params.temperature,
		MaxCompletionTokens: params.maxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.Transient(errors.New("openai returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps API errors onto the gateway's retry taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return domain.Transient(err)
		case apiErr.HTTPStatusCode >= 500:
			return domain.Transient(err)
		default:
			return domain.Permanent(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Connection-level failures are worth retrying.
	return domain.Transient(err)
}
