// Package ai produces assistant replies through an OpenAI-compatible chat completion API.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/logger"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// ChatCompletionClient is the subset of openai.Client the generator needs.
type ChatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds a client for cfg. An empty BaseURL keeps the public OpenAI endpoint.
func NewOpenAIClient(cfg config.AIConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// Generator turns a system prompt and a user message into a reply.
type Generator struct {
	client ChatCompletionClient
	model  string
	log    *logger.Logger
}

func NewGenerator(client ChatCompletionClient, model string, log *logger.Logger) *Generator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Generator{client: client, model: model, log: log.WithComponent("ai")}
}

// Generate asks the model for a single reply. It makes exactly one request;
// retrying is left to the caller.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.log.Warn("Chat completion failed", "model", g.model, "error", err.Error())
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}

	g.log.Debug("Chat completion succeeded",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return reply, nil
}
