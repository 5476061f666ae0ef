package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"selfie-mailer/internal/utils"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// FallbackCaption replaces the caption when the caption service fails
	FallbackCaption = "Wow, what a stunning photo! 📸✨"
	// EmptyCaption is used when the model answers with no text
	EmptyCaption = "Looking absolutely fabulous! 😎"
)

const captionSystemPrompt = `You are a hilarious, playful AI that makes witty, teasing, and funny comments about selfies.
Be creative, roast people gently (in a fun way), make jokes about their facial expressions, background, pose, or anything funny you notice.
Keep it friendly and entertaining - like a funny friend would tease.
Keep comments to 1-2 short sentences max. Be bold and cheeky!`

const captionUserPrompt = "Make a funny, teasing comment about this selfie. Be creative and witty!"

// Captioner turns an image URL into a short caption. Implementations never
// fail: they return a fallback string instead.
type Captioner interface {
	Caption(ctx context.Context, imageURL string) string
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var errCaptionDisabled = errors.New("caption service not configured")

type OpenAICaptioner struct {
	client    chatCompleter
	model     string
	maxTokens int
}

// NewOpenAICaptioner returns a captioner that always answers with
// FallbackCaption when apiKey is empty.
func NewOpenAICaptioner(apiKey, baseURL, model string, maxTokens int) *OpenAICaptioner {
	c := &OpenAICaptioner{model: model, maxTokens: maxTokens}
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, captions will use the fallback text")
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

func (c *OpenAICaptioner) Caption(ctx context.Context, imageURL string) string {
	text, err := c.complete(ctx, imageURL)
	if err != nil {
		utils.LogError(err, "GenerateCaption")
		return FallbackCaption
	}
	if text == "" {
		return EmptyCaption
	}
	return text
}

func (c *OpenAICaptioner) complete(ctx context.Context, imageURL string) (string, error) {
	if c.client == nil {
		return "", errCaptionDisabled
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: captionSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: captionUserPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
