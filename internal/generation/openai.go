package generation

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// OpenAIProvider implements Provider using an OpenAI-compatible chat
// completions API (OpenAI, Azure OpenAI, local gateways).
type OpenAIProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(client *http.Client, baseURL, apiKey, model string) *OpenAIProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAIProvider{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey, model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

// Complete sends the prompt as a system and a user message. Image
// attachments travel as image_url parts; other binaries are described in
// the text only.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	var user any = prompt.User
	var images []openAIPart
	for _, in := range prompt.Inline {
		if strings.HasPrefix(in.MediaType, "image/") {
			images = append(images, openAIPart{Type: "image_url", ImageURL: &openAIImageURL{
				URL: "data:" + in.MediaType + ";base64," + base64.StdEncoding.EncodeToString(in.Data),
			}})
		}
	}
	if len(images) > 0 {
		user = append([]openAIPart{{Type: "text", Text: prompt.User}}, images...)
	}

	body := map[string]any{
		"model": p.model,
		"messages": []openAIMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: user},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	if err := postJSON(ctx, p.client, p.baseURL+"/chat/completions", headers, body, &result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", errors.GenerationFailed("no choices in response").Build()
	}
	choice := result.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", errors.GenerationRejected("generation stopped by content filter").Build()
	}
	if choice.Message.Refusal != "" {
		return "", errors.GenerationRejected("model refused: " + choice.Message.Refusal).Build()
	}
	if choice.FinishReason == "length" {
		return "", errors.GenerationFailed("model output truncated at token limit").Build()
	}
	return choice.Message.Content, nil
}
