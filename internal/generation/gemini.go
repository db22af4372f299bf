package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewGeminiProvider creates a Gemini provider. A nil client uses http.DefaultClient;
// per-call timeouts come from the context.
func NewGeminiProvider(client *http.Client, baseURL, apiKey, model string) *GeminiProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiProvider{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey, model: model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Finish reasons that mean the content policy refused the request.
var geminiPolicyFinish = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
	"RECITATION":         true,
}

// Complete sends the prompt and returns the concatenated text parts.
func (p *GeminiProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	var body geminiRequest
	body.SystemInstruction = geminiContent{Parts: []geminiPart{{Text: prompt.System}}}
	parts := []geminiPart{{Text: prompt.User}}
	for _, in := range prompt.Inline {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: in.MediaType,
			Data:     base64.StdEncoding.EncodeToString(in.Data),
		}})
	}
	body.Contents = []geminiContent{{Role: "user", Parts: parts}}
	body.GenerationConfig.ResponseMimeType = "application/json"

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(p.model))
	var resp geminiResponse
	if err := postJSON(ctx, p.client, endpoint, map[string]string{"x-goog-api-key": p.apiKey}, body, &resp); err != nil {
		return "", err
	}

	if r := resp.PromptFeedback.BlockReason; r != "" {
		return "", errors.GenerationRejected("prompt blocked: " + r).Build()
	}
	if len(resp.Candidates) == 0 {
		return "", errors.GenerationFailed("model returned no candidates").Build()
	}
	c := resp.Candidates[0]
	if geminiPolicyFinish[c.FinishReason] {
		return "", errors.GenerationRejected("generation stopped: " + c.FinishReason).Build()
	}
	if c.FinishReason == "MAX_TOKENS" {
		return "", errors.GenerationFailed("model output truncated at token limit").Build()
	}

	var out strings.Builder
	for _, part := range c.Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}
