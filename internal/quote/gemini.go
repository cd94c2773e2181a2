package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel    = "gemini-2.5-flash"
)

// GeminiClient implements LLM over the Generative Language REST API.
type GeminiClient struct {
	APIKey   string
	Model    string
	Endpoint string
	HTTP     *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		APIKey:   apiKey,
		Model:    defaultGeminiModel,
		Endpoint: defaultGeminiEndpoint,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent    `json:"system_instruction,omitempty"`
	Contents          []geminiContent   `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) generate(ctx context.Context, req geminiRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.Endpoint, c.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.APIKey)
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode, b)
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: decode: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: no response text generated")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func (c *GeminiClient) GenerateStructured(ctx context.Context, systemInstruction, prompt string, schema json.RawMessage) ([]byte, error) {
	text, err := c.generate(ctx, geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}, Role: "user"}},
		GenerationConfig:  &generationConfig{ResponseMimeType: "application/json", ResponseSchema: schema},
	})
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (c *GeminiClient) GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}, Role: "user"}},
	}
	if systemInstruction != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}}
	}
	return c.generate(ctx, req)
}
