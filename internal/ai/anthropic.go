package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type AnthropicProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewAnthropicProvider(client *http.Client) *AnthropicProvider {
	return &AnthropicProvider{
		BaseURL: "https://api.anthropic.com",
		Client:  client,
	}
}

func (p *AnthropicProvider) ID() string { return "anthropic" }

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *AnthropicProvider) Call(ctx context.Context, credential, modelID string, msgs []Message, system string) (*Reply, error) {
	payload := anthropicRequest{
		Model:     modelID,
		MaxTokens: 1024,
		System:    system,
		Messages:  msgs,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", credential)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.ID(), Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Provider: p.ID(), Status: resp.StatusCode, Msg: bestErrorMessage(raw)}
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &MalformedResponseError{Provider: p.ID(), Msg: err.Error()}
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return &Reply{Text: block.Text, Provider: p.ID(), Model: modelID}, nil
		}
	}
	return nil, &MalformedResponseError{Provider: p.ID(), Msg: "no text block in response"}
}
