package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAIProvider speaks the chat completions API. BaseURL is overridable for
// OpenAI-compatible gateways.
type OpenAIProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewOpenAIProvider(client *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		BaseURL: "https://api.openai.com",
		Client:  client,
	}
}

func (p *OpenAIProvider) ID() string { return "openai" }

type openAIRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Call(ctx context.Context, credential, modelID string, msgs []Message, system string) (*Reply, error) {
	payload := openAIRequest{Model: modelID}
	if system != "" {
		payload.Messages = append(payload.Messages, Message{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, msgs...)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.ID(), Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Provider: p.ID(), Status: resp.StatusCode, Msg: bestErrorMessage(raw)}
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &MalformedResponseError{Provider: p.ID(), Msg: err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return nil, &MalformedResponseError{Provider: p.ID(), Msg: "no choices in response"}
	}

	return &Reply{Text: parsed.Choices[0].Message.Content, Provider: p.ID(), Model: modelID}, nil
}
