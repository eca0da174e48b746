package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaProvider talks to a local Ollama runtime. Its "credential" is the
// base URL; when none is configured the conventional localhost default is
// used, which is why the catalog marks its credential optional.
type OllamaProvider struct {
	Client *http.Client
}

func NewOllamaProvider(client *http.Client) *OllamaProvider {
	return &OllamaProvider{Client: client}
}

func (p *OllamaProvider) ID() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (p *OllamaProvider) Call(ctx context.Context, credential, modelID string, msgs []Message, system string) (*Reply, error) {
	baseURL := credential
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	payload := ollamaChatRequest{Model: modelID, Stream: false}
	if system != "" {
		payload.Messages = append(payload.Messages, Message{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, msgs...)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.ID(), Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Provider: p.ID(), Status: resp.StatusCode, Msg: bestErrorMessage(raw)}
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &MalformedResponseError{Provider: p.ID(), Msg: err.Error()}
	}

	return &Reply{Text: parsed.Message.Content, Provider: p.ID(), Model: modelID}, nil
}
