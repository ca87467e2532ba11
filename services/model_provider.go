package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ModelProvider is a LocalProvider backed by an on-device completion server
// speaking the llama.cpp style `/completion` JSON API.
type ModelProvider struct {
	baseURL   string
	maxTokens int
	client    *http.Client
}

type completionRequest struct {
	Prompt   string `json:"prompt"`
	NPredict int    `json:"n_predict"`
}

type completionResponse struct {
	Content string `json:"content"`
}

func NewModelProvider(baseURL string, client *http.Client) *ModelProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &ModelProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: 500,
		client:    client,
	}
}

func (p *ModelProvider) Infer(ctx context.Context, q LocalQuery) (LocalOutput, error) {
	body, err := json.Marshal(completionRequest{Prompt: q.Prompt, NPredict: p.maxTokens})
	if err != nil {
		return LocalOutput{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return LocalOutput{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return LocalOutput{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return LocalOutput{}, fmt.Errorf("model server returned http %d", resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return LocalOutput{}, fmt.Errorf("decoding completion: %w", err)
	}
	return LocalOutput{Text: out.Content}, nil
}
