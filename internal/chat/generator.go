package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/starford/verbo/internal/models"
)

// Location is an optional user position passed to the generator.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Request is one generation call.
type Request struct {
	History  []models.ChatMessage `json:"history"`
	Context  string               `json:"context"`
	Study    bool                 `json:"study"`
	Location *Location            `json:"location,omitempty"`
}

// Generator produces the assistant reply for a conversation. Replies may embed
// [NAV:<reference>] directives.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ImageGenerator renders an image for a prompt. It returns the image URL, or
// "" when the model produced none.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// gateway posts JSON to a generation endpoint.
type gateway struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func newGateway(endpoint, token string, timeout time.Duration) gateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return gateway{endpoint: endpoint, token: token, httpClient: &http.Client{Timeout: timeout}}
}

type generateResponse struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

func (g gateway) post(ctx context.Context, payload any) (generateResponse, error) {
	var out generateResponse
	body, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return out, fmt.Errorf("chat: generate: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("chat: read response: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("chat: HTTP %d: %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("chat: HTTP %d: %s", resp.StatusCode, out.Error)
	}
	return out, nil
}

// HTTPGenerator posts requests to a JSON gateway that answers {"text": "..."}.
type HTTPGenerator struct {
	gw gateway
}

// NewHTTPGenerator creates a gateway client.
func NewHTTPGenerator(endpoint, token string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{gw: newGateway(endpoint, token, timeout)}
}

// Generate implements Generator.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	out, err := g.gw.post(ctx, req)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// ImageRequest is the payload of an image generation call.
type ImageRequest struct {
	Prompt string `json:"prompt"`
}

// HTTPImageGenerator posts prompts to a JSON gateway that answers
// {"image": "<url or data URL>"}.
type HTTPImageGenerator struct {
	gw gateway
}

// NewHTTPImageGenerator creates an image gateway client.
func NewHTTPImageGenerator(endpoint, token string, timeout time.Duration) *HTTPImageGenerator {
	return &HTTPImageGenerator{gw: newGateway(endpoint, token, timeout)}
}

// GenerateImage implements ImageGenerator.
func (g *HTTPImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	out, err := g.gw.post(ctx, ImageRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return out.Image, nil
}
