// Package provider wraps the external completion service behind a
// concurrency-limited client.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4"
	defaultTimeout = 60 * time.Second

	// defaultPermits bounds simultaneous in-flight provider calls across
	// the whole process. Callers past the limit block until a slot frees.
	defaultPermits = 3
)

// ErrProvider marks any failure talking to the completion provider.
// Callers must not assume partial responses.
var ErrProvider = errors.New("completion provider")

// Client calls the completion provider's chat endpoint. All calls pass
// through a weighted semaphore so at most Permits requests are in flight
// at once; excess callers wait rather than fail.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	persona    string // optional system instruction prepended to every request
	httpClient *http.Client
	sem        *semaphore.Weighted
}

// Options configures optional Client behavior.
type Options struct {
	BaseURL string
	Model   string
	Persona string
	Permits int64
	Timeout time.Duration
}

// NewClient creates a provider client with the given API key.
func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Permits <= 0 {
		opts.Permits = defaultPermits
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		persona: opts.Persona,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		sem: semaphore.NewWeighted(opts.Permits),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the generated
// text. The configured persona, if any, is prepended as a system message.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var msgs []chatMessage
	if c.persona != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.persona})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})
	return c.chat(ctx, msgs)
}

// Describe asks the provider to read text out of an image. question is
// included alongside the image so the model extracts what the user needs.
func (c *Client) Describe(ctx context.Context, image []byte, mimeType, question string) (string, error) {
	if question == "" {
		question = "Transcribe all text visible in this image."
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	msgs := []chatMessage{{
		Role: "user",
		Content: []map[string]any{
			{"type": "text", "text": question},
			{"type": "image_url", "image_url": map[string]string{"url": dataURI}},
		},
	}}
	return c.chat(ctx, msgs)
}

func (c *Client) chat(ctx context.Context, msgs []chatMessage) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: acquiring slot: %v", ErrProvider, err)
	}
	defer c.sem.Release(1)

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("%w: marshalling request: %v", ErrProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: executing request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: unexpected status %d: %s", ErrProvider, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrProvider, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrProvider)
	}
	return parsed.Choices[0].Message.Content, nil
}
