package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrDelivery marks a failed outbound send. The dispatcher logs it and
// drops the entry after one attempt; there is no retry.
var ErrDelivery = errors.New("delivery")

const maxAttachmentSize = 25 << 20 // 25MB

// SendChannelMessage posts content to a channel.
func (c *Client) SendChannelMessage(ctx context.Context, channelID, content string) error {
	return c.post(ctx, "/channels/"+channelID+"/messages", map[string]string{"content": content})
}

// SendDirectMessage posts content to a user's private channel.
func (c *Client) SendDirectMessage(ctx context.Context, userID, content string) error {
	return c.post(ctx, "/users/"+userID+"/messages", map[string]string{"content": content})
}

// RespondEphemeral answers an interaction with a message only the invoking
// user can see.
func (c *Client) RespondEphemeral(ctx context.Context, interactionID, content string) error {
	return c.post(ctx, "/interactions/"+interactionID+"/respond", map[string]any{
		"content":   content,
		"ephemeral": true,
	})
}

// Defer acknowledges an interaction before the real answer is ready,
// satisfying the platform's response deadline.
func (c *Client) Defer(ctx context.Context, interactionID string) error {
	return c.post(ctx, "/interactions/"+interactionID+"/defer", map[string]any{})
}

// RecentMessages returns up to limit messages from a channel, newest first.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching messages: unexpected status %d", resp.StatusCode)
	}

	var msgs []Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return msgs, nil
}

// DownloadAttachment fetches an attachment's bytes from its CDN URL.
func (c *Client) DownloadAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading attachment: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize))
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshalling request: %v", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: unexpected status %d: %s", ErrDelivery, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
