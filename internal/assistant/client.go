// Package assistant talks to the AI text service used for translation and
// conversation summaries.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatcore/internal/domain/message"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TranscriptSize is how many trailing messages a summary looks at.
const TranscriptSize = 50

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Response string `json:"response"`
}

type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *logger.Logger
}

func NewClient(endpoint, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		log:      log.With(zap.String("component", "assistant")),
	}
}

var languages = map[string]string{
	"he": "Hebrew",
	"en": "English",
}

// Translate returns text in lang. On any failure text comes back unchanged.
func (c *Client) Translate(ctx context.Context, conversationID uuid.UUID, text, lang string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	name, ok := languages[lang]
	if !ok {
		name = "Hebrew"
	}
	out, err := c.complete(ctx, conversationID, []chatMessage{
		{Role: "system", Content: fmt.Sprintf("Translate the following text to %s. Return only the translation, nothing else.", name)},
		{Role: "user", Content: text},
	})
	if err != nil {
		c.log.Warn("translation failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		return text
	}
	return out
}

// Summarize returns a short summary of transcript. On any failure the
// transcript comes back unchanged.
func (c *Client) Summarize(ctx context.Context, conversationID uuid.UUID, transcript string) string {
	if strings.TrimSpace(transcript) == "" {
		return transcript
	}
	out, err := c.complete(ctx, conversationID, []chatMessage{
		{Role: "system", Content: "You are a business assistant. Summarize the following conversation in short, clear bullet points."},
		{Role: "user", Content: "Summarize this conversation:\n\n" + transcript},
	})
	if err != nil {
		c.log.Warn("summary failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		return transcript
	}
	return out
}

func (c *Client) complete(ctx context.Context, conversationID uuid.UUID, msgs []chatMessage) (string, error) {
	if c.endpoint == "" {
		return "", chat_errors.ErrServiceUnavailable
	}
	body, err := json.Marshal(chatRequest{ConversationID: conversationID.String(), Messages: msgs})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d", chat_errors.ErrServiceUnavailable, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) > 0 && out.Choices[0].Message.Content != "" {
		return out.Choices[0].Message.Content, nil
	}
	if out.Response != "" {
		return out.Response, nil
	}
	return "", fmt.Errorf("%w: empty completion", chat_errors.ErrServiceUnavailable)
}

// Transcript formats the trailing text messages as "name: content" lines.
// name resolves a sender's display name.
func Transcript(msgs []message.Message, name func(message.Message) string) string {
	if len(msgs) > TranscriptSize {
		msgs = msgs[len(msgs)-TranscriptSize:]
	}
	var b strings.Builder
	for _, m := range msgs {
		if m.Type != message.TypeText || m.IsDeleted {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name(m))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
