package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

const manychatBaseURL = "https://api.manychat.com"

// ManyChatSender delivers replies through the ManyChat sending API
type ManyChatSender struct {
	client *resty.Client
}

// manychatSendRequest is the sendContent request body
type manychatSendRequest struct {
	SubscriberID string       `json:"subscriber_id"`
	Data         manychatData `json:"data"`
	MessageTag   string       `json:"message_tag"`
}

type manychatData struct {
	Version string          `json:"version"`
	Content manychatContent `json:"content"`
}

type manychatContent struct {
	Messages []manychatMessage `json:"messages"`
}

type manychatMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// manychatResponse is the minimal response envelope
type manychatResponse struct {
	Status string `json:"status"`
}

// NewManyChatSender creates a new ManyChat sender
func NewManyChatSender(apiToken string, timeout time.Duration) *ManyChatSender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(manychatBaseURL).
		SetAuthToken(apiToken).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &ManyChatSender{client: client}
}

// Send pushes one text message to a subscriber
func (s *ManyChatSender) Send(ctx context.Context, identity domain.Identity, text string) error {
	body := manychatSendRequest{
		SubscriberID: string(identity),
		Data: manychatData{
			Version: "v2",
			Content: manychatContent{
				Messages: []manychatMessage{{Type: "text", Text: text}},
			},
		},
		MessageTag: "ACCOUNT_UPDATE",
	}

	var result manychatResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/fb/sending/sendContent")
	if err != nil {
		return fmt.Errorf("manychat send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("manychat send: status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Status != "success" {
		return fmt.Errorf("manychat send: api status %q", result.Status)
	}
	return nil
}
