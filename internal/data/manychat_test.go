package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestManyChatSender_Send(t *testing.T) {
	var got manychatSendRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fb/sending/sendContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "success"}`))
	}))
	defer server.Close()

	sender := NewManyChatSender("token-123", 5*time.Second)
	sender.client.SetBaseURL(server.URL)

	if err := sender.Send(context.Background(), "sub-42", "Keep it up!"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if gotAuth != "Bearer token-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if got.SubscriberID != "sub-42" {
		t.Errorf("subscriber = %q", got.SubscriberID)
	}
	if len(got.Data.Content.Messages) != 1 || got.Data.Content.Messages[0].Text != "Keep it up!" {
		t.Errorf("messages = %+v", got.Data.Content.Messages)
	}
	if got.Data.Content.Messages[0].Type != "text" {
		t.Errorf("message type = %q", got.Data.Content.Messages[0].Type)
	}
}

func TestManyChatSender_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "error"}`))
	}))
	defer server.Close()

	sender := NewManyChatSender("token", 5*time.Second)
	sender.client.SetBaseURL(server.URL)

	if err := sender.Send(context.Background(), "sub-1", "hi"); err == nil {
		t.Fatal("expected error for non-success api status")
	}
}

func TestManyChatSender_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	sender := NewManyChatSender("token", 5*time.Second)
	sender.client.SetBaseURL(server.URL)

	if err := sender.Send(context.Background(), "sub-1", "hi"); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}
