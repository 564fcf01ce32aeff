package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramClient posts messages and photo references to a chat through the
// bot API. One attempt per call; the engine owns retries.
type TelegramClient struct {
	url    string
	client *http.Client
}

func NewTelegramClient(url string) *TelegramClient {
	return &TelegramClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendPhotoRequest struct {
	ChatID int64  `json:"chat_id"`
	Photo  string `json:"photo"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

func (c *TelegramClient) SendPhoto(ctx context.Context, chatID int64, photoRef string) (int64, error) {
	return c.send(ctx, "/sendPhoto", sendPhotoRequest{
		ChatID: chatID,
		Photo:  photoRef,
	})
}

// SendMessage broadcasts a text message to a chat and returns the message ID
// workers reply to.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	return c.send(ctx, "/sendMessage", sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	})
}

func (c *TelegramClient) send(ctx context.Context, path string, payload any) (int64, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(reqBody))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return 0, fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if !sr.OK {
		return 0, fmt.Errorf("send rejected: %s", sr.Description)
	}
	if sr.Result.MessageID == 0 {
		return 0, fmt.Errorf("missing message_id in response body=%q", string(body))
	}

	return sr.Result.MessageID, nil
}
