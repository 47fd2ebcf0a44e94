package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RoomRequest describes the room to provision for a consultation.
type RoomRequest struct {
	Name      string
	ExpiresAt time.Time
}

// Room is a provisioned video room.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client provisions private Daily.co rooms over the REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.daily.co/v1"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateRoom provisions a private room with screenshare, chat, and the
// prejoin lobby enabled, expiring shortly after the consultation ends.
func (c *Client) CreateRoom(ctx context.Context, req RoomRequest) (*Room, error) {
	payload := map[string]any{
		"name":    req.Name,
		"privacy": "private",
		"properties": map[string]any{
			"exp":                req.ExpiresAt.Unix(),
			"enable_screenshare": true,
			"enable_chat":        true,
			"enable_prejoin_ui":  true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("video: marshal room request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("video: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("video: create room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("video: create room: status %d: %s", resp.StatusCode, data)
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, fmt.Errorf("video: decode room: %w", err)
	}
	return &room, nil
}

// DeleteRoom tears down a room, for cancelled consultations.
func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/rooms/"+name, nil)
	if err != nil {
		return fmt.Errorf("video: build delete request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("video: delete room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("video: delete room: status %d", resp.StatusCode)
	}
	return nil
}
