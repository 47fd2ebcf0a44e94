package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateRoom(t *testing.T) {
	var got struct {
		Name       string         `json:"name"`
		Privacy    string         `json:"privacy"`
		Properties map[string]any `json:"properties"`
	}
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rooms" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		_ = json.NewEncoder(w).Encode(Room{Name: got.Name, URL: "https://surecan.daily.co/" + got.Name})
	}))
	defer srv.Close()

	client := NewClient("daily-key", srv.URL)
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	room, err := client.CreateRoom(context.Background(), RoomRequest{
		Name:      "consult-5-1700000000",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if room.URL != "https://surecan.daily.co/consult-5-1700000000" {
		t.Errorf("room url = %q", room.URL)
	}
	if auth != "Bearer daily-key" {
		t.Errorf("authorization = %q", auth)
	}
	if got.Privacy != "private" {
		t.Errorf("privacy = %q, want private", got.Privacy)
	}
	if exp, ok := got.Properties["exp"].(float64); !ok || int64(exp) != expires.Unix() {
		t.Errorf("exp = %v, want %d", got.Properties["exp"], expires.Unix())
	}
	if v, _ := got.Properties["enable_prejoin_ui"].(bool); !v {
		t.Error("prejoin lobby not enabled")
	}
}

func TestCreateRoomAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate-limited"}`))
	}))
	defer srv.Close()

	client := NewClient("daily-key", srv.URL)
	if _, err := client.CreateRoom(context.Background(), RoomRequest{Name: "consult-1-1"}); err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestDeleteRoomToleratesMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("daily-key", srv.URL)
	if err := client.DeleteRoom(context.Background(), "consult-gone"); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
}
