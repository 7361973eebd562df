package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/testutil"
)

func TestBroadcaster_PublishWithoutHub(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	b := NewBroadcaster(manager, testutil.NopLogger())

	// No hub exists, nothing should be created
	b.Publish("ABCDE", dispatch.Message{Type: dispatch.TypeLobbyUpdated})
	if manager.Len() != 0 {
		t.Errorf("Len() = %d after publish, want 0", manager.Len())
	}
}

func TestBroadcaster_Publish(t *testing.T) {
	tests := []struct {
		name     string
		msg      dispatch.Message
		expected string
	}{
		{
			name:     "payload becomes data",
			msg:      dispatch.Message{Type: dispatch.TypeGameUpdated, Payload: []byte(`{"code":"ABCDE"}`)},
			expected: "event: game-updated\ndata: {\"code\":\"ABCDE\"}\n\n",
		},
		{
			name:     "empty payload",
			msg:      dispatch.Message{Type: dispatch.TypeLobbyUpdated},
			expected: "event: lobby-updated\ndata: {}\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewHubManager(testutil.NopLogger())
			defer manager.RemoveHub("ABCDE")
			b := NewBroadcaster(manager, testutil.NopLogger())

			hub := manager.GetOrCreateHub("ABCDE")
			client := NewClient(hub, "observer1")
			hub.Register(client)
			time.Sleep(10 * time.Millisecond)

			b.Publish("ABCDE", tt.msg)

			select {
			case msg := <-client.send:
				if string(msg) != tt.expected {
					t.Errorf("client received %q, want %q", string(msg), tt.expected)
				}
			case <-time.After(100 * time.Millisecond):
				t.Error("client did not receive message")
			}
		})
	}
}

func TestBroadcaster_Close(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	b := NewBroadcaster(manager, testutil.NopLogger())

	manager.GetOrCreateHub("ABCDE")
	b.Close("ABCDE")

	if manager.GetHub("ABCDE") != nil {
		t.Error("hub still exists after Close")
	}

	// Closing an unknown session should not panic
	b.Close("NOPE2")
}

func TestServeSSE_StreamsSnapshotAndBroadcasts(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	hub := manager.GetOrCreateHub("ABCDE")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(w, r, hub, "observer1", func() []Event {
			return []Event{{Name: "lobby-updated", Data: `{"code":"ABCDE"}`}}
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if line == "\n" {
				return strings.Join(lines, "")
			}
			lines = append(lines, line)
		}
	}

	if got := readEvent(); !strings.HasPrefix(got, "event: connected\n") {
		t.Errorf("first event = %q, want connected", got)
	}
	if got := readEvent(); got != "event: lobby-updated\ndata: {\"code\":\"ABCDE\"}\n" {
		t.Errorf("snapshot event = %q", got)
	}

	// Wait for registration before broadcasting
	time.Sleep(10 * time.Millisecond)
	hub.BroadcastEvent("game-updated", "{}")

	if got := readEvent(); got != "event: game-updated\ndata: {}\n" {
		t.Errorf("broadcast event = %q", got)
	}

	manager.RemoveHub("ABCDE")
	if _, err := reader.ReadString('\n'); err == nil {
		t.Error("expected stream to end after hub removal")
	}
}
