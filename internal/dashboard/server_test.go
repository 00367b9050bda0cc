package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ravenbrook/helixmirror/internal/mirror"
)

func startTestServer(t *testing.T, config *Config) *Server {
	t.Helper()
	if config == nil {
		config = &Config{}
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}
	server := NewServer(config)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	time.Sleep(50 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := startTestServer(t, nil)
	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Let the server finish registering the client.
	time.Sleep(50 * time.Millisecond)

	server.Events() <- mirror.Event{
		Kind:   mirror.EventChangeCopied,
		Change: 187048,
		SHA1:   "a1b2c3",
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var ev mirror.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if ev.Kind != mirror.EventChangeCopied || ev.Change != 187048 {
		t.Errorf("received event = %+v", ev)
	}
}

func TestStatusEndpoint(t *testing.T) {
	statusFn := func(ctx context.Context) (*Status, error) {
		return &Status{
			Repo:          "mps",
			Branch:        "master",
			ServerID:      "perforce.ravenbrook.com",
			ChangesCopied: 42,
			LastChange:    187048,
		}, nil
	}
	server := startTestServer(t, &Config{Status: statusFn})

	resp, err := http.Get("http://" + server.GetAddr() + "/status")
	if err != nil {
		t.Fatalf("GET /status error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.Repo != "mps" || status.ServerID != "perforce.ravenbrook.com" {
		t.Errorf("status = %+v", status)
	}
	if status.ChangesCopied != 42 || status.LastChange != 187048 {
		t.Errorf("status counters = %+v", status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
}
