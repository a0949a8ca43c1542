package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"streamcave/internal/config"
	"streamcave/internal/schedule"
	"streamcave/internal/token"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func wsURL(httpURL string) string {
	if len(httpURL) >= 5 && httpURL[:5] == "https" {
		return "wss" + httpURL[5:]
	}
	return "ws" + httpURL[4:]
}

func writeUserData(t *testing.T, dir string) {
	t.Helper()
	data := token.UserData{AccessToken: "tok123", Login: "somestreamer", UserID: "1"}
	if err := data.Save(filepath.Join(dir, "user-data.json")); err != nil {
		t.Fatal(err)
	}
}

func TestRunStopsCleanlyOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	writeUserData(t, dir)

	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"login": "somestreamer", "user_id": "1", "expires_in": 3600,
		})
	}))
	t.Cleanup(validateSrv.Close)

	wsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(wsSrv.Close)

	helixSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(helixSrv.Close)

	cfg := Config{
		Settings:        config.New(dir),
		Streams:         schedule.New(),
		ClientID:        "test-client",
		StreamingSite:   "https://www.twitch.tv/",
		TokenDir:        dir,
		WebSocketURL:    wsURL(wsSrv.URL),
		SubscriptionURL: helixSrv.URL,
		SearchURL:       helixSrv.URL,
		ValidateURL:     validateSrv.URL,
		HTTPClient:      http.DefaultClient,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned %v, want nil after clean shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunRebuildsGenerationOnTransientRestart(t *testing.T) {
	dir := t.TempDir()
	writeUserData(t, dir)

	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"login": "somestreamer", "user_id": "1", "expires_in": 3600,
		})
	}))
	t.Cleanup(validateSrv.Close)

	connectCount := 0
	wsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connectCount++
		if connectCount == 1 {
			// Close immediately without a welcome frame: triggers restart-1.
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(wsSrv.Close)

	helixSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(helixSrv.Close)

	cfg := Config{
		Settings:        config.New(dir),
		Streams:         schedule.New(),
		ClientID:        "test-client",
		StreamingSite:   "https://www.twitch.tv/",
		TokenDir:        dir,
		WebSocketURL:    wsURL(wsSrv.URL),
		SubscriptionURL: helixSrv.URL,
		SearchURL:       helixSrv.URL,
		ValidateURL:     validateSrv.URL,
		HTTPClient:      http.DefaultClient,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	select {
	case <-errCh:
	case <-time.After(6 * time.Second):
		t.Fatal("Run did not return")
	}

	if connectCount < 2 {
		t.Errorf("expected at least 2 websocket connections (one per generation), got %d", connectCount)
	}
}

func TestRunReacquiresTokenOnCredentialRestart(t *testing.T) {
	dir := t.TempDir()
	writeUserData(t, dir)

	validateCount := 0
	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validateCount++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"login": "somestreamer", "user_id": "1", "expires_in": 3600,
		})
	}))
	t.Cleanup(validateSrv.Close)

	wsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		welcome := `{"metadata":{"message_type":"session_welcome"},"payload":{"session":{"id":"cred000"}}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(welcome)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(wsSrv.Close)

	// Schedule has one entry, so the WebSocket Session will try to
	// subscribe once it sees a session id; the first subscribe attempt
	// gets a 401, raising restart-2.
	subscribeCount := 0
	helixSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subscribeCount++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	t.Cleanup(helixSrv.Close)

	var streams schedule.Streams
	streams.Add(schedule.StreamConfig{Login: "somestreamer", BroadcasterID: 1})

	cfg := Config{
		Settings:        config.New(dir),
		Streams:         streams,
		ClientID:        "test-client",
		StreamingSite:   "https://www.twitch.tv/",
		TokenDir:        dir,
		WebSocketURL:    wsURL(wsSrv.URL),
		SubscriptionURL: helixSrv.URL,
		SearchURL:       helixSrv.URL,
		ValidateURL:     validateSrv.URL,
		HTTPClient:      http.DefaultClient,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	select {
	case <-errCh:
	case <-time.After(6 * time.Second):
		t.Fatal("Run did not return")
	}

	if validateCount < 2 {
		t.Errorf("expected token validation to be retried after credential restart, got %d calls", validateCount)
	}
}

// TestRunFailsWhenTokenFileMalformed ensures a corrupt on-disk token is a
// hard error, not a silently-retried one, matching token.Acquire's
// contract.
func TestRunFailsWhenTokenFileMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "user-data.json"), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Settings:    config.New(dir),
		Streams:     schedule.New(),
		TokenDir:    dir,
		ValidateURL: "http://unused.invalid",
		HTTPClient:  http.DefaultClient,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := Run(ctx, cfg); err == nil {
		t.Error("expected Run to return an error for a malformed token file")
	}
}
