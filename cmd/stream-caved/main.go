// Package main is the entry point for the stream-cave daemon: it loads
// configuration and the broadcaster schedule, then hands both to the
// Supervisor for the process lifetime, matching stream-caved.rs's run loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"streamcave/internal/config"
	"streamcave/internal/env"
	"streamcave/internal/schedule"
	"streamcave/internal/statusserver"
	"streamcave/internal/supervisor"
)

const (
	clientID           = "uty2ua26tqh28rzn3jketggzu98t6b"
	twitchWebSocketURL = "wss://eventsub.wss.twitch.tv/ws"
	twitchAPIURL       = "https://api.twitch.tv/helix/eventsub/subscriptions"
	streamingSite      = "https://www.twitch.tv/"
	searchChannelAPI   = "https://api.twitch.tv/helix/search/channels"
	validateURL        = "https://id.twitch.tv/oauth2/validate"
)

func main() {
	_ = godotenv.Load()

	configDir := flag.String("config", "", "directory containing config.json, schedule.json, and user-data.json")
	flag.Parse()

	paths := configSearchPaths(*configDir)

	settings, err := config.Load(paths)
	if err != nil {
		log.Fatalf("Unable to create new config file: %v", err)
	}

	streams := schedule.Read(settings.ScheduleDir)
	if err := streams.Validate(); err != nil {
		log.Fatalf("Invalid schedule.json: %v", err)
	}

	rec := statusserver.New()
	statusAddr := env.Get("STREAM_CAVE_STATUS_ADDR", "127.0.0.1:9091")
	statusSrv := statusserver.NewServer(rec).HTTPServer(statusAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("status server listening on %s", statusAddr)
		if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("status server stopped: %v", err)
		}
	}()

	cfg := supervisor.Config{
		Settings:        settings,
		Streams:         streams,
		ClientID:        clientID,
		StreamingSite:   streamingSite,
		TokenDir:        settings.ScheduleDir,
		WebSocketURL:    twitchWebSocketURL,
		SubscriptionURL: twitchAPIURL,
		SearchURL:       searchChannelAPI,
		ValidateURL:     validateURL,
		HTTPClient:      http.DefaultClient,
		StatusRecorder:  rec,
	}

	err = supervisor.Run(ctx, cfg)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if shutdownErr := statusSrv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Printf("status server shutdown error: %v", shutdownErr)
	}

	if err != nil {
		log.Fatalf("supervisor exited with error: %v", err)
	}
	fmt.Println("stream-caved exiting")
}

// configSearchPaths builds the directory search list: an explicit --config
// flag wins outright, otherwise STREAM_CAVE_CONFIG_DIR is used when set,
// falling back to a relative "." when neither is given. Platform config
// directories are not searched.
func configSearchPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	if dirs := env.Get("STREAM_CAVE_CONFIG_DIR", ""); dirs != "" {
		return []string{dirs}
	}
	return []string{"."}
}
