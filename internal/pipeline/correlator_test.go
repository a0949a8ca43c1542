package pipeline

import (
	"context"
	"testing"
	"time"

	"streamcave/internal/config"
	"streamcave/internal/logging"
	"streamcave/internal/player"
	"streamcave/internal/schedule"
)

func TestRunCorrelatorUsesOverrideForMatchingProfile(t *testing.T) {
	configs := make(chan schedule.StreamConfig, 1)
	live := make(chan string, 1)
	retries := make(chan string, 1)
	play := make(chan player.Request, 1)

	global := config.Profile{Name: "normal", Quality: 1080}

	go RunCorrelator(context.Background(), configs, live, retries, global, play, logging.New("correlator-test"), nil)
	t.Cleanup(func() { close(configs); close(live); close(retries) })

	configs <- schedule.StreamConfig{
		Login:            "somestreamer",
		BroadcasterID:    1,
		QualityOverrides: []schedule.QualityOverride{{Profile: "normal", Quality: 480}},
	}
	time.Sleep(10 * time.Millisecond)
	live <- "somestreamer"

	select {
	case req := <-play:
		if req.Login != "somestreamer" || req.Quality != 480 {
			t.Errorf("got %+v, want login=somestreamer quality=480", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for play request")
	}
}

func TestRunCorrelatorUsesGlobalQualityWhenUnknown(t *testing.T) {
	configs := make(chan schedule.StreamConfig, 1)
	live := make(chan string, 1)
	retries := make(chan string, 1)
	play := make(chan player.Request, 1)

	global := config.Profile{Name: "normal", Quality: 720}

	go RunCorrelator(context.Background(), configs, live, retries, global, play, logging.New("correlator-test"), nil)
	t.Cleanup(func() { close(configs); close(live); close(retries) })

	live <- "unknownstreamer"

	select {
	case req := <-play:
		if req.Login != "unknownstreamer" || req.Quality != 720 {
			t.Errorf("got %+v, want login=unknownstreamer quality=720", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for play request")
	}
}

func TestRunCorrelatorHandlesRetryIdenticallyToLive(t *testing.T) {
	configs := make(chan schedule.StreamConfig, 1)
	live := make(chan string, 1)
	retries := make(chan string, 1)
	play := make(chan player.Request, 1)

	global := config.Profile{Name: "normal", Quality: 1080}

	go RunCorrelator(context.Background(), configs, live, retries, global, play, logging.New("correlator-test"), nil)
	t.Cleanup(func() { close(configs); close(live); close(retries) })

	retries <- "retriedstreamer"

	select {
	case req := <-play:
		if req.Login != "retriedstreamer" || req.Quality != 1080 {
			t.Errorf("got %+v, want login=retriedstreamer quality=1080", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for play request")
	}
}

func TestResolveQualityFallsBackWhenNoMatchingOverride(t *testing.T) {
	cfg := schedule.StreamConfig{
		Login:            "x",
		QualityOverrides: []schedule.QualityOverride{{Profile: "theater", Quality: 360}},
	}
	global := config.Profile{Name: "normal", Quality: 1080}

	if q := resolveQuality(cfg, global); q != 1080 {
		t.Errorf("resolveQuality = %d, want 1080", q)
	}
}
