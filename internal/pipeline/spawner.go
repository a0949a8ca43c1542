package pipeline

import (
	"context"

	"streamcave/internal/config"
	"streamcave/internal/logging"
	"streamcave/internal/player"
)

// spawnFunc is player.Spawn by default; tests override it to avoid
// depending on a real mpv/streamlink binary being installed.
var spawnFunc = player.Spawn

// RunSpawner converts play requests into running child processes, per
// §4.5. Each request gets its own goroutine so multiple streams can play
// concurrently; RunSpawner itself returns when ctx is canceled or playIn is
// closed, without waiting for in-flight children (they forward their own
// exit and return on their own).
func RunSpawner(ctx context.Context, playIn <-chan player.Request, kind config.Player, streamingSite string, exits chan<- player.Exit, log *logging.Logger) {
	for {
		var req player.Request
		select {
		case <-ctx.Done():
			return
		case v, ok := <-playIn:
			if !ok {
				return
			}
			req = v
		}

		go func() {
			log.Printf("spawning %s player for %s (quality %d)", kind, req.Login, req.Quality)
			result := spawnFunc(kind, streamingSite, req)
			if ctx.Err() != nil {
				log.Printf("dropping exit report for %s, shutting down", req.Login)
				return
			}
			select {
			case exits <- player.Exit{Login: req.Login, Result: result}:
			case <-ctx.Done():
				log.Printf("dropping exit report for %s, shutting down", req.Login)
			}
		}()
	}
}
