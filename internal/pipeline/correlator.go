package pipeline

import (
	"context"

	"streamcave/internal/config"
	"streamcave/internal/logging"
	"streamcave/internal/player"
	"streamcave/internal/schedule"
	"streamcave/internal/statusserver"
)

// resolveQuality applies §4.4's override rule: a stream's quality-override
// whose profile name matches the active global profile wins; otherwise the
// global profile's own quality is used.
func resolveQuality(cfg schedule.StreamConfig, global config.Profile) uint16 {
	for _, override := range cfg.QualityOverrides {
		if override.Profile == global.Name {
			return override.Quality
		}
	}
	return global.Quality
}

// RunCorrelator holds the authoritative in-memory table of stream configs
// and turns live/retry notifications into play requests, per §4.4. It is a
// single goroutine selecting over all three inputs; the table is plain,
// unlocked, private state, safe only because nothing else ever touches it.
func RunCorrelator(ctx context.Context, configs <-chan schedule.StreamConfig, live <-chan string, retries <-chan string, global config.Profile, play chan<- player.Request, log *logging.Logger, rec *statusserver.Recorder) {
	table := make(map[string]schedule.StreamConfig)

	emit := func(login string) {
		quality := global.Quality
		if cfg, ok := table[login]; ok {
			quality = resolveQuality(cfg, global)
		}
		select {
		case play <- player.Request{Login: login, Quality: quality}:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case cfg, ok := <-configs:
			if !ok {
				configs = nil
				continue
			}
			table[cfg.Login] = cfg
			rec.SetTableSize(len(table))
			log.Printf("added %s to correlation table", cfg.Login)

		case login, ok := <-live:
			if !ok {
				live = nil
				continue
			}
			emit(login)

		case login, ok := <-retries:
			if !ok {
				retries = nil
				continue
			}
			emit(login)
		}

		if configs == nil && live == nil && retries == nil {
			return
		}
	}
}
