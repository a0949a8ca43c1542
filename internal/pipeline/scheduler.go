// Package pipeline holds the Scheduler Loader, Event Correlator, Player
// Spawner, and Exit Diagnoser actors described in the specification's
// §4.2, §4.4, §4.5, and §4.6. The WebSocket Session actor lives in
// internal/eventsub; the Supervisor that owns all five lives in
// internal/supervisor.
package pipeline

import (
	"context"

	"streamcave/internal/logging"
	"streamcave/internal/schedule"
)

// RunScheduler seeds the pipeline from streams: for each entry, in
// insertion order, it emits the broadcaster id to ids (for the WebSocket
// Session to subscribe) and then the full config to configs (for the
// Event Correlator's table), per §4.2. Both sends block on backpressure,
// but give way to ctx cancellation so a teardown never deadlocks against a
// downstream actor that has already stopped reading. RunScheduler returns
// once the sequence is exhausted; it does not close either channel, since
// a future schedule-reload extension may resume sending on the same ends.
func RunScheduler(ctx context.Context, streams schedule.Streams, ids chan<- uint32, configs chan<- schedule.StreamConfig, log *logging.Logger) {
	for _, entry := range streams.Entries() {
		select {
		case ids <- entry.BroadcasterID:
		case <-ctx.Done():
			return
		}
		select {
		case configs <- entry:
		case <-ctx.Done():
			return
		}
		log.Printf("seeded %s (broadcaster id %d)", entry.Login, entry.BroadcasterID)
	}
}
