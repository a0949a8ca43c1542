package pipeline

import (
	"context"

	"streamcave/internal/helix"
	"streamcave/internal/logging"
	"streamcave/internal/player"
	"streamcave/internal/restart"
	"streamcave/internal/retry"
)

// RunDiagnoser decides, for each player exit, whether the stream actually
// went down or whether it is still live and worth retrying, per §4.6. It
// drains exits strictly sequentially: the channel buffer is the only
// queueing, since the search API is the one shared rate-limited resource
// and sequential use needs no separate limiter (§4.6, §8 property 6).
func RunDiagnoser(ctx context.Context, exits <-chan player.Exit, client *helix.Client, token string, retries chan<- string, restartCh chan<- restart.Code, log *logging.Logger) {
	for {
		var exit player.Exit
		select {
		case <-ctx.Done():
			return
		case v, ok := <-exits:
			if !ok {
				return
			}
			exit = v
		}
		diagnoseOne(ctx, exit, client, token, retries, restartCh, log)
	}
}

func diagnoseOne(ctx context.Context, exit player.Exit, client *helix.Client, token string, retries chan<- string, restartCh chan<- restart.Code, log *logging.Logger) {
	if exit.Result.Err != nil {
		log.Printf("error starting stream for %s: %v", exit.Login, exit.Result.Err)
		return
	}
	if exit.Result.Success {
		return
	}

	b := retry.New()
	for {
		status, err := client.SearchChannel(ctx, token, exit.Login)
		if err != nil {
			log.Printf("error %v, re-attempting search for %s's stream status", err, exit.Login)
			if werr := retry.Wait(ctx, b); werr != nil {
				return
			}
			continue
		}

		switch status.StatusCode {
		case 200:
			if status.Result == nil {
				log.Printf("unable to find %s when checking stream status after player closed", exit.Login)
				return
			}
			if status.Result.IsLive {
				select {
				case retries <- exit.Login:
				case <-ctx.Done():
				}
			}
			return
		case 401:
			select {
			case restartCh <- restart.Credential:
			case <-ctx.Done():
			}
			return
		default:
			log.Printf("unexpected response checking %s's stream status: %d %s", exit.Login, status.StatusCode, status.Body)
			return
		}
	}
}
