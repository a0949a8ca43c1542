// Package supervisor owns the daemon's process lifecycle: it acquires a
// valid token, launches the five-actor pipeline, and tears down and
// rebuilds the group on a restart signal, per the specification's §4.1.
package supervisor

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"streamcave/internal/config"
	"streamcave/internal/eventsub"
	"streamcave/internal/helix"
	"streamcave/internal/logging"
	"streamcave/internal/pipeline"
	"streamcave/internal/player"
	"streamcave/internal/restart"
	"streamcave/internal/schedule"
	"streamcave/internal/statusserver"
	"streamcave/internal/token"
)

// chanCapacity is the bounded capacity given to each of the six pipeline
// channels (§4.1 step 2: "six bounded channels of capacity 10").
const chanCapacity = 10

// Config is everything the Supervisor needs to run one process lifetime.
// It owns no mutable state itself beyond what Run's loop holds locally.
type Config struct {
	Settings      config.Settings
	Streams       schedule.Streams
	ClientID      string
	StreamingSite string
	TokenDir      string

	WebSocketURL    string
	SubscriptionURL string
	SearchURL       string
	ValidateURL     string

	HTTPClient *http.Client

	// StatusRecorder is optional; when set, Run and the actor group report
	// generation counts, the active login, and correlation table size to it
	// for internal/statusserver to expose over GET /status. A nil recorder
	// is a safe no-op.
	StatusRecorder *statusserver.Recorder
}

// Run blocks for the process lifetime: it acquires a token, launches the
// actor group, and loops rebuilding it on restart signals until ctx is
// canceled (e.g. by signal.NotifyContext at the process boundary) or a
// generation ends cleanly.
func Run(ctx context.Context, cfg Config) error {
	log := logging.New("supervisor")
	validator := &token.HTTPValidator{ValidateURL: cfg.ValidateURL, Client: cfg.HTTPClient}

	for {
		log.Printf("acquiring token")
		tok, err := token.Acquire(ctx.Done(), cfg.TokenDir, validator, log)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("supervisor shutting down cleanly")
				return nil
			}
			log.Printf("token acquisition ended: %v", err)
			return err
		}
		log.Printf("token acquired for %s", tok.Login)
		cfg.StatusRecorder.SetLogin(tok.Login)

		// A transient fault keeps the token and only rebuilds the actor
		// group (§4.1 step 4, code 1); only a credential fault discards
		// the token and loops back to re-acquire it (code 2).
		for {
			code := runGeneration(ctx, cfg, tok, log)
			if code == restart.Transient {
				log.Printf("transient fault, rebuilding actor group with existing token")
				continue
			}
			if code == restart.Credential {
				log.Printf("credential fault, discarding token and re-acquiring")
				break
			}
			log.Printf("supervisor shutting down cleanly")
			return nil
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// runGeneration launches one instance of the five-actor group and blocks
// until a restart is raised or ctx is canceled. It returns the restart
// code that ended the generation, or code 0 if ctx cancellation ended it
// (a clean shutdown, not a fault).
func runGeneration(ctx context.Context, cfg Config, tok token.Token, log *logging.Logger) restart.Code {
	generationID := uuid.NewString()
	genLog := log.With(generationID)
	genLog.Printf("launching actor group")
	cfg.StatusRecorder.IncGeneration()

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ids := make(chan uint32, chanCapacity)
	configs := make(chan schedule.StreamConfig, chanCapacity)
	live := make(chan string, chanCapacity)
	play := make(chan player.Request, chanCapacity)
	exits := make(chan player.Exit, chanCapacity)
	retries := make(chan string, chanCapacity)
	restartCh := make(chan restart.Code, 1)

	helixClient := &helix.Client{
		SubscriptionURL: cfg.SubscriptionURL,
		SearchURL:       cfg.SearchURL,
		ClientID:        cfg.ClientID,
		HTTPClient:      cfg.HTTPClient,
	}

	go eventsub.Run(genCtx, eventsub.Config{
		WebSocketURL: cfg.WebSocketURL,
		Helix:        helixClient,
		Token:        tok,
		Log:          logging.New("websocket").With(generationID),
	}, ids, live, restartCh)

	go pipeline.RunScheduler(genCtx, cfg.Streams, ids, configs, logging.New("scheduler").With(generationID))

	go pipeline.RunCorrelator(genCtx, configs, live, retries, cfg.Settings.GlobalProfile, play, logging.New("correlator").With(generationID), cfg.StatusRecorder)

	go pipeline.RunSpawner(genCtx, play, cfg.Settings.Player, cfg.StreamingSite, exits, logging.New("spawner").With(generationID))

	go pipeline.RunDiagnoser(genCtx, exits, helixClient, tok.Secret, retries, restartCh, logging.New("diagnoser").With(generationID))

	for {
		select {
		case <-ctx.Done():
			return 0
		case code, ok := <-restartCh:
			if !ok {
				return 0
			}
			switch code {
			case restart.Transient, restart.Credential:
				return code
			default:
				genLog.Printf("unrecognized restart code %v, continuing", code)
			}
		}
	}
}
