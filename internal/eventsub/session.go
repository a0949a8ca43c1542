// Package eventsub maintains one Twitch EventSub WebSocket session:
// welcome/keepalive/reconnect/revocation handling, the idle-timeout watch,
// and the subscription fan-out that turns incoming broadcaster ids into
// stream.online subscriptions. It is the WebSocket Session actor from the
// specification's §4.3.
package eventsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"streamcave/internal/helix"
	"streamcave/internal/logging"
	"streamcave/internal/restart"
	"streamcave/internal/retry"
	"streamcave/internal/token"
)

// idleTimeout is the per-frame deadline named in §4.3/§5: no frame (data or
// keepalive) within this window raises a transient restart. It is a var,
// not a const, so tests can shrink it instead of waiting out the real
// window.
var idleTimeout = 15 * time.Second

// Config is everything the session actor needs for one supervision cycle.
type Config struct {
	WebSocketURL string
	Helix        *helix.Client
	Token        token.Token
	Log          *logging.Logger
}

// sessionCell is the write-once-per-connection, mutex-guarded session id
// shared between the frame reader and the subscription fan-out (§5:
// "the session-id cell is the only mutable shared value").
type sessionCell struct {
	mu sync.Mutex
	id string
}

func (c *sessionCell) set(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

func (c *sessionCell) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Run drives the WebSocket Session actor to completion: it dials, awaits
// welcome, and then runs the frame-reader and subscription fan-out
// concurrently until one of them raises a restart code or ctx is canceled
// by the supervisor tearing down the group. A closed ids channel ends only
// the fan-out; Run keeps going until the connection goroutine stops too.
func Run(ctx context.Context, cfg Config, ids <-chan uint32, live chan<- string, restartCh chan<- restart.Code) {
	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cell sessionCell
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		runConnection(innerCtx, cfg, &cell, live, restartCh, cancel)
	}()
	go func() {
		defer wg.Done()
		runSubscriptionFanout(innerCtx, cfg, &cell, ids, restartCh, cancel)
	}()

	wg.Wait()
}

func raiseRestart(ctx context.Context, ch chan<- restart.Code, code restart.Code) {
	select {
	case ch <- code:
	case <-ctx.Done():
	}
}

// runConnection implements the Dialing -> Awaiting welcome -> Operational
// state machine of §4.3. Dialing/Backoff retries silently inside
// dialWithBackoff; only a failed welcome or a terminal Operational outcome
// escalates to the supervisor.
func runConnection(ctx context.Context, cfg Config, cell *sessionCell, live chan<- string, restartCh chan<- restart.Code, cancel context.CancelFunc) {
	conn, ok := dialWithBackoff(ctx, cfg.WebSocketURL, cfg.Log)
	if !ok {
		return
	}

	if !awaitWelcome(conn, cell, cfg) {
		conn.Close()
		raiseRestart(ctx, restartCh, restart.Transient)
		cancel()
		return
	}

	logging.Acknowledge("successfully started websocket")

	code, hadRestart := runOperational(ctx, conn, cell, cfg, live)
	if hadRestart {
		raiseRestart(ctx, restartCh, code)
	}
	cancel()
}

func dialWithBackoff(ctx context.Context, url string, log *logging.Logger) (*websocket.Conn, bool) {
	b := retry.New()
	for {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			return conn, true
		}
		log.Printf("error dialing eventsub websocket: %v", err)
		if werr := retry.Wait(ctx, b); werr != nil {
			return nil, false
		}
	}
}

func awaitWelcome(conn *websocket.Conn, cell *sessionCell, cfg Config) bool {
	_, data, err := conn.ReadMessage()
	if err != nil {
		cfg.Log.Printf("error reading welcome frame: %v", err)
		return false
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		panic(fmt.Errorf("eventsub: malformed frame while awaiting welcome: %w", err))
	}
	if f.Metadata.MessageType != messageWelcome {
		cfg.Log.Printf("expected session_welcome, got %q", f.Metadata.MessageType)
		return false
	}

	var payload sessionPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		panic(fmt.Errorf("eventsub: malformed welcome payload: %w", err))
	}

	cell.set(payload.Session.ID)
	cfg.Log.Printf("session established: %s", payload.Session.ID)
	return true
}

// runOperational reads frames until a terminal condition occurs. It
// returns (code, true) when a restart should be raised, or (_, false) when
// the context was canceled (a clean shutdown, not a fault).
func runOperational(ctx context.Context, conn *websocket.Conn, cell *sessionCell, cfg Config, live chan<- string) (restart.Code, bool) {
	defer conn.Close()

	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			cfg.Log.Printf("idle timeout or read error, raising restart: %v", err)
			return restart.Transient, true
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			panic(fmt.Errorf("eventsub: malformed frame: %w", err))
		}

		switch f.Metadata.MessageType {
		case messageKeepalive:
			// No-op; reading any frame already reset the idle deadline.

		case messageReconnect:
			var payload sessionPayload
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				panic(fmt.Errorf("eventsub: malformed reconnect payload: %w", err))
			}
			if payload.Session.ReconnectURL == nil {
				panic(fmt.Errorf("eventsub: session_reconnect frame missing reconnect_url"))
			}
			newConn, _, dialErr := websocket.DefaultDialer.DialContext(ctx, *payload.Session.ReconnectURL, nil)
			if dialErr != nil {
				cfg.Log.Printf("error reconnecting to %s: %v", *payload.Session.ReconnectURL, dialErr)
				return restart.Transient, true
			}
			conn.Close()
			conn = newConn
			cfg.Log.Printf("reconnected session via %s", *payload.Session.ReconnectURL)

		case messageNotify:
			var payload notificationPayload
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				panic(fmt.Errorf("eventsub: malformed notification payload: %w", err))
			}
			if payload.Subscription.Type == subscriptionTypeStreamOnline && payload.Event.Type == eventTypeLive {
				select {
				case live <- payload.Event.BroadcasterUserLogin:
				case <-ctx.Done():
					return 0, false
				}
			}

		case messageRevocation:
			var payload revocationPayload
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				panic(fmt.Errorf("eventsub: malformed revocation payload: %w", err))
			}
			switch payload.Subscription.Status {
			case revocationAuthorizationRevoked:
				cfg.Log.Printf("subscription authorization revoked")
				return restart.Credential, true
			case revocationUserRemoved, revocationVersionRemoved:
				cfg.Log.Printf("subscription revoked: %s", payload.Subscription.Status)
			default:
				cfg.Log.Printf("unrecognized revocation status: %s", payload.Subscription.Status)
			}

		default:
			cfg.Log.Printf("unrecognized message type: %s", f.Metadata.MessageType)
		}
	}
}

// runSubscriptionFanout consumes broadcaster ids from the Scheduler Loader
// and issues a stream.online subscription for each one, gating on the
// session id becoming known (§4.3: "must NOT attempt a subscription before
// the session-id is known; it waits (1-second poll)").
func runSubscriptionFanout(ctx context.Context, cfg Config, cell *sessionCell, ids <-chan uint32, restartCh chan<- restart.Code, cancel context.CancelFunc) {
	for {
		var id uint32
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ids:
			if !ok {
				return
			}
			id = v
		}

		sessionID, ok := waitForSession(ctx, cell)
		if !ok {
			return
		}

		if !subscribeWithBackoff(ctx, cfg, id, sessionID, restartCh, cancel) {
			return
		}
	}
}

func waitForSession(ctx context.Context, cell *sessionCell) (string, bool) {
	for {
		if id := cell.get(); id != "" {
			return id, true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(1 * time.Second):
		}
	}
}

func subscribeWithBackoff(ctx context.Context, cfg Config, broadcasterID uint32, sessionID string, restartCh chan<- restart.Code, cancel context.CancelFunc) bool {
	b := retry.New()
	for {
		status, body, err := cfg.Helix.SubscribeStreamOnline(ctx, cfg.Token.Secret, broadcasterID, sessionID)
		if err != nil {
			cfg.Log.Printf("network error subscribing broadcaster %d: %v", broadcasterID, err)
			if werr := retry.Wait(ctx, b); werr != nil {
				return false
			}
			continue
		}

		switch status {
		case 202:
			cfg.Log.Printf("subscribed broadcaster %d: %s", broadcasterID, body)
			logging.Acknowledge("Subscribed to event: %s", body)
			return true
		case 401:
			raiseRestart(ctx, restartCh, restart.Credential)
			cancel()
			return false
		default:
			cfg.Log.Printf("unexpected subscribe status %d for broadcaster %d: %s", status, broadcasterID, body)
			return true
		}
	}
}
