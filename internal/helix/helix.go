// Package helix is the thin client for the two Twitch Helix endpoints the
// daemon talks to directly: creating an EventSub subscription, and
// searching channels to diagnose a player exit. Both the WebSocket Session
// actor (subscribing) and the Exit Diagnoser (searching) share this client
// so the request shape, headers, and status-code handling live in one
// place.
package helix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client talks to the Twitch Helix API with a fixed client id and bearer
// token for one supervision cycle.
type Client struct {
	SubscriptionURL string
	SearchURL       string
	ClientID        string
	HTTPClient      *http.Client
}

type condition struct {
	BroadcasterUserID string `json:"broadcaster_user_id"`
}

type transport struct {
	Method    string `json:"method"`
	SessionID string `json:"session_id"`
}

type subscriptionRequest struct {
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	Condition condition `json:"condition"`
	Transport transport `json:"transport"`
}

// SubscribeStreamOnline issues the stream.online subscription POST
// described in §6, and returns the HTTP status code and response body
// verbatim so the caller can apply the 202/401/other-status policy from
// §4.3 itself.
func (c *Client) SubscribeStreamOnline(ctx context.Context, token string, broadcasterID uint32, sessionID string) (int, string, error) {
	body := subscriptionRequest{
		Type:    "stream.online",
		Version: "1",
		Condition: condition{
			BroadcasterUserID: fmt.Sprintf("%d", broadcasterID),
		},
		Transport: transport{
			Method:    "websocket",
			SessionID: sessionID,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SubscriptionURL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(respBody), nil
}

// SearchResult is one entry of the channel-search response relevant to
// exit diagnosis.
type SearchResult struct {
	BroadcasterLogin string `json:"broadcaster_login"`
	DisplayName      string `json:"display_name"`
	ID               string `json:"id"`
	IsLive           bool   `json:"is_live"`
}

type streamSearch struct {
	Data []SearchResult `json:"data"`
}

// SearchStatus is the outcome of a channel-search call, distinguishing the
// three branches the Exit Diagnoser must tell apart: a clean 200 response
// (with or without a matching record), a 401 (credential fault), and any
// other status (logged, diagnosis abandoned).
type SearchStatus struct {
	StatusCode int
	Body       string
	Result     *SearchResult
}

// SearchChannel issues the channel-search GET described in §6 and §4.6.
func (c *Client) SearchChannel(ctx context.Context, token, login string) (SearchStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SearchURL, nil)
	if err != nil {
		return SearchStatus{}, err
	}
	q := req.URL.Query()
	q.Set("query", login)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", c.ClientID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return SearchStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return SearchStatus{StatusCode: resp.StatusCode, Body: string(body)}, nil
	}

	var parsed streamSearch
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SearchStatus{}, fmt.Errorf("decoding search response: %w", err)
	}

	status := SearchStatus{StatusCode: resp.StatusCode}
	for i := range parsed.Data {
		if parsed.Data[i].BroadcasterLogin == login {
			status.Result = &parsed.Data[i]
			break
		}
	}
	return status, nil
}
