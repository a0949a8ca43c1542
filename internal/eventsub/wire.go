package eventsub

import "encoding/json"

// messageType enumerates the five EventSub WebSocket frame kinds the
// session actor classifies, grounded on
// original_source/src/watcher/twitch_socket/api_structs.rs's MessageType.
type messageType string

const (
	messageWelcome    messageType = "session_welcome"
	messageKeepalive  messageType = "session_keepalive"
	messageNotify     messageType = "notification"
	messageReconnect  messageType = "session_reconnect"
	messageRevocation messageType = "revocation"
)

// frame is the outer envelope every EventSub message shares: a metadata
// block naming the message type, and an opaque payload whose shape depends
// on that type.
type frame struct {
	Metadata struct {
		MessageID        string      `json:"message_id"`
		MessageType      messageType `json:"message_type"`
		MessageTimestamp string      `json:"message_timestamp"`
	} `json:"metadata"`
	Payload json.RawMessage `json:"payload"`
}

// sessionInfo is the `payload.session` object carried by session_welcome
// and session_reconnect frames.
type sessionInfo struct {
	ID                      string  `json:"id"`
	Status                  string  `json:"status"`
	ConnectedAt             string  `json:"connected_at"`
	KeepaliveTimeoutSeconds *uint32 `json:"keepalive_timeout_seconds"`
	ReconnectURL            *string `json:"reconnect_url"`
}

type sessionPayload struct {
	Session sessionInfo `json:"session"`
}

type condition struct {
	BroadcasterUserID string `json:"broadcaster_user_id"`
}

type transport struct {
	Method    string `json:"method"`
	SessionID string `json:"session_id"`
}

type subscriptionInfo struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	Status    string    `json:"status"`
	Cost      uint32    `json:"cost"`
	Condition condition `json:"condition"`
	Transport transport `json:"transport"`
	CreatedAt string    `json:"created_at"`
}

// Revocation statuses named in §4.3: only authorization_revoked is a
// credential fault, user_removed/version_removed are logged and ignored.
const (
	revocationAuthorizationRevoked = "authorization_revoked"
	revocationUserRemoved          = "user_removed"
	revocationVersionRemoved       = "version_removed"
)

type revocationPayload struct {
	Subscription subscriptionInfo `json:"subscription"`
}

type eventInfo struct {
	ID                   string `json:"id"`
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	BroadcasterUserName  string `json:"broadcaster_user_name"`
	Type                 string `json:"type"`
	StartedAt            string `json:"started_at"`
}

type notificationPayload struct {
	Subscription subscriptionInfo `json:"subscription"`
	Event        eventInfo        `json:"event"`
}

// eventTypeLive is the only notification event type the daemon acts on
// (§4.3: "notification with subscription-type = stream.online and
// event-type = live").
const eventTypeLive = "live"

// subscriptionTypeStreamOnline is the only subscription type the daemon
// ever creates or consumes.
const subscriptionTypeStreamOnline = "stream.online"
