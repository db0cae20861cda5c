package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Mode selects which kind of connection credential to request.
type Mode string

const (
	ModeWebSocket Mode = "websocket"
	ModeWebRTC    Mode = "webrtc"
)

// Credential is a one-time connection credential: a signed socket URL for
// websocket mode, or a short-lived join token for webrtc mode.
type Credential struct {
	Mode  Mode
	Value string
}

// Error is a signaling failure. The controller surfaces its message
// verbatim to the user together with a retry affordance.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("signaling failed (status %d): %s", e.Status, e.Message)
	}
	return "signaling failed: " + e.Message
}

// Client fetches connection credentials from the signaling endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logf       func(string, ...any)
}

func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logf:       log.Printf,
	}
}

type credentialRequest struct {
	AgentID string `json:"agentId"`
	Mode    Mode   `json:"mode"`
}

type credentialResponse struct {
	SignedURL         string `json:"signedUrl"`
	ConversationToken string `json:"conversationToken"`
}

// AcquireCredential requests a fresh connection credential for the given
// agent. The response shape is validated; for websocket mode a non-secure
// URL scheme is logged as a warning but not rejected.
func (c *Client) AcquireCredential(ctx context.Context, agentID string, mode Mode) (Credential, error) {
	body, err := json.Marshal(credentialRequest{AgentID: agentID, Mode: mode})
	if err != nil {
		return Credential{}, fmt.Errorf("encode credential request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Credential{}, fmt.Errorf("build credential request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Credential{}, &Error{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, &Error{Status: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return Credential{}, &Error{Status: resp.StatusCode, Message: msg}
	}

	var parsed credentialResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Credential{}, &Error{Status: resp.StatusCode, Message: "malformed response body"}
	}

	switch mode {
	case ModeWebSocket:
		if parsed.SignedURL == "" {
			return Credential{}, &Error{Status: resp.StatusCode, Message: "response missing signedUrl"}
		}
		if !strings.HasPrefix(parsed.SignedURL, "wss://") {
			c.logf("warning: signed url does not use a secure scheme")
		}
		return Credential{Mode: ModeWebSocket, Value: parsed.SignedURL}, nil
	case ModeWebRTC:
		if parsed.ConversationToken == "" {
			return Credential{}, &Error{Status: resp.StatusCode, Message: "response missing conversationToken"}
		}
		return Credential{Mode: ModeWebRTC, Value: parsed.ConversationToken}, nil
	default:
		return Credential{}, fmt.Errorf("unknown signaling mode %q", mode)
	}
}
