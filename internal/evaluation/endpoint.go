package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoAuthToken is returned before any network call when no bearer token
// is configured.
var ErrNoAuthToken = errors.New("no auth token for evaluation call")

// Endpoint evaluates transcripts through the external evaluation service.
// One call, no internal retry; the caller decides what a failure means.
type Endpoint struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewEndpoint(url, token string) *Endpoint {
	return &Endpoint{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

func (e *Endpoint) Evaluate(ctx context.Context, transcriptText string) (*Result, error) {
	if e.token == "" {
		return nil, ErrNoAuthToken
	}

	body, err := json.Marshal(map[string]string{"transcript": transcriptText})
	if err != nil {
		return nil, fmt.Errorf("encode evaluation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build evaluation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluation call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read evaluation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("evaluation service returned %d: %s", resp.StatusCode, msg)
	}

	return ParseResult(data)
}
