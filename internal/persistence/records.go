package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dtran2108/collabo-speak/internal/evaluation"
)

// RecordClient manages participation records: created once at transcript
// upload time, then patched at most twice (reflection, evaluation). Both
// patches are idempotent on the server side.
type RecordClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewRecordClient(endpoint, token string) *RecordClient {
	return &RecordClient{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RecordClient) Create(ctx context.Context, sessionID, userID, transcriptURL string) (string, error) {
	if c.token == "" {
		return "", ErrNoAuthToken
	}

	body, err := json.Marshal(map[string]string{
		"sessionId":     sessionID,
		"userId":        userID,
		"transcriptUrl": transcriptURL,
	})
	if err != nil {
		return "", fmt.Errorf("encode record request: %w", err)
	}

	data, err := doJSON(ctx, c.httpClient, c.endpoint, c.token, http.MethodPost, body)
	if err != nil {
		return "", fmt.Errorf("create participation record: %w", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decode record response: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("record response missing id")
	}
	return created.ID, nil
}

func (c *RecordClient) AttachReflection(ctx context.Context, recordID, reflection string) error {
	return c.patch(ctx, recordID, map[string]any{"reflection": reflection})
}

func (c *RecordClient) AttachEvaluation(ctx context.Context, recordID string, result *evaluation.Result) error {
	return c.patch(ctx, recordID, map[string]any{"evaluation": result})
}

func (c *RecordClient) patch(ctx context.Context, recordID string, fields map[string]any) error {
	if c.token == "" {
		return ErrNoAuthToken
	}
	if recordID == "" {
		return errors.New("record id is required")
	}

	fields["id"] = recordID
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode record patch: %w", err)
	}

	if _, err := doJSON(ctx, c.httpClient, c.endpoint, c.token, http.MethodPatch, body); err != nil {
		return fmt.Errorf("patch participation record %s: %w", recordID, err)
	}
	return nil
}
