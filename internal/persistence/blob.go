package persistence

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
// is configured for the persistence endpoints.
var ErrNoAuthToken = errors.New("no auth token for persistence call")

// BlobRef locates an uploaded transcript document.
type BlobRef struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// BlobClient uploads transcript documents to the blob storage endpoint.
type BlobClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewBlobClient(endpoint, token string) *BlobClient {
	return &BlobClient{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *BlobClient) Upload(ctx context.Context, fileName, content string) (BlobRef, error) {
	if c.token == "" {
		return BlobRef{}, ErrNoAuthToken
	}

	body, err := json.Marshal(map[string]string{"fileName": fileName, "content": content})
	if err != nil {
		return BlobRef{}, fmt.Errorf("encode upload request: %w", err)
	}

	data, err := doJSON(ctx, c.httpClient, c.endpoint, c.token, http.MethodPost, body)
	if err != nil {
		return BlobRef{}, fmt.Errorf("upload transcript blob: %w", err)
	}

	var ref BlobRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return BlobRef{}, fmt.Errorf("decode upload response: %w", err)
	}
	if ref.URL == "" {
		return BlobRef{}, errors.New("upload response missing url")
	}
	return ref, nil
}

func doJSON(ctx context.Context, client *http.Client, url, token, method string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return data, nil
}
