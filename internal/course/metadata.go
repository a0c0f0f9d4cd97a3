package course

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MetadataFetcher retrieves course metadata for a working copy. The
// registry caches the result; sessions inject a fetcher so tests never
// need a live backend.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, repo Repo) (Metadata, error)
}

// BackendClient fetches metadata from the course backend over HTTP.
type BackendClient struct {
	BaseURL string
	Client  *http.Client
}

// NewBackendClient returns a client with a bounded request timeout. The
// timeout guards the one network call made before any test runs; test
// execution itself is never time-limited.
func NewBackendClient(baseURL string) *BackendClient {
	return &BackendClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type submissionRequest struct {
	RepoName  string `json:"repo_name"`
	CommitSHA string `json:"commit_sha"`
}

// FetchMetadata posts the working copy's identity to the backend's
// submission endpoint and decodes the metadata it returns.
func (c *BackendClient) FetchMetadata(ctx context.Context, repo Repo) (Metadata, error) {
	body, err := json.Marshal(submissionRequest{RepoName: repo.Name, CommitSHA: repo.CommitSHA})
	if err != nil {
		return Metadata{}, fmt.Errorf("encode submission request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/submission", bytes.NewReader(body))
	if err != nil {
		return Metadata{}, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch course metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Metadata{}, fmt.Errorf("fetch course metadata: backend returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var md Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return Metadata{}, fmt.Errorf("decode course metadata: %w", err)
	}
	return md, nil
}
