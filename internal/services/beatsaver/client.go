package beatsaver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"nsac/internal/config"
	"nsac/internal/services"
)

// HTTPDoer describes the HTTP client used by the BeatSaver service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Version is one published revision of a map; only the newest is relevant.
type Version struct {
	DownloadURL string `json:"downloadURL"`
}

// Map is the subset of BeatSaver map metadata the pipeline consumes.
type Map struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LastPublishedAt string    `json:"lastPublishedAt"`
	Versions        []Version `json:"versions"`
}

// MapDoc pairs the decoded map with its verbatim API payload so meta.json
// preserves everything the API returned.
type MapDoc struct {
	Map
	Raw json.RawMessage
}

// LevelFilename returns the archive name the map's newest version downloads
// as.
func (m Map) LevelFilename() (string, error) {
	if len(m.Versions) == 0 || m.Versions[0].DownloadURL == "" {
		return "", fmt.Errorf("map %s has no download URL", m.ID)
	}
	parsed, err := url.Parse(m.Versions[0].DownloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download URL for map %s: %w", m.ID, err)
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("download URL for map %s has no filename", m.ID)
	}
	return name, nil
}

// Client talks to the BeatSaver API.
type Client struct {
	baseURL   string
	userAgent string
	client    HTTPDoer
}

// NewClient constructs a BeatSaver API client from configuration.
func NewClient(cfg *config.Config) *Client {
	return NewClientWithHTTP(cfg.BeatSaver.BaseURL, cfg.BeatSaver.UserAgent, &http.Client{
		Timeout: time.Duration(cfg.BeatSaver.RequestTimeout) * time.Second,
	})
}

// NewClientWithHTTP constructs a client with an explicit HTTP doer; tests
// inject httptest-backed clients here.
func NewClientWithHTTP(baseURL, userAgent string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    client,
	}
}

// Latest fetches one page of maps published before the given timestamp,
// newest first, automapper content excluded.
func (c *Client) Latest(ctx context.Context, before string) ([]MapDoc, error) {
	endpoint := c.baseURL + "/maps/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build latest request: %w", err)
	}
	query := req.URL.Query()
	query.Set("before", before)
	query.Set("automapper", "false")
	query.Set("sort", "LAST_PUBLISHED")
	req.URL.RawQuery = query.Encode()
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "beatsaver", "latest", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalTool, "beatsaver", "latest", fmt.Sprintf("API returned %d", resp.StatusCode), nil)
	}

	var payload struct {
		Docs []json.RawMessage `json:"docs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "beatsaver", "latest", "decode response", err)
	}

	docs := make([]MapDoc, 0, len(payload.Docs))
	for _, raw := range payload.Docs {
		var m Map
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "beatsaver", "latest", "decode map document", err)
		}
		docs = append(docs, MapDoc{Map: m, Raw: raw})
	}
	return docs, nil
}

// DownloadLevel streams a map's level archive to destPath. The file is
// written to a temporary sibling first and renamed into place so a partial
// download never looks complete.
func (c *Client) DownloadLevel(ctx context.Context, downloadURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "beatsaver", "download", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, "beatsaver", "download", fmt.Sprintf("API returned %d", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create map directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "beatsaver", "download", "copy body", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}
