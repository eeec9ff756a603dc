package jellyfin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Track is an audio item from the Jellyfin library.
type Track struct {
	ID      string   `json:"Id"`
	Name    string   `json:"Name"`
	Artists []string `json:"Artists"`
}

// ContentID returns the "<artist> - <title>" form the player abstraction
// resolves when enqueueing.
func (t Track) ContentID() string {
	if len(t.Artists) > 0 && t.Artists[0] != "" {
		return t.Artists[0] + " - " + t.Name
	}
	return t.Name
}

// Client searches a Jellyfin server for audio tracks. Optional: when not
// configured the dashboard enqueues free text as-is.
type Client struct {
	log     *zap.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Jellyfin search client.
func NewClient(log *zap.Logger, baseURL string, apiKey string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("jellyfin base_url required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("jellyfin api_key required")
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		log:     log,
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// SearchTrack finds the best audio match for a free-text term, preferring
// tracks whose artist contains the given artist name. Returns false when
// nothing matches.
func (c *Client) SearchTrack(ctx context.Context, term string, artist string) (Track, bool, error) {
	query := url.Values{}
	query.Set("searchTerm", term)
	query.Set("IncludeItemTypes", "Audio")
	query.Set("Recursive", "true")
	query.Set("Limit", "50")
	query.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Items?"+query.Encode(), nil)
	if err != nil {
		return Track{}, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Track{}, false, fmt.Errorf("jellyfin search: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Track{}, false, fmt.Errorf("jellyfin response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Track{}, false, fmt.Errorf("jellyfin: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Items []Track `json:"Items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return Track{}, false, fmt.Errorf("decode jellyfin items: %w", err)
	}

	items := result.Items
	if artist != "" {
		filtered := make([]Track, 0, len(items))
		for _, item := range items {
			if matchesArtist(item, artist) {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) > 0 {
			items = filtered
		}
	}
	if len(items) == 0 {
		return Track{}, false, nil
	}
	return items[0], true, nil
}

func matchesArtist(track Track, artist string) bool {
	needle := strings.ToLower(artist)
	for _, a := range track.Artists {
		if strings.Contains(strings.ToLower(a), needle) {
			return true
		}
	}
	return false
}
