package hass

import (
	"bytes"
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

	"github.com/johnpc/jpc-homie/pkg/homie"
)

// Client talks to the Home Assistant REST API. It is the dashboard's
// high-level media-player abstraction: player state, coarse commands and
// the active-queue summary, but no fine-grained queue editing.
type Client struct {
	log     *zap.Logger
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Home Assistant client. Base URL and token are both
// required; a missing value is a configuration error, not something to
// retry.
func NewClient(log *zap.Logger, baseURL string, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("home assistant base_url required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("home assistant token required")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		log:     log,
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// ActiveQueue asks the music assistant integration for the player's queue
// summary. The second return is false when the player has no active queue.
func (c *Client) ActiveQueue(ctx context.Context, playerID string) (homie.ActiveQueue, bool, error) {
	raw, err := c.post(ctx, "/api/services/music_assistant/get_queue?return_response=true",
		map[string]any{"entity_id": playerID})
	if err != nil {
		return homie.ActiveQueue{}, false, err
	}

	var reply struct {
		ServiceResponse map[string]queuePayload `json:"service_response"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return homie.ActiveQueue{}, false, fmt.Errorf("decode get_queue response: %w", err)
	}
	payload, ok := reply.ServiceResponse[playerID]
	if !ok || payload.QueueID == "" {
		return homie.ActiveQueue{}, false, nil
	}

	return homie.ActiveQueue{
		QueueID:      payload.QueueID,
		CurrentIndex: payload.CurrentIndex,
		Items:        payload.Items,
		Current:      payload.CurrentItem.toQueueItem(),
		Next:         payload.NextItem.toQueueItem(),
	}, true, nil
}

// Status returns the player's state attributes.
func (c *Client) Status(ctx context.Context, playerID string) (homie.PlayerStatus, error) {
	raw, err := c.get(ctx, "/api/states/"+url.PathEscape(playerID))
	if err != nil {
		return homie.PlayerStatus{}, err
	}

	var state struct {
		State      string `json:"state"`
		Attributes struct {
			MediaTitle     string `json:"media_title"`
			MediaArtist    string `json:"media_artist"`
			MediaAlbumName string `json:"media_album_name"`
		} `json:"attributes"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return homie.PlayerStatus{}, fmt.Errorf("decode state for %s: %w", playerID, err)
	}
	return homie.PlayerStatus{
		State:  state.State,
		Title:  state.Attributes.MediaTitle,
		Artist: state.Attributes.MediaArtist,
		Album:  state.Attributes.MediaAlbumName,
	}, nil
}

// Volume reads the player's current volume attributes.
func (c *Client) Volume(ctx context.Context, playerID string) (float64, bool, error) {
	raw, err := c.get(ctx, "/api/states/"+url.PathEscape(playerID))
	if err != nil {
		return 0, false, err
	}

	var state struct {
		Attributes struct {
			VolumeLevel   float64 `json:"volume_level"`
			IsVolumeMuted bool    `json:"is_volume_muted"`
		} `json:"attributes"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return 0, false, fmt.Errorf("decode state for %s: %w", playerID, err)
	}
	return state.Attributes.VolumeLevel, state.Attributes.IsVolumeMuted, nil
}

// CallService invokes a Home Assistant service, e.g. media_player.media_next_track.
func (c *Client) CallService(ctx context.Context, domain string, service string, payload map[string]any) error {
	_, err := c.post(ctx, "/api/services/"+url.PathEscape(domain)+"/"+url.PathEscape(service), payload)
	return err
}

type queuePayload struct {
	QueueID      string     `json:"queue_id"`
	CurrentIndex int        `json:"current_index"`
	Items        int        `json:"items"`
	CurrentItem  *queueItem `json:"current_item"`
	NextItem     *queueItem `json:"next_item"`
}

type queueItem struct {
	Name      string  `json:"name"`
	Duration  float64 `json:"duration"`
	MediaItem *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album *struct {
			Name string `json:"name"`
		} `json:"album"`
		Image *struct {
			Path string `json:"path"`
		} `json:"image"`
	} `json:"media_item"`
}

// toQueueItem maps an abstraction-side item to the dashboard shape. Item
// ids are deliberately not carried over: the abstraction's view cannot be
// used for delete or move.
func (q *queueItem) toQueueItem() *homie.QueueItem {
	if q == nil {
		return nil
	}
	item := &homie.QueueItem{
		Name:     q.Name,
		Duration: q.Duration,
	}
	if media := q.MediaItem; media != nil {
		if item.Name == "" {
			item.Name = media.Name
		}
		if len(media.Artists) > 0 {
			item.Artist = media.Artists[0].Name
		}
		if media.Album != nil {
			item.Album = media.Album.Name
		}
		if media.Image != nil {
			item.ImagePath = media.Image.Path
		}
	}
	return item
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("home assistant request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("home assistant response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("home assistant: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
