package queuesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Degradation markers the queue service embeds in reply bodies when it is
// reachable but will not serve the request. Loose string matching is what
// the service gives us; see the resolver for how these are recovered.
var degradedMarkers = []string{"Authentication", "Setup required"}

// Client sends single command envelopes to the queue service's HTTP
// endpoint. Used for reads and low-risk mutations; authenticated mutations
// go through Session instead.
type Client struct {
	log    *zap.Logger
	apiURL string
	token  string
	http   *http.Client
	codec  Codec
}

// NewClient creates a one-shot transport for the service at baseURL.
func NewClient(log *zap.Logger, baseURL string, token string, codec Codec, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("queue service base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(parsed.Path, "/api") {
		parsed.Path = path.Join(parsed.Path, "/api")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		log:    log,
		apiURL: parsed.String(),
		token:  token,
		http:   &http.Client{Timeout: timeout},
		codec:  codec,
	}, nil
}

// Send posts one command and decodes the reply inline. Connection failures
// come back as NetworkError, degradation markers as DegradedError; a
// populated error field in the reply is returned alongside the result.
func (c *Client) Send(ctx context.Context, command string, args map[string]any) (CommandResult, error) {
	env := c.codec.Encode(command, args)
	payload, err := json.Marshal(env)
	if err != nil {
		return CommandResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return CommandResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return CommandResult{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CommandResult{}, &NetworkError{Err: err}
	}

	if marker := degradedMarker(body); marker != "" {
		c.log.Debug("queue service degraded",
			zap.String("command", command),
			zap.String("marker", marker))
		return CommandResult{}, &DegradedError{Marker: marker}
	}
	if resp.StatusCode >= 400 {
		return CommandResult{}, &NetworkError{Err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	result, err := c.codec.Decode(body)
	if err != nil {
		c.log.Warn("undecodable queue service reply",
			zap.String("command", command),
			zap.ByteString("body", truncate(body, 512)))
		return CommandResult{}, err
	}
	if cmdErr := result.Err(); cmdErr != nil {
		return result, cmdErr
	}
	return result, nil
}

func degradedMarker(body []byte) string {
	text := string(body)
	for _, marker := range degradedMarkers {
		if strings.Contains(text, marker) {
			return marker
		}
	}
	return ""
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
