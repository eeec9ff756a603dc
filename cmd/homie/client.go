package main

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

	"github.com/johnpc/jpc-homie/pkg/homie"
)

// apiClient talks to homied's music API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) (*apiClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("server URL required")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &apiClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}, nil
}

func (c *apiClient) Queue(ctx context.Context) (homie.QueueSnapshot, error) {
	var snap homie.QueueSnapshot
	err := c.do(ctx, http.MethodGet, "/api/music/queue", nil, &snap)
	return snap, err
}

func (c *apiClient) Enqueue(ctx context.Context, track string, artist string) (homie.StatusResponse, error) {
	var resp homie.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/music/queue", homie.EnqueueRequest{Track: track, Artist: artist}, &resp)
	return resp, err
}

func (c *apiClient) Remove(ctx context.Context, queueItemID string) (homie.StatusResponse, error) {
	var resp homie.StatusResponse
	err := c.do(ctx, http.MethodDelete, "/api/music/queue", homie.RemoveRequest{QueueItemID: queueItemID}, &resp)
	return resp, err
}

func (c *apiClient) Move(ctx context.Context, fromIndex int, toIndex int) (homie.StatusResponse, error) {
	var resp homie.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/music/queue/reorder", homie.ReorderRequest{FromIndex: fromIndex, ToIndex: toIndex}, &resp)
	return resp, err
}

func (c *apiClient) Status(ctx context.Context) (homie.PlayerStatus, error) {
	var status homie.PlayerStatus
	err := c.do(ctx, http.MethodGet, "/api/music/status", nil, &status)
	return status, err
}

func (c *apiClient) Control(ctx context.Context, action string) (homie.StatusResponse, error) {
	var resp homie.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/music/control", homie.ControlRequest{Action: action}, &resp)
	return resp, err
}

func (c *apiClient) Volume(ctx context.Context) (homie.VolumeStatus, error) {
	var vol homie.VolumeStatus
	err := c.do(ctx, http.MethodGet, "/api/music/volume", nil, &vol)
	return vol, err
}

func (c *apiClient) SetVolume(ctx context.Context, level float64) (homie.StatusResponse, error) {
	var resp homie.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/music/volume", homie.VolumeRequest{Level: level}, &resp)
	return resp, err
}

func (c *apiClient) Seek(ctx context.Context, position float64) (homie.StatusResponse, error) {
	var resp homie.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/music/seek", homie.SeekRequest{Position: position}, &resp)
	return resp, err
}

func (c *apiClient) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr homie.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Details != "" {
				return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Details)
			}
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return json.Unmarshal(raw, out)
}
