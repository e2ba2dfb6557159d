package client

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

	"kintai/internal/reservation"
	"kintai/internal/status"
	"kintai/internal/worklog"
)

// Gateway is the request/response channel to the status service. It is the
// higher-latency, always-available counterpart of the push subscription.
type Gateway interface {
	Status(ctx context.Context, userID string) (*status.WorkStatus, error)
	WriteStatus(ctx context.Context, st *status.WorkStatus) error
	AppendLog(ctx context.Context, e worklog.Entry) error
	Reservations(ctx context.Context, userID string) ([]reservation.Reservation, error)
	SaveReservation(ctx context.Context, res reservation.Reservation) error
	DeleteReservation(ctx context.Context, id string) error
}

// APIClient talks to the kintai gateway over HTTP.
type APIClient struct {
	base string
	http *http.Client
}

func NewAPIClient(baseURL string) (*APIClient, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("gateway url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	return &APIClient{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// WebsocketURL returns the push-channel endpoint for a user.
func (c *APIClient) WebsocketURL(userID string) string {
	ws := c.base
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/ws/status?user_id=" + url.QueryEscape(userID)
}

func (c *APIClient) Status(ctx context.Context, userID string) (*status.WorkStatus, error) {
	var st status.WorkStatus
	found, err := c.getJSON(ctx, "/status?user_id="+url.QueryEscape(userID), &st)
	if err != nil || !found {
		return nil, err
	}
	return &st, nil
}

func (c *APIClient) AllStatus(ctx context.Context) ([]status.WorkStatus, error) {
	var out []status.WorkStatus
	if _, err := c.getJSON(ctx, "/status/all", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) WriteStatus(ctx context.Context, st *status.WorkStatus) error {
	return c.postJSON(ctx, http.MethodPost, "/status", st)
}

func (c *APIClient) AppendLog(ctx context.Context, e worklog.Entry) error {
	return c.postJSON(ctx, http.MethodPost, "/logs", e)
}

func (c *APIClient) Reservations(ctx context.Context, userID string) ([]reservation.Reservation, error) {
	var out []reservation.Reservation
	if _, err := c.getJSON(ctx, "/reservations?user_id="+url.QueryEscape(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) SaveReservation(ctx context.Context, res reservation.Reservation) error {
	return c.postJSON(ctx, http.MethodPost, "/reservations", res)
}

func (c *APIClient) DeleteReservation(ctx context.Context, id string) error {
	return c.postJSON(ctx, http.MethodDelete, "/reservations/"+url.PathEscape(id), nil)
}

// getJSON reports found=false for 404 and empty bodies instead of an error;
// an absent record is a normal answer for a user who never clocked in.
func (c *APIClient) getJSON(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("gateway %s: unexpected status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("gateway %s: decode response: %w", path, err)
	}
	return true, nil
}

func (c *APIClient) postJSON(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
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
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("gateway %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return nil
}
