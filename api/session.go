package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

type StartSessionRequest struct {
	UserID         string    `json:"user_id"`
	CompanyID      string    `json:"company_id"`
	BusinessUnitID string    `json:"business_unit_id,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

type StartSessionResponse struct {
	Envelope
	Data struct {
		SessionID string `json:"session_id"`
		ID        string `json:"id"`
	} `json:"data"`
}

// ID returns the new session id from whichever field the backend filled.
func (r *StartSessionResponse) ID() string {
	if r.Data.SessionID != "" {
		return r.Data.SessionID
	}
	return r.Data.ID
}

type heartbeatRequest struct {
	IncrementSeconds int64 `json:"increment_seconds"`
}

type idleRequest struct {
	IdleSeconds int64 `json:"idle_seconds"`
}

type endRequest struct {
	EndedAt time.Time `json:"ended_at"`
}

// StartSession opens a live session record and returns its id.
func (c *Client) StartSession(ctx context.Context, req StartSessionRequest) (string, error) {
	resp := &StartSessionResponse{}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "employee", "session"), req, resp); err != nil {
		return "", err
	}
	if resp.ID() == "" {
		return "", errors.New("[Client.StartSession] response carried no session id")
	}
	return resp.ID(), nil
}

// Heartbeat adds incrementSeconds of active time to the session.
func (c *Client) Heartbeat(ctx context.Context, sessionID string, incrementSeconds int64) error {
	body := heartbeatRequest{IncrementSeconds: incrementSeconds}
	return c.do(ctx, http.MethodPut, c.endpoint(nil, "session", "heartbeat", sessionID), body, nil)
}

// MarkIdle flags the session idle.
func (c *Client) MarkIdle(ctx context.Context, sessionID string, idleSeconds int64) error {
	body := idleRequest{IdleSeconds: idleSeconds}
	return c.do(ctx, http.MethodPut, c.endpoint(nil, "employee", "session", "idle", sessionID), body, nil)
}

// EndSession closes the session at endedAt.
func (c *Client) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	body := endRequest{EndedAt: endedAt}
	return c.do(ctx, http.MethodPut, c.endpoint(nil, "employee", "session", "end", sessionID), body, nil)
}
