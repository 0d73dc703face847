// Package api is the gateway to the crewdesk backend. It normalizes every
// endpoint into typed request/response records and folds transport outcomes
// into a single shape: 2xx decodes, 202 decodes and is flagged accepted,
// 204 yields an empty body, anything else is an error. The gateway never
// retries; polling cadence belongs to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type response struct {
	status   int
	accepted bool
	body     []byte
}

func (c *Client) call(ctx context.Context, method, path string, payload any) (*response, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &response{status: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	accepted := resp.StatusCode == http.StatusAccepted
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.log.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if !ok && !accepted {
		detail := strings.TrimSpace(string(body))
		if len(detail) > 200 {
			detail = detail[:200]
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}
	return &response{status: resp.StatusCode, accepted: accepted, body: body}, nil
}

func decode[T any](resp *response) (T, error) {
	var out T
	if len(resp.body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	resp, err := c.call(ctx, http.MethodGet, "/teams", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]Team](resp)
}

func (c *Client) TeamAgents(ctx context.Context, teamID string) ([]Agent, error) {
	resp, err := c.call(ctx, http.MethodGet, "/teams/"+teamID+"/agents", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]Agent](resp)
}

func (c *Client) TeamChats(ctx context.Context, teamID string) ([]ChatSummary, error) {
	resp, err := c.call(ctx, http.MethodGet, "/teams/"+teamID+"/chats", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]ChatSummary](resp)
}

func (c *Client) Chat(ctx context.Context, chatID string) (ChatResult, error) {
	resp, err := c.call(ctx, http.MethodGet, "/chats/"+chatID, nil)
	if err != nil {
		return ChatResult{}, err
	}
	return decode[ChatResult](resp)
}

func (c *Client) PostChat(ctx context.Context, teamID string, req ChatPostRequest) (ChatPostResult, error) {
	resp, err := c.call(ctx, http.MethodPost, "/teams/"+teamID+"/chats", req)
	if err != nil {
		return ChatPostResult{}, err
	}
	out, err := decode[ChatPostResult](resp)
	if err != nil {
		return ChatPostResult{}, err
	}
	out.Accepted = resp.accepted
	return out, nil
}

func (c *Client) BuilderSessions(ctx context.Context) ([]DesignSession, error) {
	resp, err := c.call(ctx, http.MethodGet, "/team-builder/sessions", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]DesignSession](resp)
}

func (c *Client) BuilderChat(ctx context.Context, req BuilderChatRequest) (BuilderChatResult, error) {
	if req.Messages == nil {
		req.Messages = []Message{}
	}
	resp, err := c.call(ctx, http.MethodPost, "/team-builder/chat", req)
	if err != nil {
		return BuilderChatResult{}, err
	}
	return decode[BuilderChatResult](resp)
}

// CreateTeam spreads the builder's submission payload at the top level of the
// request body alongside the design session id, matching the server contract.
func (c *Client) CreateTeam(ctx context.Context, submission json.RawMessage, designSessionID string) (CreateTeamResult, error) {
	body := map[string]any{}
	if len(submission) > 0 {
		if err := json.Unmarshal(submission, &body); err != nil {
			return CreateTeamResult{}, fmt.Errorf("invalid submission payload: %w", err)
		}
	}
	body["designSessionId"] = designSessionID
	resp, err := c.call(ctx, http.MethodPost, "/team-builder/create", body)
	if err != nil {
		return CreateTeamResult{}, err
	}
	return decode[CreateTeamResult](resp)
}
