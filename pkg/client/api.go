package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

// APIError is a non-2xx response from the mutation API, decoded from the
// server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
}

// IsForbidden reports whether err is an access or authorship rejection.
// These are never retried.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// IsConflict reports whether err is a stale-version rejection; the
// caller should re-fetch the message and retry the edit.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// API is the request/response side of the SDK: channel and message
// mutations plus history fetches. Push delivery is Conn's job.
type API struct {
	BaseURL string
	Token   string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// Page is one history page, newest last.
type Page struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

type sendMessageRequest struct {
	Body        string              `json:"body"`
	ClientKey   string              `json:"client_key,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

type editMessageRequest struct {
	Body    string `json:"body"`
	Version int    `json:"version"`
}

// CreateMessage sends a draft produced by NewDraft. The draft's
// idempotency key rides along, so retrying the same draft cannot create
// a duplicate.
func (a *API) CreateMessage(ctx context.Context, draft *domain.Message) (*domain.Message, error) {
	var msg domain.Message
	path := "/api/v1/scopes/" + url.PathEscape(string(draft.Scope)) + "/messages"
	req := sendMessageRequest{Body: draft.Body, ClientKey: draft.ClientKey, Attachments: draft.Attachments}
	if err := a.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages fetches one history page for the scope, older than the
// optional before cursor.
func (a *API) Messages(ctx context.Context, scope domain.Scope, before *uuid.UUID, limit int) (*Page, error) {
	q := url.Values{}
	if before != nil {
		q.Set("before", before.String())
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/v1/scopes/" + url.PathEscape(string(scope)) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page Page
	if err := a.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// EditMessage submits a new body against the version the editor read.
func (a *API) EditMessage(ctx context.Context, id uuid.UUID, body string, version int) (*domain.Message, error) {
	var msg domain.Message
	req := editMessageRequest{Body: body, Version: version}
	if err := a.do(ctx, http.MethodPatch, "/api/v1/messages/"+id.String(), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, "/api/v1/messages/"+id.String(), nil, nil)
}

func (a *API) AddReaction(ctx context.Context, id uuid.UUID, emoji string) (*domain.Message, error) {
	var msg domain.Message
	req := map[string]string{"emoji": emoji}
	if err := a.do(ctx, http.MethodPost, "/api/v1/messages/"+id.String()+"/reactions", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) CreateChannel(ctx context.Context, name string) (*domain.Channel, error) {
	var ch domain.Channel
	req := map[string]string{"name": name}
	if err := a.do(ctx, http.MethodPost, "/api/v1/channels", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (a *API) InviteToChannel(ctx context.Context, channelID uuid.UUID, memberIDs []uuid.UUID) (*domain.Channel, error) {
	var ch domain.Channel
	req := map[string][]uuid.UUID{"member_ids": memberIDs}
	if err := a.do(ctx, http.MethodPost, "/api/v1/channels/"+channelID.String()+"/invite", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Channels returns the directory: every channel this principal can see.
func (a *API) Channels(ctx context.Context) ([]domain.Channel, error) {
	var resp struct {
		Channels []domain.Channel `json:"channels"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/channels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// do runs one call against the mutation API. A timed-out call is retried
// once before the timeout is surfaced; the idempotency key (for creates)
// and the version check (for edits) make the retry safe.
func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	err := a.doOnce(ctx, method, path, in, out)
	if err != nil && errors.Is(err, ErrTimeout) && ctx.Err() == nil {
		err = a.doOnce(ctx, method, path, in, out)
	}
	return err
}

func (a *API) doOnce(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Token)

	resp, err := a.httpClient().Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func isTimeout(err error) bool {
	return os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN"}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
