package cli

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

	"spheres/internal/vault"
)

// StatusError is a non-2xx vault response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vault status %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a vault response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) CreateSlot(ctx context.Context) (vault.Credentials, error) {
	var out vault.Credentials
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/slots", "", nil, &out, "")
	return out, err
}

func (c *Client) PutBlob(ctx context.Context, slot Slot, blob string, baseRevision *int64, idem string) (vault.Blob, error) {
	var out vault.Blob
	err := c.Do(ctx, http.MethodPut, SlotPath(slot.SlotID), slot.Token, PutBody(blob, baseRevision), idem, &out)
	return out, err
}

func (c *Client) GetBlob(ctx context.Context, slot Slot) (vault.Blob, error) {
	var out vault.Blob
	err := c.jsonRequest(ctx, http.MethodGet, SlotPath(slot.SlotID), slot.Token, nil, &out, "")
	return out, err
}

func (c *Client) Stages(ctx context.Context) ([]map[string]any, error) {
	var out struct {
		Stages []map[string]any `json:"stages"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stages", "", nil, &out, "")
	return out.Stages, err
}

// Do sends a raw request; queued commands are replayed through it.
func (c *Client) Do(ctx context.Context, method, path, token string, body map[string]any, idem string, out any) error {
	return c.jsonRequest(ctx, method, path, token, body, out, idem)
}

func SlotPath(slotID string) string {
	return "/v1/slots/" + url.PathEscape(slotID)
}

func PutBody(blob string, baseRevision *int64) map[string]any {
	body := map[string]any{"blob": blob}
	if baseRevision != nil {
		body["base_revision"] = *baseRevision
	}
	return body
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Slot-Token", token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
