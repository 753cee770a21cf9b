package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("api: %d %s", e.Code, e.Message)
}

// Client talks to the remote conversation store.
type Client struct {
	Endpoint *Endpoint
	HTTP     *http.Client
	log      *zap.Logger
}

func New(ep *Endpoint, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{Endpoint: ep, HTTP: hc, log: log}
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	u, err := url.JoinPath(c.Endpoint.RootURL(), path)
	if err != nil {
		return errors.Wrap(err, "api: bad url")
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "api: encode request")
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return errors.Wrap(err, "api: build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Endpoint.AppToken(); tok != "" {
		req.Header.Set("app-token", tok)
	}
	if jwt := c.Endpoint.JWT(); jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}
	if v := c.Endpoint.SDKVersion(); v != "" {
		req.Header.Set("X-Widget-Version", v)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "api: %s %s", method, path)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(res)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "api: decode %s %s", method, path)
	}
	return nil
}

func statusError(res *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	msg := string(bytes.TrimSpace(b))
	if json.Unmarshal(b, &payload) == nil && len(payload.Error) > 0 {
		var detail struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		var s string
		switch {
		case json.Unmarshal(payload.Error, &s) == nil:
			msg = s
		case json.Unmarshal(payload.Error, &detail) == nil && detail.Description != "":
			msg = detail.Description
		}
	}
	return &StatusError{Code: res.StatusCode, Message: msg}
}
