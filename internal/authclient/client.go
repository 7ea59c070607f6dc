// Package authclient talks to the remote authentication API.
//
// Every call returns a model.Result. Transport, status and decoding failures are
// reported inside the result; no method returns an error or panics on bad input.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/and161185/allin/internal/errs"
	"github.com/and161185/allin/internal/model"
	"go.uber.org/zap"
)

// API paths relative to the base URL.
const (
	RegisterPath = "/api/auth/register"
	LoginPath    = "/api/auth/login"
	ProfilePath  = "/api/protected/data"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// TokenSource yields the current session token, if any.
type TokenSource interface {
	Token() (string, bool)
}

// Client issues auth API requests.
type Client struct {
	baseURL string
	hc      *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport gets wrapped for logging.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a client for baseURL. tokens may be nil when no profile calls are made.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	base := &http.Client{}
	if c.hc != nil {
		cp := *c.hc
		base = &cp
	}
	base.Transport = newLoggingTransport(base.Transport, c.log)
	c.hc = base
	return c
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password, emailID string) model.Result {
	body := model.Credentials{Username: username, Password: password, EmailID: emailID}
	return c.post(ctx, RegisterPath, body, "")
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, emailID, password string) model.Result {
	return c.post(ctx, LoginPath, model.Credentials{EmailID: emailID, Password: password}, "")
}

// FetchProfile loads the profile for emailID, sending the stored token when there is one.
// Without a token the header is omitted and the server decides.
func (c *Client) FetchProfile(ctx context.Context, emailID string) model.Result {
	var bearer string
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(); ok {
			bearer = tok
		}
	}
	body := struct {
		EmailID string `json:"emailId"`
	}{emailID}
	return c.post(ctx, ProfilePath, body, bearer)
}

func (c *Client) post(ctx context.Context, path string, body any, bearer string) model.Result {
	payload, err := json.Marshal(body)
	if err != nil {
		return failure(0, fmt.Errorf("%w: encode request: %v", errs.ErrParse, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return failure(0, fmt.Errorf("%w: %v", errs.ErrNetwork, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return failure(0, fmt.Errorf("%w: %v", errs.ErrNetwork, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return failure(resp.StatusCode, fmt.Errorf("%w: read body: %v", errs.ErrNetwork, err))
	}
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return failure(resp.StatusCode, fmt.Errorf("%w: response from %s is not JSON (status %d)", errs.ErrParse, path, resp.StatusCode))
	}

	res := model.Result{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Data:   json.RawMessage(raw),
		Status: resp.StatusCode,
	}
	if !res.OK {
		res.Err = errs.ErrAuth
		c.log.Info("auth api rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", res.Message()),
		)
	}
	return res
}

func failure(status int, err error) model.Result {
	return model.Result{OK: false, Error: err.Error(), Status: status, Err: err}
}
