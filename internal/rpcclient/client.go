// Package rpcclient talks to the API server's JSON-RPC, realtime and
// storage endpoints. It implements the same interfaces the in-process
// wiring uses, so views run unchanged against a remote backend.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/api"
	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
	"github.com/vibecampus/vibehub/pkg/telemetry"
)

const defaultTimeout = 30 * time.Second

// errUnreachable is what a user sees when the server cannot be reached
const errUnreachable = "Could not reach the server. Check your connection and try again."

// Client calls a remote API server
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
	nextID  int64
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sets where the bearer token for each call comes from
func WithToken(token func() string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at cfg.URL
func New(cfg *config.BackendConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("backend_url is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		token:   func() string { return "" },
		logger:  logging.GetLogger().With(zap.String("component", "rpc-client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("RPC client initialized", zap.String("url", c.baseURL))
	return c, nil
}

// Call invokes method with the current session's token
func (c *Client) Call(ctx context.Context, method string, params, out interface{}) error {
	return c.CallAs(ctx, c.token(), method, params, out)
}

// CallAs invokes method authenticating with token. Application errors
// come back as *apperr.AppError with the server's code and message.
func (c *Client) CallAs(ctx context.Context, token, method string, params, out interface{}) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "rpcclient.call")
	span.SetAttributes(attribute.String("rpc.method", method))
	defer func() { telemetry.EndSpan(span, err) }()

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", method, err)
	}
	body, err := json.Marshal(api.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&c.nextID, 1),
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeUnavailable, errUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var rpcResp api.JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return apperr.Wrap(apperr.CodeUnavailable, errUnreachable, fmt.Errorf("failed to decode %s response: %w", method, err))
	}
	if rpcResp.Error != nil {
		c.logger.Debug("RPC error", zap.String("method", method), zap.Int("code", rpcResp.Error.Code), zap.String("message", rpcResp.Error.Message))
		return rpcResp.Error.AsAppError()
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return nil
}

// statusError turns a non-200 response ({"error": msg}) into an AppError
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if msg == "" {
			msg = "Your session has expired. Please sign in again."
		}
		return apperr.Unauthorized(msg)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		if msg == "" {
			msg = "Invalid request"
		}
		return apperr.InvalidArg(msg)
	case http.StatusNotFound:
		if msg == "" {
			msg = "Not found"
		}
		return apperr.NotFound(msg)
	default:
		return apperr.Wrap(apperr.CodeUnavailable, errUnreachable, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// Procedures routes gateway calls to the server's rpc.* methods
func (c *Client) Procedures() *Procedures {
	return &Procedures{c: c}
}

// Procedures implements gateway.Procedures over the network
type Procedures struct {
	c *Client
}

func (p *Procedures) Call(ctx context.Context, name string, params, out interface{}) error {
	return p.c.Call(ctx, api.ProcedurePrefix+name, params, out)
}

// DialRealtime opens a websocket subscription client with the current token
func (c *Client) DialRealtime(ctx context.Context) (*realtime.WSClient, error) {
	url := c.baseURL + "/v1/realtime"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return realtime.DialWS(ctx, url, c.token())
}

// Upload stores r as name under the caller's folder and returns its URL
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (result *api.UploadResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "rpcclient.upload")
	defer func() { telemetry.EndSpan(span, err) }()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = form.WriteField("path", name)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/storage/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, errUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out api.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &out, nil
}
