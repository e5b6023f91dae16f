// Package api is the only component that talks to the game backend.
//
// Every call carries the session credential and JSON headers. Non-2xx
// answers are not errors: Call returns a Response tagged with a Category and
// the server's message, and callers branch on it. Only a call that never
// produced a response (refused connection, unreadable body) is returned as
// an error, normalized to *Error with the Transport category.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials supplies and manages the session token.
type Credentials interface {
	Token() string
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Response is the outcome of a call that reached the server.
type Response struct {
	Status    int
	Category  Category
	Payload   json.RawMessage
	Message   string
	RequestID string

	method   string
	endpoint string
}

// OK reports whether the call succeeded.
func (r *Response) OK() bool {
	return r.Category == Success
}

// Decode unmarshals the payload into v.
func (r *Response) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("api: %s %s: empty payload", r.method, r.endpoint)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("api: %s %s: decoding payload: %w", r.method, r.endpoint, err)
	}
	return nil
}

// Err returns nil on success and a tagged *Error otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = http.StatusText(r.Status)
	}
	return &Error{
		Category:  r.Category,
		Status:    r.Status,
		Message:   msg,
		Method:    r.method,
		Endpoint:  r.endpoint,
		RequestID: r.RequestID,
	}
}

// Gateway performs HTTP calls against the game backend.
type Gateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	creds   Credentials
	logger  *slog.Logger
	newID   func() string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithTimeout sets a per-call timeout. Zero means no timeout. It applies to
// a copy of the client, so a shared client passed to WithHTTPClient is left
// alone.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithCredentials attaches a session. Without one, calls go out unauthenticated.
func WithCredentials(c Credentials) Option {
	return func(g *Gateway) { g.creds = c }
}

// WithLogger sets the logger used for per-call debug records.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	if g.timeout > 0 {
		c := *g.client
		c.Timeout = g.timeout
		g.client = &c
	}
	return g
}

// BaseURL returns the backend root the gateway calls.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Call sends one request. body is JSON-encoded when non-nil. The error is
// non-nil only for transport failures; check Response.Category otherwise.
// A 401 on an authenticated call clears the session.
func (g *Gateway) Call(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	reqID := g.newID()
	transportErr := func(msg string, err error) *Error {
		return &Error{
			Category:  Transport,
			Message:   msg,
			Method:    method,
			Endpoint:  endpoint,
			RequestID: reqID,
			Internal:  err,
		}
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encoding %s %s body: %w", method, endpoint, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, rdr)
	if err != nil {
		return nil, fmt.Errorf("api: building %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	token := ""
	if g.creds != nil {
		token = g.creds.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("api call failed", "method", method, "endpoint", endpoint, "request_id", reqID, "error", err)
		return nil, transportErr("could not reach the server", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr("could not read the server response", err)
	}

	out := &Response{
		Status:    resp.StatusCode,
		Category:  Categorize(resp.StatusCode),
		Payload:   raw,
		Message:   messageOf(raw),
		RequestID: reqID,
		method:    method,
		endpoint:  endpoint,
	}
	g.logger.Debug("api call",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		if err := g.creds.Clear(ctx); err != nil {
			g.logger.Error("clearing expired session", "error", err)
		}
	}
	return out, nil
}

// Login exchanges credentials for a token and stores it in the session.
func (g *Gateway) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := g.Call(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("api: login: server returned no token")
	}
	if g.creds != nil {
		if err := g.creds.Save(ctx, body.Token); err != nil {
			return "", err
		}
	}
	return body.Token, nil
}

// Register creates an account and returns the server message.
func (g *Gateway) Register(ctx context.Context, username, password, email string) (string, error) {
	resp, err := g.Call(ctx, http.MethodPost, "/register", map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// messageOf extracts the "message" field from a JSON object payload.
func messageOf(raw []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &m) != nil {
		return ""
	}
	return m.Message
}
