package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewlens-client/lib/kvstore"
	"reviewlens-client/lib/telemetry"

	"dario.cat/mergo"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gateway")

const clientIdKey = "client:id"

// TokenSource exposes the current bearer token. The session manager
// implements this; an empty string means no session.
type TokenSource interface {
	Token() string
}

type Options struct {
	BaseUrl string
	Tokens  TokenSource
	// OnAuthExpired fires after a 401 is classified, before
	// ErrAuthExpired is returned. The composition root decides what
	// "redirect to login" means; the gateway never navigates itself.
	OnAuthExpired func()
	// Store persists the per-install client id. Optional, a fresh id
	// is generated every run when nil.
	Store   kvstore.Store
	Timeout time.Duration
}

// Client is the single choke point for talking to the analysis
// backend: default headers, bearer injection, and response
// classification all live here. It performs no retries.
type Client struct {
	http          *resty.Client
	tokens        TokenSource
	onAuthExpired func()
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(timeout)
	client.SetHeader("content-type", "application/json")
	client.SetHeader("x-client-id", loadClientId(ctx, opts.Store))

	telemetry.InstrumentResty(client, "gateway/http")

	return &Client{
		http:          client,
		tokens:        opts.Tokens,
		onAuthExpired: opts.OnAuthExpired,
	}, nil
}

func loadClientId(ctx context.Context, store kvstore.Store) string {
	if store == nil {
		return uuid.NewString()
	}
	stored, err := store.Get(ctx, clientIdKey)
	if err == nil {
		return string(stored)
	}
	id := uuid.NewString()
	err = store.Set(ctx, clientIdKey, []byte(id))
	if err != nil {
		// a fresh id per run is fine, persistence is a nicety
		return id
	}
	return id
}

// SetTokens attaches the token source after construction. The session
// manager needs the gateway to reach the auth endpoints, so the two
// are tied together by the composition root rather than by either
// constructor.
func (c *Client) SetTokens(tokens TokenSource) {
	c.tokens = tokens
}

func (c *Client) SetOnAuthExpired(cb func()) {
	c.onAuthExpired = cb
}

// EnsureAuthenticated returns ErrAuthRequired when there is no
// session token. Callers gate protected operations on this before
// issuing any network call.
func (c *Client) EnsureAuthenticated() error {
	if c.tokens == nil || c.tokens.Token() == "" {
		return ErrAuthRequired
	}
	return nil
}

type RequestOptions struct {
	Method  string
	Body    any
	Headers map[string]string
	Query   map[string]string
	// NoAuth skips bearer injection and 401-as-session-expiry
	// classification. Login and registration use this: a 401 on an
	// unauthenticated call means bad credentials, not a stale
	// session, and must never wipe a prior session.
	NoAuth bool
}

var defaultRequestOptions = RequestOptions{
	Method: "GET",
}

// Request issues a call against the backend and decodes the 2xx JSON
// body into out (which may be nil). Caller-supplied options override
// the defaults; classification of failures follows the taxonomy in
// errors.go.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	ctx, span := tracer.Start(ctx, "Request")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "endpoint",
		Value: attribute.StringValue(endpoint),
	})

	err := mergo.Merge(&opts, defaultRequestOptions)
	if err != nil {
		return err
	}

	req := c.http.R().SetContext(ctx)
	if !opts.NoAuth && c.tokens != nil && c.tokens.Token() != "" {
		req.SetAuthToken(c.tokens.Token())
	}
	for k, v := range opts.Headers {
		req.SetHeader(k, v)
	}
	if len(opts.Query) > 0 {
		req.SetQueryParams(opts.Query)
	}
	if opts.Body != nil {
		req.SetBody(opts.Body)
	}

	res, err := req.Execute(opts.Method, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return &NetworkError{Cause: err}
	}

	switch {
	case res.StatusCode() == 401 && !opts.NoAuth:
		span.SetStatus(codes.Error, "auth expired")
		if c.onAuthExpired != nil {
			c.onAuthExpired()
		}
		return ErrAuthExpired
	case res.StatusCode() == 403:
		span.SetStatus(codes.Error, "permission denied")
		return ErrPermissionDenied
	case res.StatusCode() >= 400:
		span.SetStatus(codes.Error, "server error")
		return &ServerError{
			StatusCode: res.StatusCode(),
			Message:    serverMessage(res.Body(), res.StatusCode()),
		}
	}

	if out == nil {
		return nil
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode response body")
		return &ServerError{
			StatusCode: res.StatusCode(),
			Message:    "The server returned an unreadable response.",
		}
	}
	return nil
}

// best-effort extraction of the server's error message, falling back
// to a generic one
func serverMessage(body []byte, status int) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	err := json.Unmarshal(body, &payload)
	if err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("Request failed with status %d.", status)
}

func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.Request(ctx, endpoint, RequestOptions{Method: "GET"}, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Request(ctx, endpoint, RequestOptions{Method: "POST", Body: body}, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Request(ctx, endpoint, RequestOptions{Method: "PUT", Body: body}, out)
}
