// Package authclient talks to the identity endpoint: credential sign-up and
// sign-in plus OAuth sign-in, one round-trip each, no retries. The client
// holds no session state; persisting the returned token is the caller's job.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Identity endpoint routes, relative to the configured base URL.
const (
	RouteSignUp      = "/signup"
	RouteSignIn      = "/signin"
	RouteOAuthSignIn = "/oauth/signin"
)

const defaultTimeout = 15 * time.Second

// Result is a successful exchange with the identity endpoint.
type Result struct {
	Token     string
	IsNewUser bool
}

// Profile is the normalized identity a provider reported for an OAuth
// sign-in. Optional fields left empty are omitted from the wire request
// rather than sent as nulls.
type Profile struct {
	Email     string
	Name      string
	AvatarURL string
}

// Client performs authentication exchanges against a fixed identity
// endpoint base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for tests
// and custom timeouts).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger attaches a logger. The default logger discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client for the identity endpoint at baseURL, e.g.
// "https://api.wattrack.app/api/v1/auth".
func New(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[authclient.New] baseURL is required")
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthSignInRequest struct {
	Provider     string `json:"provider"`
	IDToken      string `json:"idToken"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// wireResponse is the identity endpoint's response shape. The endpoint
// signals rejection through the error field, not the HTTP status code.
type wireResponse struct {
	Token     string `json:"token"`
	IsNewUser bool   `json:"isNewUser"`
	Error     string `json:"error"`
}

// SignUp registers a new account. Credentials are passed through
// unvalidated; the endpoint owns password and email rules.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Result, error) {
	return c.post(ctx, RouteSignUp, credentialsRequest{Email: email, Password: password})
}

// SignIn exchanges credentials for a session token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Result, error) {
	return c.post(ctx, RouteSignIn, credentialsRequest{Email: email, Password: password})
}

// SignInWithOAuth exchanges a provider access token and normalized profile
// for a session token. A nil profile sends only the provider fields.
func (c *Client) SignInWithOAuth(ctx context.Context, provider, providerAccessToken string, profile *Profile) (*Result, error) {
	req := oauthSignInRequest{
		Provider: provider,
		IDToken:  providerAccessToken,
	}
	if profile != nil {
		req.Email = profile.Email
		req.Name = profile.Name
		req.ProfileImage = profile.AvatarURL
	}
	return c.post(ctx, RouteOAuthSignIn, req)
}

func (c *Client) post(ctx context.Context, route string, body any) (*Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.post] encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.post] building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("route", route).Msg("identity endpoint unreachable")
		return nil, &TransportError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.Wrap(err, "[Client.post] decoding identity endpoint response")
	}

	// Rejection is carried in the body regardless of status code.
	if wire.Error != "" {
		c.log.Debug().Str("route", route).Str("reason", wire.Error).Msg("identity endpoint rejected request")
		return nil, &RejectedError{Message: wire.Error}
	}

	return &Result{Token: wire.Token, IsNewUser: wire.IsNewUser}, nil
}
