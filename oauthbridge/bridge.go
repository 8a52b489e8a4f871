// Package oauthbridge drives a third-party authorization flow end to end:
// consent screen, code exchange, profile fetch, then hand-off to the
// identity endpoint through the auth client.
package oauthbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/wattrack/go-auth-client/authclient"
)

// FlowState tracks where an authorization flow currently is.
type FlowState int

const (
	StateIdle FlowState = iota
	StateAwaitingProviderConsent
	StateExchangingProfile
	StateDelegating
)

func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingProviderConsent:
		return "awaiting_provider_consent"
	case StateExchangingProfile:
		return "exchanging_profile"
	case StateDelegating:
		return "delegating"
	}
	return "unknown"
}

var (
	// ErrCancelled means the user dismissed or denied the consent screen.
	// Not a failure; callers must not alert on it.
	ErrCancelled = errors.New("consent cancelled by user")

	// ErrFlowInProgress means SignIn was called while a flow was already
	// running. Only one consent screen can be up at a time.
	ErrFlowInProgress = errors.New("authorization flow already in progress")
)

// IDTokenVerifier validates a raw ID token, typically an
// *oidc.IDTokenVerifier from coreos/go-oidc.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Deps are the required collaborators for a Bridge.
type Deps struct {
	OAuth      *oauth2.Config     // provider endpoints, client ID, redirect URL, scopes
	Launcher   ConsentLauncher    // platform consent UI
	AuthClient *authclient.Client // identity endpoint hand-off
}

// Bridge runs one provider authorization flow at a time and delegates the
// outcome to the identity endpoint. It holds no session state.
type Bridge struct {
	oauth       *oauth2.Config
	launcher    ConsentLauncher
	authClient  *authclient.Client
	provider    string
	userInfoURL string
	verifier    IDTokenVerifier
	httpClient  *http.Client
	log         zerolog.Logger

	lock  sync.Mutex
	state FlowState
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger attaches a logger. The default logger discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

// WithHTTPClient replaces the HTTP client used for the profile fetch.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *Bridge) {
		b.httpClient = hc
	}
}

// WithIDTokenVerifier enables ID token verification on the exchange
// response. When set, a missing or unverifiable id_token aborts the flow
// before any profile fetch.
func WithIDTokenVerifier(v IDTokenVerifier) Option {
	return func(b *Bridge) {
		b.verifier = v
	}
}

// New creates a Bridge for the named provider. userInfoURL is the
// provider's profile endpoint, queried with a bearer token after a
// successful exchange.
func New(deps Deps, provider, userInfoURL string, options ...Option) (*Bridge, error) {
	if deps.OAuth == nil {
		return nil, errors.New("[oauthbridge.New] OAuth config is required")
	}
	if deps.Launcher == nil {
		return nil, errors.New("[oauthbridge.New] Launcher is required")
	}
	if deps.AuthClient == nil {
		return nil, errors.New("[oauthbridge.New] AuthClient is required")
	}
	if provider == "" {
		return nil, errors.New("[oauthbridge.New] provider is required")
	}
	if userInfoURL == "" {
		return nil, errors.New("[oauthbridge.New] userInfoURL is required")
	}

	bridge := &Bridge{
		oauth:       deps.OAuth,
		launcher:    deps.Launcher,
		authClient:  deps.AuthClient,
		provider:    provider,
		userInfoURL: userInfoURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		log:         zerolog.Nop(),
		state:       StateIdle,
	}

	for _, opt := range options {
		opt(bridge)
	}

	return bridge, nil
}

// State returns the current flow state.
func (b *Bridge) State() FlowState {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.state
}

func (b *Bridge) setState(state FlowState) {
	b.lock.Lock()
	b.state = state
	b.lock.Unlock()
	b.log.Debug().Str("state", state.String()).Msg("flow state changed")
}

// Outcome is a completed third-party sign-in: the identity endpoint result
// plus the normalized provider profile that produced it, for callers that
// attach the profile to the session.
type Outcome struct {
	Result  *authclient.Result
	Profile *authclient.Profile
}

// SignIn runs the full flow: consent, code exchange, profile fetch, then
// identity endpoint delegation. It blocks for as long as the user keeps the
// consent screen open. The bridge returns to idle whatever the outcome.
//
// Expected outcomes come back as branchable values: an Outcome on success,
// ErrCancelled when the user backs out, and *authclient.TransportError
// when the provider cannot be reached.
func (b *Bridge) SignIn(ctx context.Context) (*Outcome, error) {
	b.lock.Lock()
	if b.state != StateIdle {
		b.lock.Unlock()
		return nil, ErrFlowInProgress
	}
	b.state = StateAwaitingProviderConsent
	b.lock.Unlock()
	b.log.Debug().Str("state", StateAwaitingProviderConsent.String()).Msg("flow state changed")
	defer b.setState(StateIdle)

	state := uuid.New().String()
	nonce := uuid.New().String()
	authURL := b.oauth.AuthCodeURL(state, oidc.Nonce(nonce))

	consent, err := b.launcher.Launch(ctx, authURL)
	if err != nil {
		return nil, &authclient.TransportError{Cause: errors.Wrap(err, "launching consent screen")}
	}
	if consent.Cancelled {
		return nil, ErrCancelled
	}
	// Launchers that see the full redirect echo the state back; verify it
	// when they do.
	if consent.State != "" && consent.State != state {
		return nil, errors.New("[Bridge.SignIn] state mismatch in provider redirect")
	}

	b.setState(StateExchangingProfile)

	token, err := b.oauth.Exchange(ctx, consent.Code)
	if err != nil {
		return nil, &authclient.TransportError{Cause: errors.Wrap(err, "exchanging authorization code")}
	}

	if b.verifier != nil {
		if err := b.verifyIDToken(ctx, token, nonce); err != nil {
			return nil, err
		}
	}

	profile, err := b.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	b.setState(StateDelegating)

	result, err := b.authClient.SignInWithOAuth(ctx, b.provider, token.AccessToken, profile)
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: result, Profile: profile}, nil
}

func (b *Bridge) verifyIDToken(ctx context.Context, token *oauth2.Token, nonce string) error {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return errors.New("[Bridge.verifyIDToken] no id_token in provider response")
	}

	idToken, err := b.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return errors.Wrap(err, "[Bridge.verifyIDToken] verification failed")
	}

	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return errors.Wrap(err, "[Bridge.verifyIDToken] extracting claims")
	}
	if claims.Nonce != nonce {
		return errors.New("[Bridge.verifyIDToken] nonce mismatch")
	}
	return nil
}

// providerProfile is the provider's user-info response, Google userinfo v2
// shaped.
type providerProfile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (b *Bridge) fetchProfile(ctx context.Context, accessToken string) (*authclient.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.userInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Bridge.fetchProfile] building request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &authclient.TransportError{Cause: errors.Wrap(err, "fetching provider profile")}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &authclient.TransportError{Cause: errors.Errorf("provider profile endpoint returned %d", resp.StatusCode)}
	}

	var profile providerProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, errors.Wrap(err, "[Bridge.fetchProfile] decoding provider profile")
	}

	return &authclient.Profile{
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.Picture,
	}, nil
}
