package oauthbridge_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/wattrack/go-auth-client/authclient"
	"github.com/wattrack/go-auth-client/oauthbridge"
)

const (
	testClientID    = "client-1"
	testIssuer      = "https://issuer.test"
	testAccessToken = "tok123"
	testAuthCode    = "authcode-1"
)

// fakeLauncher completes the consent step immediately, echoing back the
// state it finds in the authorization URL. It also captures the nonce so
// the token endpoint double can mint a matching ID token.
type fakeLauncher struct {
	cancelled     bool
	launchErr     error
	stateOverride string

	lastAuthURL string
	seenState   string
	seenNonce   string
}

func (l *fakeLauncher) Launch(_ context.Context, authURL string) (oauthbridge.Consent, error) {
	l.lastAuthURL = authURL

	parsed, err := url.Parse(authURL)
	if err != nil {
		return oauthbridge.Consent{}, err
	}
	l.seenState = parsed.Query().Get("state")
	l.seenNonce = parsed.Query().Get("nonce")

	if l.launchErr != nil {
		return oauthbridge.Consent{}, l.launchErr
	}
	if l.cancelled {
		return oauthbridge.Consent{Cancelled: true}, nil
	}

	state := l.seenState
	if l.stateOverride != "" {
		state = l.stateOverride
	}
	return oauthbridge.Consent{Code: testAuthCode, State: state}, nil
}

// staticKeySet trusts any signature and hands back the payload, letting
// tests mint ID tokens without real keys.
type staticKeySet struct{}

func (staticKeySet) VerifySignature(_ context.Context, jwt string) ([]byte, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return nil, errors.New("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

func mintIDToken(t *testing.T, nonce string) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"iss":   testIssuer,
		"aud":   testClientID,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"nonce": nonce,
	})
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

// bridgeFixture wires a bridge against httptest doubles for the provider
// (token + userinfo endpoints) and the identity endpoint.
type bridgeFixture struct {
	launcher *fakeLauncher
	bridge   *oauthbridge.Bridge

	userInfoStatus int
	tokenStatus    int
	withIDToken    bool   // mint an id_token with the nonce from the auth URL
	idTokenNonce   string // overrides the captured nonce when set

	lock           sync.Mutex
	identityBodies []map[string]any
}

func (f *bridgeFixture) identityCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.identityBodies)
}

func (f *bridgeFixture) lastIdentityBody(t *testing.T) map[string]any {
	t.Helper()
	f.lock.Lock()
	defer f.lock.Unlock()
	require.NotEmpty(t, f.identityBodies)
	return f.identityBodies[len(f.identityBodies)-1]
}

func setupBridgeFixture(t *testing.T, configure func(*bridgeFixture), options ...oauthbridge.Option) *bridgeFixture {
	t.Helper()

	f := &bridgeFixture{
		launcher:       &fakeLauncher{},
		userInfoStatus: http.StatusOK,
		tokenStatus:    http.StatusOK,
	}
	if configure != nil {
		configure(f)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenStatus != http.StatusOK {
			http.Error(w, "exchange failed", f.tokenStatus)
			return
		}
		resp := map[string]any{
			"access_token": testAccessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if f.withIDToken {
			nonce := f.launcher.seenNonce
			if f.idTokenNonce != "" {
				nonce = f.idTokenNonce
			}
			resp["id_token"] = mintIDToken(t, nonce)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+testAccessToken, r.Header.Get("Authorization"))
		if f.userInfoStatus != http.StatusOK {
			http.Error(w, "unavailable", f.userInfoStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"email":   "a@b.com",
			"name":    "A",
			"picture": "https://img.example/a.png",
		})
	})
	provider := httptest.NewServer(mux)
	t.Cleanup(provider.Close)

	identity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.lock.Lock()
		f.identityBodies = append(f.identityBodies, body)
		f.lock.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "session-tok", "isNewUser": false})
	}))
	t.Cleanup(identity.Close)

	client, err := authclient.New(identity.URL)
	require.NoError(t, err)

	bridge, err := oauthbridge.New(oauthbridge.Deps{
		OAuth: &oauth2.Config{
			ClientID:    testClientID,
			RedirectURL: "http://localhost/callback",
			Scopes:      []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  provider.URL + "/auth",
				TokenURL: provider.URL + "/token",
			},
		},
		Launcher:   f.launcher,
		AuthClient: client,
	}, "google", provider.URL+"/userinfo", options...)
	require.NoError(t, err)

	f.bridge = bridge
	return f
}

func TestSignInDelegatesNormalizedProfile(t *testing.T) {
	f := setupBridgeFixture(t, nil)

	outcome, err := f.bridge.SignIn(context.Background())
	require.NoError(t, err)
	require.Equal(t, "session-tok", outcome.Result.Token)
	require.NotNil(t, outcome.Profile)
	require.Equal(t, "a@b.com", outcome.Profile.Email)

	body := f.lastIdentityBody(t)
	require.Equal(t, "google", body["provider"])
	require.Equal(t, testAccessToken, body["idToken"])
	require.Equal(t, "a@b.com", body["email"])
	require.Equal(t, "A", body["name"])
	require.Equal(t, "https://img.example/a.png", body["profileImage"])

	require.Equal(t, oauthbridge.StateIdle, f.bridge.State())
}

func TestConsentCancellation(t *testing.T) {
	f := setupBridgeFixture(t, func(f *bridgeFixture) {
		f.launcher.cancelled = true
	})

	outcome, err := f.bridge.SignIn(context.Background())
	require.Nil(t, outcome)
	require.ErrorIs(t, err, oauthbridge.ErrCancelled)
	require.False(t, authclient.IsTransport(err))

	// Nothing was delegated and the bridge is reusable.
	require.Equal(t, 0, f.identityCalls())
	require.Equal(t, oauthbridge.StateIdle, f.bridge.State())
}

func TestLauncherFailureIsTransport(t *testing.T) {
	f := setupBridgeFixture(t, func(f *bridgeFixture) {
		f.launcher.launchErr = errors.New("browser unavailable")
	})

	_, err := f.bridge.SignIn(context.Background())
	require.True(t, authclient.IsTransport(err))
	require.Equal(t, 0, f.identityCalls())
}

func TestStateMismatchAbortsFlow(t *testing.T) {
	f := setupBridgeFixture(t, func(f *bridgeFixture) {
		f.launcher.stateOverride = "tampered"
	})

	_, err := f.bridge.SignIn(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "state mismatch")
	require.Equal(t, 0, f.identityCalls())
}

func TestExchangeFailureIsTransport(t *testing.T) {
	f := setupBridgeFixture(t, func(f *bridgeFixture) {
		f.tokenStatus = http.StatusInternalServerError
	})

	_, err := f.bridge.SignIn(context.Background())
	require.True(t, authclient.IsTransport(err))
	require.Equal(t, 0, f.identityCalls())
}

func TestProfileFetchFailureIsTransportAndNeverDelegates(t *testing.T) {
	f := setupBridgeFixture(t, func(f *bridgeFixture) {
		f.userInfoStatus = http.StatusInternalServerError
	})

	_, err := f.bridge.SignIn(context.Background())
	require.True(t, authclient.IsTransport(err))
	require.Equal(t, 0, f.identityCalls())
	require.Equal(t, oauthbridge.StateIdle, f.bridge.State())
}

func TestIDTokenNonceVerification(t *testing.T) {
	verifier := oidc.NewVerifier(testIssuer, staticKeySet{}, &oidc.Config{ClientID: testClientID})

	t.Run("matching nonce passes", func(t *testing.T) {
		f := setupBridgeFixture(t, func(f *bridgeFixture) {
			f.withIDToken = true
		}, oauthbridge.WithIDTokenVerifier(verifier))

		outcome, err := f.bridge.SignIn(context.Background())
		require.NoError(t, err)
		require.Equal(t, "session-tok", outcome.Result.Token)
	})

	t.Run("nonce mismatch aborts before profile fetch", func(t *testing.T) {
		f := setupBridgeFixture(t, func(f *bridgeFixture) {
			f.withIDToken = true
			f.idTokenNonce = "replayed"
		}, oauthbridge.WithIDTokenVerifier(verifier))

		_, err := f.bridge.SignIn(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "nonce mismatch")
		require.Equal(t, 0, f.identityCalls())
	})

	t.Run("missing id_token aborts", func(t *testing.T) {
		f := setupBridgeFixture(t, nil, oauthbridge.WithIDTokenVerifier(verifier))

		_, err := f.bridge.SignIn(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "no id_token")
		require.Equal(t, 0, f.identityCalls())
	})
}

// blockingLauncher holds the consent screen open until released.
type blockingLauncher struct {
	started chan struct{}
	release chan struct{}
}

func (l *blockingLauncher) Launch(ctx context.Context, _ string) (oauthbridge.Consent, error) {
	close(l.started)
	select {
	case <-ctx.Done():
		return oauthbridge.Consent{}, ctx.Err()
	case <-l.release:
		return oauthbridge.Consent{Cancelled: true}, nil
	}
}

func TestSecondSignInWhileConsentPending(t *testing.T) {
	launcher := &blockingLauncher{started: make(chan struct{}), release: make(chan struct{})}

	client, err := authclient.New("http://localhost:0")
	require.NoError(t, err)

	bridge, err := oauthbridge.New(oauthbridge.Deps{
		OAuth: &oauth2.Config{
			ClientID: testClientID,
			Endpoint: oauth2.Endpoint{AuthURL: "http://localhost/auth", TokenURL: "http://localhost/token"},
		},
		Launcher:   launcher,
		AuthClient: client,
	}, "google", "http://localhost/userinfo")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := bridge.SignIn(context.Background())
		done <- err
	}()

	<-launcher.started
	require.Equal(t, oauthbridge.StateAwaitingProviderConsent, bridge.State())

	_, err = bridge.SignIn(context.Background())
	require.ErrorIs(t, err, oauthbridge.ErrFlowInProgress)

	close(launcher.release)
	require.ErrorIs(t, <-done, oauthbridge.ErrCancelled)
	require.Equal(t, oauthbridge.StateIdle, bridge.State())
}
