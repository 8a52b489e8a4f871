// authctl exercises the auth core from a terminal: credential sign-up and
// sign-in, the Google consent flow, and session inspection. It is the
// module's executable surface in place of the mobile screens.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/wattrack/go-auth-client/authclient"
	"github.com/wattrack/go-auth-client/internal/config"
	"github.com/wattrack/go-auth-client/oauthbridge"
	"github.com/wattrack/go-auth-client/session"
	"github.com/wattrack/go-auth-client/tokenstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(os.Args) < 2 {
		usage()
		return errors.New("missing command")
	}

	displayAppname("WatTrack Auth")

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	c, err := config.New()
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}

	store, err := tokenstore.NewFileStore(c.GetTokenPath())
	if err != nil {
		return errors.Wrap(err, "opening token store")
	}

	manager, err := session.New(store, session.WithLogger(log))
	if err != nil {
		return errors.Wrap(err, "creating session manager")
	}
	if err := manager.Initialize(); err != nil {
		return errors.Wrap(err, "restoring session")
	}

	client, err := authclient.New(c.GetAPIBaseURL(),
		authclient.WithHTTPClient(&http.Client{Timeout: c.GetHTTPTimeout()}),
		authclient.WithLogger(log),
	)
	if err != nil {
		return errors.Wrap(err, "creating auth client")
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "signup":
		return credentialExchange(ctx, manager, os.Args[2:], client.SignUp)
	case "signin":
		return credentialExchange(ctx, manager, os.Args[2:], client.SignIn)
	case "google":
		return googleSignIn(ctx, c, client, manager, log)
	case "whoami":
		return whoami(manager)
	case "logout":
		return logout(manager)
	default:
		usage()
		return errors.Errorf("unknown command %q", os.Args[1])
	}
}

type exchangeFunc func(ctx context.Context, email, password string) (*authclient.Result, error)

func credentialExchange(ctx context.Context, manager *session.Manager, args []string, exchange exchangeFunc) error {
	if len(args) != 2 {
		return errors.New("usage: authctl signup|signin <email> <password>")
	}

	result, err := exchange(ctx, args[0], args[1])
	if err != nil {
		return describeOutcome(err)
	}

	if err := manager.Login(result.Token, nil); err != nil {
		return errors.Wrap(err, "committing session")
	}

	if result.IsNewUser {
		fmt.Println("Account created, you are signed in.")
	} else {
		fmt.Println("Welcome back, you are signed in.")
	}
	return nil
}

func googleSignIn(ctx context.Context, c config.Config, client *authclient.Client, manager *session.Manager, log zerolog.Logger) error {
	oauthConfig := &oauth2.Config{
		ClientID:    c.GetGoogleWebClientID(),
		RedirectURL: c.GetOAuthRedirectURL(),
		Scopes:      []string{"openid", "profile", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.GetOAuthAuthURL(),
			TokenURL: c.GetOAuthTokenURL(),
		},
	}

	bridge, err := oauthbridge.New(oauthbridge.Deps{
		OAuth:      oauthConfig,
		Launcher:   &terminalConsent{},
		AuthClient: client,
	}, "google", c.GetUserInfoURL(), oauthbridge.WithLogger(log))
	if err != nil {
		return errors.Wrap(err, "creating oauth bridge")
	}

	outcome, err := bridge.SignIn(ctx)
	if errors.Is(err, oauthbridge.ErrCancelled) {
		// User backed out, nothing to report.
		return nil
	}
	if err != nil {
		return describeOutcome(err)
	}

	var profile *session.Profile
	if outcome.Profile != nil {
		profile = &session.Profile{
			Email:     outcome.Profile.Email,
			Name:      outcome.Profile.Name,
			AvatarURL: outcome.Profile.AvatarURL,
		}
	}
	if err := manager.Login(outcome.Result.Token, profile); err != nil {
		return errors.Wrap(err, "committing session")
	}

	fmt.Println("Signed in with Google.")
	return nil
}

func whoami(manager *session.Manager) error {
	status, current := manager.Current()
	if status != session.StatusAuthenticated {
		fmt.Println("Not signed in.")
		return nil
	}

	fmt.Println("Signed in.")
	if current.Profile != nil {
		if current.Profile.Email != "" {
			fmt.Printf("  email: %s\n", current.Profile.Email)
		}
		if current.Profile.Name != "" {
			fmt.Printf("  name:  %s\n", current.Profile.Name)
		}
	}
	return nil
}

func logout(manager *session.Manager) error {
	if err := manager.Logout(); err != nil {
		return errors.Wrap(err, "logging out")
	}
	fmt.Println("Signed out.")
	return nil
}

// describeOutcome maps the expected outcome taxonomy onto user-facing
// messages: rejections show the endpoint's reason, transport failures
// suggest a retry.
func describeOutcome(err error) error {
	var rejected *authclient.RejectedError
	if errors.As(err, &rejected) {
		return errors.Errorf("sign-in refused: %s", rejected.Message)
	}
	if authclient.IsTransport(err) {
		return errors.New("could not reach the server, check your connection and try again")
	}
	return err
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  authctl signup <email> <password>
  authctl signin <email> <password>
  authctl google
  authctl whoami
  authctl logout`)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
