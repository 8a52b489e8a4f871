package oauthbridge

import "context"

// Consent is what the provider redirect carried back. Cancelled is set when
// the user dismissed or denied the consent screen; in that case the other
// fields are empty.
type Consent struct {
	Code      string
	State     string
	Cancelled bool
}

// ConsentLauncher opens the provider-hosted consent screen and blocks until
// the provider redirects back or the user abandons the flow. There is no
// timeout on the user's side of this wait; only ctx cancellation or the
// flow completing ends it.
//
// Implementations wrap whatever the platform offers: an in-app browser
// session on mobile, a loopback redirect listener on desktop, a manual
// paste prompt on a terminal.
type ConsentLauncher interface {
	Launch(ctx context.Context, authURL string) (Consent, error)
}
