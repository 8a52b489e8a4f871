package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/wattrack/go-auth-client/oauthbridge"
)

var _ oauthbridge.ConsentLauncher = (*terminalConsent)(nil)

// terminalConsent drives the provider consent screen by hand: it prints the
// authorization URL for the user to open and reads the redirect back from
// stdin. An empty line cancels the flow.
type terminalConsent struct{}

func (tc *terminalConsent) Launch(ctx context.Context, authURL string) (oauthbridge.Consent, error) {
	fmt.Println("Open this URL in a browser and authorize access:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()
	fmt.Print("Paste the redirect URL or code (empty line to cancel): ")

	lines := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		lines <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return oauthbridge.Consent{}, ctx.Err()
	case line := <-lines:
		if line == "" {
			return oauthbridge.Consent{Cancelled: true}, nil
		}
		return parseRedirect(line), nil
	}
}

// parseRedirect accepts either the full redirect URL or a bare code.
func parseRedirect(line string) oauthbridge.Consent {
	if !strings.Contains(line, "://") {
		return oauthbridge.Consent{Code: line}
	}

	parsed, err := url.Parse(line)
	if err != nil {
		return oauthbridge.Consent{Code: line}
	}
	query := parsed.Query()
	if query.Get("error") != "" {
		return oauthbridge.Consent{Cancelled: true}
	}
	return oauthbridge.Consent{
		Code:  query.Get("code"),
		State: query.Get("state"),
	}
}
