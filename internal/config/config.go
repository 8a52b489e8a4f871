// Package config supplies the build/runtime configuration the auth core
// consumes: identity endpoint location, OAuth provider identifiers and
// token storage placement. Values come from the environment.
package config

import "time"

type Config interface {
	EndpointConfig
	OAuthConfig
	StorageConfig
}

// EndpointConfig locates the identity endpoint.
type EndpointConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
}

// OAuthConfig carries the provider identifiers and endpoints for the
// third-party sign-in flow.
type OAuthConfig interface {
	GetGoogleWebClientID() string
	GetGoogleAndroidClientID() string
	GetOAuthAuthURL() string
	GetOAuthTokenURL() string
	GetOAuthRedirectURL() string
	GetUserInfoURL() string
}

// StorageConfig locates device-local token storage.
type StorageConfig interface {
	GetTokenPath() string
}

// New parses configuration from the environment.
func New() (Config, error) {
	vars, err := parseEnvVars()
	if err != nil {
		return nil, err
	}
	return vars, nil
}
