package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

var _ Config = EnvVars{}

// EnvVars is the environment-backed Config implementation.
type EnvVars struct {
	APIBaseURL       string        `env:"API_URL" envDefault:"http://localhost:3000/api/v1/auth"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	GoogleWebID      string        `env:"GOOGLE_WEB_CLIENT_ID"`
	GoogleAndroidID  string        `env:"GOOGLE_ANDROID_CLIENT_ID"`
	OAuthAuthURL     string        `env:"OAUTH_AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/v2/auth"`
	OAuthTokenURL    string        `env:"OAUTH_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	OAuthRedirectURL string        `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8089/oauth/callback"`
	UserInfoURL      string        `env:"OAUTH_USERINFO_URL" envDefault:"https://www.googleapis.com/userinfo/v2/me"`
	TokenPath        string        `env:"TOKEN_PATH" envDefault:"./data/session_token"`
}

func parseEnvVars() (EnvVars, error) {
	vars, err := env.ParseAs[EnvVars]()
	if err != nil {
		return EnvVars{}, errors.Wrap(err, "[config.parseEnvVars] parsing environment")
	}
	return vars, nil
}

func (e EnvVars) GetAPIBaseURL() string {
	return e.APIBaseURL
}

func (e EnvVars) GetHTTPTimeout() time.Duration {
	return e.HTTPTimeout
}

func (e EnvVars) GetGoogleWebClientID() string {
	return e.GoogleWebID
}

func (e EnvVars) GetGoogleAndroidClientID() string {
	return e.GoogleAndroidID
}

func (e EnvVars) GetOAuthAuthURL() string {
	return e.OAuthAuthURL
}

func (e EnvVars) GetOAuthTokenURL() string {
	return e.OAuthTokenURL
}

func (e EnvVars) GetOAuthRedirectURL() string {
	return e.OAuthRedirectURL
}

func (e EnvVars) GetUserInfoURL() string {
	return e.UserInfoURL
}

func (e EnvVars) GetTokenPath() string {
	return e.TokenPath
}
