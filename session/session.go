package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// Status is the process-wide authentication state.
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Profile is display metadata about the authenticated user. It rides along
// with the session when known, typically from an OAuth provider.
type Profile struct {
	Email     string
	Name      string
	AvatarURL string
}

// Session is the in-memory record of an authenticated identity. It exists
// exactly while a token is held; the token itself is opaque to this core.
type Session struct {
	Token   string
	Profile *Profile
}

// profileFromToken sniffs display claims out of a JWT-shaped token without
// verifying it. The result is cosmetic only and never feeds an
// authentication decision; opaque tokens yield nil.
func profileFromToken(token string) *Profile {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	profile := &Profile{}
	if email, ok := claims["email"].(string); ok {
		profile.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		profile.Name = name
	}
	if picture, ok := claims["picture"].(string); ok {
		profile.AvatarURL = picture
	}

	if *profile == (Profile{}) {
		return nil
	}
	return profile
}
