package httpclient

import "net/http"

// AuthConfig holds the credentials sent with each request.
type AuthConfig struct {
	// Token is sent as "Authorization: Bearer <token>". Empty sends nothing.
	Token string
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Token: token}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil || a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}
