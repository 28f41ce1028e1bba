package aadclient

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token mirrors the JSON shape of the IMDS managed-identity token endpoint.
// The AAD v1 token endpoint produces the same fields, so one type serves both
// grant flows. The numeric fields arrive as strings on the wire.
type Token struct {
	AccessToken string `json:"access_token"`
	ClientID    string `json:"client_id,omitempty"`
	ExpiresIn   string `json:"expires_in"`
	ExpiresOn   string `json:"expires_on"`
	NotBefore   string `json:"not_before,omitempty"`
	Resource    string `json:"resource"`
	TokenType   string `json:"token_type"`
}

// ExpiresAt returns the absolute expiry of the token. The expires_on unix
// timestamp is authoritative; when it is absent or unparsable the exp claim
// of the JWT itself is used. The signature is not verified, the claim is
// only read for cache bookkeeping.
func (t *Token) ExpiresAt() time.Time {
	if unix, err := strconv.ParseInt(t.ExpiresOn, 10, 64); err == nil {
		return time.Unix(unix, 0)
	}

	parser := &jwt.Parser{}
	parsed, _, err := parser.ParseUnverified(t.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// GetDuration returns the remaining lifetime of the token. Tokens without a
// determinable expiry report zero and are never cached.
func (t *Token) GetDuration() time.Duration {
	expiresAt := t.ExpiresAt()
	if expiresAt.IsZero() {
		return 0
	}
	return time.Until(expiresAt)
}
