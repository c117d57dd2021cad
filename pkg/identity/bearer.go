package identity

import (
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/keyportal/keyportal/pkg/errs"
)

// BearerExtractor decodes the bearer token's claims without verifying
// the signature. An upstream validator is trusted to have checked it.
type BearerExtractor struct {
}

func (e BearerExtractor) Extract(r *http.Request) (Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Identity{}, errs.NewUnauthenticated("Authentication required")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return Identity{}, errs.NewUnauthenticated("Authentication required")
	}
	return FromToken(token)
}

// FromToken maps the unverified claims of an access token into an
// Identity. Malformed tokens yield InvalidToken.
func FromToken(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, _, err := new(jwt.Parser).ParseUnverified(token, claims)
	if err != nil {
		return Identity{}, errs.NewInvalidToken("Invalid token")
	}
	sub := stringClaim(claims, "sub")
	if sub == "" {
		return Identity{}, errs.NewUnauthenticated("Authentication required")
	}
	preferred := stringClaim(claims, "preferred_username")
	if preferred == "" {
		preferred = sub
	}
	return Identity{
		Subject:           sub,
		PreferredUsername: preferred,
		Email:             stringClaim(claims, "email"),
		FirstName:         stringClaim(claims, "given_name"),
		LastName:          stringClaim(claims, "family_name"),
		Issuer:            stringClaim(claims, "iss"),
		Roles:             realmRoles(claims),
		Groups:            stringListClaim(claims, "groups"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

func stringListClaim(claims jwt.MapClaims, name string) []string {
	items := make([]string, 0)
	list, ok := claims[name].([]interface{})
	if !ok {
		return items
	}
	for _, item := range list {
		if s, ok := item.(string); ok {
			items = append(items, s)
		}
	}
	return items
}

// realmRoles digs the roles out of the provider's nested
// realm_access claim.
func realmRoles(claims jwt.MapClaims) []string {
	realmAccess, ok := claims["realm_access"].(map[string]interface{})
	if !ok {
		return make([]string, 0)
	}
	return stringListClaim(realmAccess, "roles")
}
