// Package identity builds a normalized identity record from an inbound
// request. Two interchangeable strategies exist: trusted proxy headers,
// and unverified bearer token claims. Neither checks token signatures,
// the deploying infrastructure validates tokens before they reach us.
package identity

import (
	"net/http"
	"strings"

	"github.com/keyportal/keyportal/pkg/errs"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Header names injected by the reverse proxy after it has validated the
// inbound JWT.
const (
	HeaderUser              = "X-User"
	HeaderRoles             = "X-Roles"
	HeaderGroups            = "X-Groups"
	HeaderIssuer            = "X-Issuer"
	HeaderEmail             = "X-Email"
	HeaderFirstName         = "X-First-Name"
	HeaderLastName          = "X-Last-Name"
	HeaderPreferredUsername = "X-Preferred-Username"
)

// Identity is the per-request identity record. It is never persisted.
type Identity struct {
	Subject           string
	PreferredUsername string
	Email             string
	FirstName         string
	LastName          string
	Issuer            string
	Roles             []string
	Groups            []string
}

func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (id Identity) HasGroup(group string) bool {
	for _, g := range id.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Extractor produces an Identity from a request.
type Extractor interface {
	Extract(r *http.Request) (Identity, error)
}

// NewExtractor returns the extractor for the configured deployment
// mode, "headers" or "bearer". Properties may override the default
// header names in headers mode.
func NewExtractor(mode string, properties map[string]interface{}) (Extractor, error) {
	switch mode {
	case "bearer":
		return BearerExtractor{}, nil
	case "", "headers":
		he := NewHeaderExtractor()
		if properties != nil {
			if err := mapstructure.Decode(properties, &he); err != nil {
				return nil, errors.Wrap(err, "error decoding header extractor properties")
			}
		}
		return he, nil
	}
	return nil, errors.Errorf("unknown identity mode %q", mode)
}

// HeaderExtractor trusts identity headers injected by the proxy.
type HeaderExtractor struct {
	UserHeader              string `mapstructure:"userHeader"`
	RolesHeader             string `mapstructure:"rolesHeader"`
	GroupsHeader            string `mapstructure:"groupsHeader"`
	IssuerHeader            string `mapstructure:"issuerHeader"`
	EmailHeader             string `mapstructure:"emailHeader"`
	FirstNameHeader         string `mapstructure:"firstNameHeader"`
	LastNameHeader          string `mapstructure:"lastNameHeader"`
	PreferredUsernameHeader string `mapstructure:"preferredUsernameHeader"`
}

func NewHeaderExtractor() HeaderExtractor {
	return HeaderExtractor{
		UserHeader:              HeaderUser,
		RolesHeader:             HeaderRoles,
		GroupsHeader:            HeaderGroups,
		IssuerHeader:            HeaderIssuer,
		EmailHeader:             HeaderEmail,
		FirstNameHeader:         HeaderFirstName,
		LastNameHeader:          HeaderLastName,
		PreferredUsernameHeader: HeaderPreferredUsername,
	}
}

func (e HeaderExtractor) Extract(r *http.Request) (Identity, error) {
	sub := r.Header.Get(e.UserHeader)
	if sub == "" {
		return Identity{}, errs.NewUnauthenticated("Authentication required")
	}
	preferred := r.Header.Get(e.PreferredUsernameHeader)
	if preferred == "" {
		preferred = sub
	}
	return Identity{
		Subject:           sub,
		PreferredUsername: preferred,
		Email:             r.Header.Get(e.EmailHeader),
		FirstName:         r.Header.Get(e.FirstNameHeader),
		LastName:          r.Header.Get(e.LastNameHeader),
		Issuer:            r.Header.Get(e.IssuerHeader),
		Roles:             splitList(r.Header.Get(e.RolesHeader)),
		Groups:            splitList(r.Header.Get(e.GroupsHeader)),
	}, nil
}

// splitList parses a comma separated header value. An empty value
// yields an empty slice, not a slice with one empty string.
func splitList(value string) []string {
	items := make([]string, 0)
	if value == "" {
		return items
	}
	for _, item := range strings.Split(value, ",") {
		items = append(items, strings.TrimSpace(item))
	}
	return items
}
