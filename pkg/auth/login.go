// Package auth orchestrates login and password change flows against
// the identity provider.
package auth

import (
	"context"
	"strings"

	"github.com/keyportal/keyportal/pkg/errs"
	"github.com/keyportal/keyportal/pkg/identity"
	"github.com/keyportal/keyportal/pkg/keycloak"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/keyportal/keyportal/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// The provider rejects a password grant with this description when the
// account has unresolved required actions. It is a soft-success signal
// for login, not a failure.
const requiredActionsSentinel = "Account is not fully set up"

type LoginService struct {
	provider *keycloak.Client
	logger   logrus.FieldLogger
}

func NewLoginService(provider *keycloak.Client) *LoginService {
	return &LoginService{
		provider: provider,
		logger:   log.WithField("module", "LoginService"),
	}
}

// Login authenticates the credentials against the provider. The
// advisory result covers the best-effort required-action lookup, its
// failure leaves must_change_password false and the login succeeds.
func (s *LoginService) Login(ctx context.Context, creds models.LoginRequest) (models.LoginResponse, Advisory, error) {
	var bundle models.LoginResponse

	tr, err := s.provider.RequestUserToken(ctx, creds.Username, creds.Password)
	if err != nil {
		var authErr *errs.AuthError
		if errors.As(err, &authErr) && strings.Contains(authErr.Description, requiredActionsSentinel) {
			// Authentication deferred until the password is updated.
			return models.LoginResponse{
				Roles:              make([]string, 0),
				MustChangePassword: true,
			}, Advisory{}, nil
		}
		return bundle, Advisory{}, err
	}

	id, err := identity.FromToken(tr.AccessToken)
	if err != nil {
		return bundle, Advisory{}, errors.Wrap(err, "error decoding issued access token")
	}

	bundle = models.LoginResponse{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		Roles:        id.Roles,
	}

	mustChange, advisory := s.checkPendingPasswordUpdate(ctx, creds.Username)
	if advisory.Failed() {
		s.logger.Warnf("required action check failed for %s: %v", creds.Username, advisory.Err)
	}
	bundle.MustChangePassword = mustChange
	return bundle, advisory, nil
}

func (s *LoginService) checkPendingPasswordUpdate(ctx context.Context, username string) (bool, Advisory) {
	adminToken, err := s.provider.RequestAdminToken(ctx)
	if err != nil {
		return false, Advisory{Err: errors.Wrap(err, "error acquiring admin token")}
	}
	user, err := s.provider.FindUserByUsername(ctx, adminToken, username)
	if err != nil {
		return false, Advisory{Err: errors.Wrap(err, "error resolving user")}
	}
	actions, err := s.provider.GetUserRequiredActions(ctx, adminToken, user.ID)
	if err != nil {
		return false, Advisory{Err: errors.Wrap(err, "error fetching required actions")}
	}
	for _, action := range actions {
		if action == keycloak.RequiredActionUpdatePassword {
			return true, Advisory{}
		}
	}
	return false, Advisory{}
}
