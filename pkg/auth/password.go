package auth

import (
	"context"
	"strings"

	"github.com/keyportal/keyportal/pkg/errs"
	"github.com/keyportal/keyportal/pkg/keycloak"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/keyportal/keyportal/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type PasswordService struct {
	provider *keycloak.Client
	logger   logrus.FieldLogger
}

func NewPasswordService(provider *keycloak.Client) *PasswordService {
	return &PasswordService{
		provider: provider,
		logger:   log.WithField("module", "PasswordService"),
	}
}

// ChangePassword resets the user's password through the admin API.
// The advisory result covers the required-action clearing after a
// successful reset, its failure leaves the change successful.
func (s *PasswordService) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) (Advisory, error) {
	adminToken, err := s.provider.RequestAdminToken(ctx)
	if err != nil {
		var authErr *errs.AuthError
		if errors.As(err, &authErr) {
			// The admin principal being rejected is an operational
			// fault, not the caller's credentials.
			s.logger.Errorf("admin principal rejected: %s", authErr.Description)
			return Advisory{}, &errs.UnexpectedUpstreamFailure{Status: 401, Body: authErr.Description}
		}
		return Advisory{}, err
	}

	user, err := s.provider.FindUserByUsername(ctx, adminToken, req.Username)
	if err != nil {
		return Advisory{}, err
	}

	if err := s.verifyOldPassword(ctx, req.Username, req.OldPassword); err != nil {
		return Advisory{}, err
	}

	if err := s.provider.ResetPassword(ctx, adminToken, user.ID, req.NewPassword); err != nil {
		return Advisory{}, err
	}

	advisory := Advisory{}
	if err := s.provider.ClearRequiredActions(ctx, adminToken, user.ID); err != nil {
		advisory.Err = errors.Wrap(err, "error clearing required actions")
		s.logger.Warnf("password changed for %s but required actions were not cleared: %v", req.Username, err)
	}
	return advisory, nil
}

// verifyOldPassword attempts a password grant with the old password.
// An explicit provider rejection maps to InvalidOldPassword, except
// the unresolved-required-actions description, which means the
// password was right but the account is awaiting this very change.
// A transport failure aborts the change rather than approving it.
// Any other inconclusive outcome is logged and the change proceeds.
func (s *PasswordService) verifyOldPassword(ctx context.Context, username, oldPassword string) error {
	_, err := s.provider.RequestUserToken(ctx, username, oldPassword)
	if err == nil {
		return nil
	}
	var authErr *errs.AuthError
	if errors.As(err, &authErr) {
		if strings.Contains(authErr.Description, requiredActionsSentinel) {
			return nil
		}
		return &errs.InvalidOldPassword{}
	}
	var unavailable *errs.ProviderUnavailable
	if errors.As(err, &unavailable) {
		return err
	}
	s.logger.Warnf("old password verification inconclusive for %s: %v", username, err)
	return nil
}
