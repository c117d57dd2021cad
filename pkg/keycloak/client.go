// Package keycloak is a thin stateless client for the identity
// provider's token endpoint and admin REST API.
package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/keyportal/keyportal/pkg/config"
	"github.com/keyportal/keyportal/pkg/errs"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RequiredActionUpdatePassword is the provider flag forcing a password
// update before full authentication succeeds.
const RequiredActionUpdatePassword = "UPDATE_PASSWORD"

// The management API is called with a token issued to the provider's
// built-in administrative client.
const (
	adminRealm    = "master"
	adminClientID = "admin-cli"
)

const tokenScopes = "openid profile email roles"

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// UserRecord is the provider's user representation, kept loose so the
// admin listing can pass records through unmodified.
type UserRecord struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Email           string   `json:"email,omitempty"`
	FirstName       string   `json:"firstName,omitempty"`
	LastName        string   `json:"lastName,omitempty"`
	Enabled         bool     `json:"enabled"`
	RequiredActions []string `json:"requiredActions,omitempty"`
}

type Client struct {
	baseURL       string
	realm         string
	clientID      string
	adminUsername string
	adminPassword string
	client        *http.Client
	logger        logrus.FieldLogger
}

func NewClient(p config.Provider) *Client {
	return &Client{
		baseURL:       strings.TrimSuffix(p.URL, "/"),
		realm:         p.Realm,
		clientID:      p.ClientID,
		adminUsername: p.AdminUsername,
		adminPassword: p.AdminPassword,
		client:        &http.Client{Timeout: p.Timeout},
		logger:        log.WithField("module", "keycloak"),
	}
}

func (c *Client) tokenURL(realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, realm)
}

func (c *Client) adminURL(path string) string {
	return fmt.Sprintf("%s/admin/realms/%s%s", c.baseURL, c.realm, path)
}

// RequestUserToken performs a password grant for the given user.
// A provider rejection comes back as AuthError with the provider's
// error description, a transport failure as ProviderUnavailable.
func (c *Client) RequestUserToken(ctx context.Context, username, password string) (TokenResponse, error) {
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {c.clientID},
		"username":   {username},
		"password":   {password},
		"scope":      {tokenScopes},
	}
	return c.requestToken(ctx, c.tokenURL(c.realm), form)
}

// RequestAdminToken obtains a management token for the configured
// administrative principal.
func (c *Client) RequestAdminToken(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {adminClientID},
		"username":   {c.adminUsername},
		"password":   {c.adminPassword},
	}
	tr, err := c.requestToken(ctx, c.tokenURL(adminRealm), form)
	if err != nil {
		return "", err
	}
	return tr.AccessToken, nil
}

func (c *Client) requestToken(ctx context.Context, tokenURL string, form url.Values) (TokenResponse, error) {
	var tr TokenResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tr, errors.Wrap(err, "error building token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Errorf("error calling token endpoint: %v", err)
		return tr, errs.NewProviderUnavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tr, errs.NewProviderUnavailable(err)
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		if err := json.Unmarshal(body, &te); err != nil || te.Description == "" {
			c.logger.Errorf("unexpected token response: status %d", resp.StatusCode)
			return tr, &errs.UnexpectedUpstreamFailure{Status: resp.StatusCode, Body: string(body)}
		}
		return tr, errs.NewAuthError(te.Description)
	}

	if err := json.Unmarshal(body, &tr); err != nil {
		return tr, errors.Wrap(err, "error unmarshalling token response")
	}
	return tr, nil
}

// FindUserByUsername resolves an exact username match through the
// admin search endpoint. Zero matches yield NotFound.
func (c *Client) FindUserByUsername(ctx context.Context, adminToken, username string) (UserRecord, error) {
	var user UserRecord
	query := url.Values{"username": {username}, "exact": {"true"}}
	users, err := c.listUsers(ctx, adminToken, query)
	if err != nil {
		return user, err
	}
	if len(users) == 0 {
		return user, errs.NewNotFound("User not found")
	}
	return users[0], nil
}

// ListUsers returns the realm's user records as the provider sends
// them.
func (c *Client) ListUsers(ctx context.Context, adminToken string) ([]UserRecord, error) {
	return c.listUsers(ctx, adminToken, nil)
}

func (c *Client) listUsers(ctx context.Context, adminToken string, query url.Values) ([]UserRecord, error) {
	usersURL := c.adminURL("/users")
	if len(query) > 0 {
		usersURL += "?" + query.Encode()
	}
	body, err := c.adminGet(ctx, adminToken, usersURL)
	if err != nil {
		return nil, err
	}
	var users []UserRecord
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling users")
	}
	return users, nil
}

// GetUserRequiredActions fetches a user's pending required actions.
func (c *Client) GetUserRequiredActions(ctx context.Context, adminToken, userID string) ([]string, error) {
	body, err := c.adminGet(ctx, adminToken, c.adminURL("/users/"+userID))
	if err != nil {
		return nil, err
	}
	var user UserRecord
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling user")
	}
	return user.RequiredActions, nil
}

// ResetPassword sets a permanent new password through the admin API.
// The provider answers 204 on success.
func (c *Client) ResetPassword(ctx context.Context, adminToken, userID, newPassword string) error {
	payload := map[string]interface{}{
		"type":      "password",
		"value":     newPassword,
		"temporary": false,
	}
	resp, err := c.adminSend(ctx, http.MethodPut, adminToken, c.adminURL("/users/"+userID+"/reset-password"), payload)
	if err != nil {
		return err
	}
	if resp != http.StatusNoContent {
		return errs.NewChangePasswordFailed(fmt.Sprintf("Password reset failed with status %d", resp))
	}
	return nil
}

// ClearRequiredActions removes any pending required actions from the
// user, so the next login is not interrupted again.
func (c *Client) ClearRequiredActions(ctx context.Context, adminToken, userID string) error {
	payload := map[string]interface{}{
		"requiredActions": []string{},
	}
	resp, err := c.adminSend(ctx, http.MethodPut, adminToken, c.adminURL("/users/"+userID), payload)
	if err != nil {
		return err
	}
	if resp >= 300 {
		return &errs.UnexpectedUpstreamFailure{Status: resp}
	}
	return nil
}

func (c *Client) adminGet(ctx context.Context, adminToken, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "error building admin request")
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Errorf("error calling admin endpoint %s: %v", reqURL, err)
		return nil, errs.NewProviderUnavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewProviderUnavailable(err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Errorf("unexpected admin response from %s: status %d", reqURL, resp.StatusCode)
		return nil, &errs.UnexpectedUpstreamFailure{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) adminSend(ctx context.Context, method, adminToken, reqURL string, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, errors.Wrap(err, "error marshalling admin payload")
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(string(body)))
	if err != nil {
		return 0, errors.Wrap(err, "error building admin request")
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Errorf("error calling admin endpoint %s: %v", reqURL, err)
		return 0, errs.NewProviderUnavailable(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
