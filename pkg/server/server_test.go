package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/keyportal/keyportal/pkg/config"
	"github.com/keyportal/keyportal/pkg/identity"
	"github.com/keyportal/keyportal/pkg/keycloak"
	"github.com/keyportal/keyportal/pkg/models"
	"github.com/stretchr/testify/assert"
)

func testAccessToken() string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "u-1",
		"preferred_username": "johndoe",
		"realm_access":       map[string]interface{}{"roles": []interface{}{"user"}},
	})
	signed, _ := token.SignedString([]byte("test-secret"))
	return signed
}

// fake identity provider with the endpoints the router needs
func newFakeProviderServer(t *testing.T) *httptest.Server {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/realms/myrealm/protocol/openid-connect/token":
			r.ParseForm()
			if r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error":             "invalid_grant",
					"error_description": "Invalid user credentials",
				})
				return
			}
			json.NewEncoder(w).Encode(keycloak.TokenResponse{
				AccessToken:  testAccessToken(),
				RefreshToken: "refresh",
				ExpiresIn:    300,
			})
		case r.URL.Path == "/realms/master/protocol/openid-connect/token":
			json.NewEncoder(w).Encode(keycloak.TokenResponse{AccessToken: "admin-token"})
		case r.URL.Path == "/admin/realms/myrealm/users" && r.Method == http.MethodGet:
			username := r.URL.Query().Get("username")
			if username == "" || username == "johndoe" {
				json.NewEncoder(w).Encode([]keycloak.UserRecord{{ID: "u-1", Username: "johndoe", Enabled: true}})
				return
			}
			json.NewEncoder(w).Encode([]keycloak.UserRecord{})
		case strings.HasSuffix(r.URL.Path, "/reset-password"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/admin/realms/myrealm/users/") && r.Method == http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/admin/realms/myrealm/users/") && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(keycloak.UserRecord{ID: "u-1", Username: "johndoe"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(providerURL string) config.Config {
	conf := config.Config{
		Provider: config.Provider{
			URL:           providerURL,
			Realm:         "myrealm",
			ClientID:      "myapp",
			AdminUsername: "admin",
			AdminPassword: "admin",
			Timeout:       2 * time.Second,
		},
	}
	config.SetConfig(conf)
	return config.GetConfig()
}

func setupTestRouter(t *testing.T, providerURL string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router, err := SetupRouter(testConfig(providerURL))
	assert.NoError(t, err)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func asUser(roles string) map[string]string {
	return map[string]string{
		identity.HeaderUser:  "johndoe",
		identity.HeaderRoles: roles,
	}
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)
	recorder := doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, recorder.Body.String())
}

// Every protected endpoint must reject requests without identity
// evidence, never 200.
func TestProtectedEndpointsRequireIdentity(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)
	paths := []string{
		"/api/user/me",
		"/api/dashboard",
		"/api/admin/users",
		"/api/packages",
		"/api/vpn",
		"/api/console",
	}
	for _, path := range paths {
		recorder := doJSON(router, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, path)
	}
}

func TestLogin(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)

	recorder := doJSON(router, http.MethodPost, "/api/login",
		models.LoginRequest{Username: "johndoe", Password: "secret"}, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var bundle models.LoginResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &bundle))
	assert.NotEmpty(t, bundle.AccessToken)
	assert.Equal(t, []string{"user"}, bundle.Roles)
	assert.False(t, bundle.MustChangePassword)

	recorder = doJSON(router, http.MethodPost, "/api/login",
		models.LoginRequest{Username: "johndoe", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Invalid user credentials")

	recorder = doJSON(router, http.MethodPost, "/api/login", gin.H{"username": "johndoe"}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLogin_ProviderDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()
	router := setupTestRouter(t, down.URL)

	recorder := doJSON(router, http.MethodPost, "/api/login",
		models.LoginRequest{Username: "johndoe", Password: "secret"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "unavailable")
}

func TestChangePassword(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)

	recorder := doJSON(router, http.MethodPost, "/api/change-password",
		models.ChangePasswordRequest{Username: "johndoe", OldPassword: "secret", NewPassword: "new-secret"}, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Password changed successfully")

	recorder = doJSON(router, http.MethodPost, "/api/change-password",
		models.ChangePasswordRequest{Username: "ghost", OldPassword: "secret", NewPassword: "new-secret"}, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "not found")

	// username falls back to the proxy injected identity
	recorder = doJSON(router, http.MethodPost, "/api/change-password",
		models.ChangePasswordRequest{OldPassword: "secret", NewPassword: "new-secret"}, asUser("user"))
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(router, http.MethodPost, "/api/change-password",
		models.ChangePasswordRequest{OldPassword: "secret", NewPassword: "new-secret"}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUserMe(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)

	headers := asUser("admin,user")
	headers[identity.HeaderEmail] = "john@example.com"
	headers[identity.HeaderFirstName] = "John"
	headers[identity.HeaderLastName] = "Doe"
	recorder := doJSON(router, http.MethodGet, "/api/user/me", nil, headers)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var info models.UserInfo
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &info))
	assert.Equal(t, "johndoe", info.Username)
	assert.Equal(t, "john@example.com", info.Email)
	assert.Equal(t, []string{"admin", "user"}, info.Roles)
}

func TestDashboard(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)

	recorder := doJSON(router, http.MethodGet, "/api/dashboard", nil, asUser("user"))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Welcome to the dashboard, johndoe!")
}

func TestAdminUsers(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)

	recorder := doJSON(router, http.MethodGet, "/api/admin/users", nil, asUser("user"))
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doJSON(router, http.MethodGet, "/api/admin/users", nil, asUser("admin"))
	assert.Equal(t, http.StatusOK, recorder.Code)
	var users []keycloak.UserRecord
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &users))
	assert.Equal(t, "johndoe", users[0].Username)
}

func TestResourceGroups(t *testing.T) {
	router := setupTestRouter(t, newFakeProviderServer(t).URL)

	tests := []struct {
		name       string
		method     string
		path       string
		roles      string
		wantStatus int
	}{
		{"packages_viewer_can_read", http.MethodGet, "/api/packages", "packages_viewer", http.StatusOK},
		{"dashboard_viewer_can_read", http.MethodGet, "/api/packages", "view_dashboard", http.StatusOK},
		{"viewer_cannot_write", http.MethodPost, "/api/packages", "packages_viewer", http.StatusForbidden},
		{"editor_can_write", http.MethodPost, "/api/packages", "packages_editor", http.StatusOK},
		{"admin_can_write", http.MethodPost, "/api/packages", "admin", http.StatusOK},
		{"vpn_denied_without_role", http.MethodGet, "/api/vpn", "user", http.StatusForbidden},
		{"vpn_viewer_can_read", http.MethodGet, "/api/vpn", "vpn_viewer", http.StatusOK},
		{"console_editor_can_write", http.MethodPost, "/api/console", "console_editor", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body interface{}
			if tt.method == http.MethodPost {
				body = gin.H{"value": "x"}
			}
			recorder := doJSON(router, tt.method, tt.path, body, asUser(tt.roles))
			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}

func TestBearerMode(t *testing.T) {
	conf := testConfig(newFakeProviderServer(t).URL)
	conf.Identity.Mode = "bearer"
	gin.SetMode(gin.TestMode)
	router, err := SetupRouter(conf)
	assert.NoError(t, err)

	recorder := doJSON(router, http.MethodGet, "/api/user/me", nil,
		map[string]string{"Authorization": "Bearer " + testAccessToken()})
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "johndoe")

	recorder = doJSON(router, http.MethodGet, "/api/user/me", nil,
		map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
