package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/hypercloud/internal/models"
	"github.com/mkessler/hypercloud/internal/services"
)

// TestAccountLifecycle walks the whole flow end to end over HTTP:
// register, verify with the emailed nonce, log in, read and update the
// account, fetch the public profile, and log out.
func TestAccountLifecycle(t *testing.T) {
	resetDatabase(t)

	ts := NewTestServer(testDB.DB, TestServerOptions{RegistrationOpen: true})
	defer ts.Close()

	// Register
	resp, err := ts.Request(http.MethodPost, "/v1/register", registerPayload{
		Username: "alice",
		Email:    "alice@example.com",
		Password: testPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// The verification email carried the nonce
	sent := ts.Mailer.LastSent()
	require.NotNil(t, sent)
	assert.Equal(t, "alice@example.com", sent.Email)
	require.Len(t, sent.Nonce, 64)

	// Login is refused until verification
	resp, err = ts.Request(http.MethodPost, "/v1/login", loginPayload{
		Username: "alice",
		Password: testPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Verify with the emailed nonce
	resp, err = ts.Request(http.MethodPost, "/v1/verify", verifyPayload{
		Username: "alice",
		Nonce:    sent.Nonce,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := SessionCookie(resp)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)

	var verifyResp sessionResponse
	require.NoError(t, ParseJSONResponse(resp, &verifyResp))
	assert.Equal(t, cookie.Value, verifyResp.SessionToken)

	claims, status := ts.Sessions.Verify(verifyResp.SessionToken)
	require.Equal(t, models.SessionValid, status)
	assert.Equal(t, "alice", claims.Username)
	assert.Contains(t, claims.Scopes, models.ScopeUser)

	// The nonce is consumed
	resp, err = ts.Request(http.MethodPost, "/v1/verify", verifyPayload{
		Username: "alice",
		Nonce:    sent.Nonce,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Login now succeeds
	resp, err = ts.Request(http.MethodPost, "/v1/login", loginPayload{
		Username: "alice",
		Password: testPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp sessionResponse
	require.NoError(t, ParseJSONResponse(resp, &loginResp))
	token := loginResp.SessionToken

	// Account view
	resp, err = ts.RequestWithSession(http.MethodGet, "/v1/account", token, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var account services.AccountResponse
	require.NoError(t, ParseJSONResponse(resp, &account))
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Nil(t, account.ProfileURL)

	// Account update regenerates the profile proof
	url := "dat://alice.example.com"
	resp, err = ts.RequestWithSession(http.MethodPost, "/v1/account", token, accountPatchPayload{ProfileURL: &url})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.RequestWithSession(http.MethodGet, "/v1/account", token, nil)
	require.NoError(t, err)
	require.NoError(t, ParseJSONResponse(resp, &account))
	require.NotNil(t, account.ProfileURL)
	assert.Equal(t, url, *account.ProfileURL)
	assert.NotNil(t, account.ProfileVerifyToken)

	// Public profile needs no session
	resp, err = ts.Request(http.MethodGet, "/v1/users/alice", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var profile services.ProfileResponse
	require.NoError(t, ParseJSONResponse(resp, &profile))
	assert.Equal(t, "alice", profile.Username)
	assert.NotEmpty(t, profile.CreatedAt)

	// Logout clears the cookie
	resp, err = ts.RequestWithSession(http.MethodPost, "/v1/logout", token, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cleared := SessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	resp.Body.Close()
}

func TestRegister_DuplicateUsernameConflict(t *testing.T) {
	resetDatabase(t)

	ts := NewTestServer(testDB.DB, TestServerOptions{RegistrationOpen: true})
	defer ts.Close()

	resp, err := ts.Request(http.MethodPost, "/v1/register", registerPayload{
		Username: "alice", Email: "alice@example.com", Password: testPassword,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.Request(http.MethodPost, "/v1/register", registerPayload{
		Username: "alice", Email: "other@example.com", Password: testPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, ParseJSONResponse(resp, &errResp))
	assert.Equal(t, "username_not_available", errResp.Error)
}

func TestRegister_ClosedRegistrationWhitelist(t *testing.T) {
	resetDatabase(t)

	ts := NewTestServer(testDB.DB, TestServerOptions{
		RegistrationOpen: false,
		AllowedEmails:    []string{"invited@example.com"},
	})
	defer ts.Close()

	resp, err := ts.Request(http.MethodPost, "/v1/register", registerPayload{
		Username: "walkin", Email: "walkin@example.com", Password: testPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, ParseJSONResponse(resp, &errResp))
	assert.Equal(t, "email_not_whitelisted", errResp.Error)

	resp, err = ts.Request(http.MethodPost, "/v1/register", registerPayload{
		Username: "invited", Email: "invited@example.com", Password: testPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestVerify_ViaEmailedLink(t *testing.T) {
	resetDatabase(t)

	ts := NewTestServer(testDB.DB, TestServerOptions{RegistrationOpen: true})
	defer ts.Close()

	resp, err := ts.Request(http.MethodPost, "/v1/register", registerPayload{
		Username: "bob", Email: "bob@example.com", Password: testPassword,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	sent := ts.Mailer.LastSent()
	require.NotNil(t, sent)

	// The emailed link is a GET with query parameters
	resp, err = ts.Request(http.MethodGet, "/v1/verify?username=bob&nonce="+sent.Nonce, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, SessionCookie(resp))
	resp.Body.Close()
}

func TestLogin_UnknownAndWrongPasswordLookAlike(t *testing.T) {
	resetDatabase(t)

	ts := NewTestServer(testDB.DB, TestServerOptions{RegistrationOpen: true})
	defer ts.Close()

	_, err := SeedUser(t.Context(), testDB.Pool, "alice", "alice@example.com", testPassword, true)
	require.NoError(t, err)

	readError := func(username, password string) (int, errorResponse) {
		resp, err := ts.Request(http.MethodPost, "/v1/login", loginPayload{
			Username: username, Password: password,
		}, nil)
		require.NoError(t, err)
		var errResp errorResponse
		require.NoError(t, ParseJSONResponse(resp, &errResp))
		return resp.StatusCode, errResp
	}

	unknownCode, unknownBody := readError("nobody", testPassword)
	wrongCode, wrongBody := readError("alice", "wrong-password")

	assert.Equal(t, http.StatusUnauthorized, unknownCode)
	assert.Equal(t, unknownCode, wrongCode)
	assert.Equal(t, unknownBody, wrongBody)
}

func TestAccount_RequiresSession(t *testing.T) {
	resetDatabase(t)

	ts := NewTestServer(testDB.DB, TestServerOptions{RegistrationOpen: true})
	defer ts.Close()

	resp, err := ts.Request(http.MethodGet, "/v1/account", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.RequestWithSession(http.MethodGet, "/v1/account", "garbage-token", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
