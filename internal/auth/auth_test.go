package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	key    = "test-signing-key"
	issuer = "presencegate"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("21CS042", RoleUser, issuer, key, time.Minute, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshID)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := Parse(pair.AccessToken, key, issuer)
	require.NoError(t, err)
	assert.Equal(t, Principal{Subject: "21CS042", Role: RoleUser}, claims.Principal())

	assert.Equal(t, TokenAccess, claims.Type)

	refresh, err := ParseAs(pair.RefreshToken, key, issuer, TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshID, refresh.ID)

	_, err = ParseAs(pair.RefreshToken, key, issuer, TokenAccess)
	assert.Error(t, err)
	_, err = ParseAs(pair.AccessToken, key, issuer, TokenRefresh)
	assert.Error(t, err)

	_, err = Parse(pair.AccessToken, "other-key", issuer)
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, key, "someone-else")
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	pair, err := Issue("21CS042", RoleUser, issuer, key, -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, key, issuer)
	assert.Error(t, err)
}

func TestPrincipalCanActOn(t *testing.T) {
	assert.True(t, Principal{Subject: "21CS042", Role: RoleUser}.CanActOn("21CS042"))
	assert.False(t, Principal{Subject: "21CS042", Role: RoleUser}.CanActOn("21CS043"))
	assert.True(t, Principal{Subject: "staff", Role: RoleAdmin}.CanActOn("21CS043"))
	assert.False(t, Principal{}.CanActOn(""))
}

func TestBearerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Bearer(key, issuer), func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, p.Subject)
	})

	user, err := Issue("21CS042", RoleUser, issuer, key, time.Minute, time.Hour)
	require.NoError(t, err)

	call := func(path, authz string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call("/me", "Bearer garbage").Code)

	w := call("/me", "Bearer "+user.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "21CS042", w.Body.String())

	admin, err := Issue("staff", RoleAdmin, issuer, key, time.Minute, time.Hour)
	require.NoError(t, err)
	w = call("/me", "bearer "+admin.AccessToken)
	assert.Equal(t, "staff", w.Body.String())

	w = call("/me", "Bearer "+user.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens do not authorize requests")
}
