package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signUser(t *testing.T, claims UserClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("host-secret"))
	require.NoError(t, err)
	return tok
}

func TestInspectUserToken(t *testing.T) {
	now := time.Now()

	valid := signUser(t, UserClaims{
		UserID:           "alice",
		Scope:            "appUser",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	})
	claims, err := InspectUserToken(valid, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, "appUser", claims.Scope)

	_, err = InspectUserToken(valid, "bob", now)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	expired := signUser(t, UserClaims{
		UserID:           "alice",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))},
	})
	_, err = InspectUserToken(expired, "alice", now)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = InspectUserToken("not-a-jwt", "alice", now)
	assert.Error(t, err)
}

func TestBridgeToken_RoundTrip(t *testing.T) {
	tok, err := NewToken("s3cret", "host", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "host", claims.Subject)

	_, err = ParseToken("other", tok)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", JWTMiddleware("s3cret"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxSubject))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := NewToken("s3cret", "host", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "host", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p?token="+tok, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
