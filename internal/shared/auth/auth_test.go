package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTValidator_VerifiesHMAC(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	v := NewJWTValidator("s3cret")
	v.now = func() time.Time { return now }

	token := signHS256(t, "s3cret", Claims{
		Role: "Admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, claims.HasRole("admin"))
	assert.Equal(t, fmt.Sprintf("user-1:%d", now.Add(time.Hour).Unix()), claims.SessionID)
}

func TestJWTValidator_RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	token := signHS256(t, "other", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}})
	_, err := NewJWTValidator("s3cret").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidator_UnverifiedStillChecksExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()
	v := NewJWTValidator("")
	require.False(t, v.Verifies())

	fresh := signHS256(t, "issuer-only-key", Claims{
		Roles:            []string{"Customer"},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2", ID: "sess-9", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	})
	claims, err := v.Validate(fresh)
	require.NoError(t, err)
	assert.Equal(t, "sess-9", claims.SessionID)
	assert.False(t, claims.HasRole("admin"))

	expired := signHS256(t, "issuer-only-key", Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))},
	})
	_, err = v.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidator_MissingTokenAndSubject(t *testing.T) {
	t.Parallel()

	v := NewJWTValidator("")
	_, err := v.Validate("   ")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Validate(signHS256(t, "k", Claims{}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTValidatorWithPublicKey_BadPEM(t *testing.T) {
	t.Parallel()

	_, err := NewJWTValidatorWithPublicKey("", "-----BEGIN PUBLIC KEY-----\nnope\n-----END PUBLIC KEY-----")
	assert.Error(t, err)

	v, err := NewJWTValidatorWithPublicKey("secret", "")
	require.NoError(t, err)
	assert.True(t, v.Verifies())
}

func TestClaimsAllRoles(t *testing.T) {
	t.Parallel()

	c := &Claims{Role: "Admin", Roles: []string{"admin", " Support ", ""}}
	assert.Equal(t, []string{"Admin", "Support"}, c.AllRoles())
	assert.True(t, (&Claims{}).HasRole(""))
	var nilClaims *Claims
	assert.False(t, nilClaims.HasRole("admin"))
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/ws/screens/hotels?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractToken(req, ""))

	req.Header.Set("Authorization", "bearer  from-header ")
	assert.Equal(t, "from-header", ExtractToken(req, ""))

	cookieOnly := httptest.NewRequest(http.MethodGet, "/ws/screens/hotels", nil)
	cookieOnly.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", ExtractToken(cookieOnly, "access_token"))

	assert.Equal(t, "", ExtractBearerTokenFromHeader("Basic abc"))
	assert.Equal(t, "", ExtractBearerTokenFromHeader("Bearer "))
	assert.Equal(t, "", ExtractToken(nil, ""))
}

func TestSession_UnauthorizedFiresOnce(t *testing.T) {
	t.Parallel()

	s := NewSession(" tok ", nil, "/login")
	assert.Equal(t, "tok", s.Token())
	assert.Equal(t, "/login", s.LoginPath())

	var mu sync.Mutex
	fired := 0
	s.OnUnauthorized(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Unauthorized()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fired)
	assert.True(t, s.Cleared())
	assert.Equal(t, "", s.Token())
}

func TestSession_ClearSession(t *testing.T) {
	t.Parallel()

	s := NewSession("tok", &Claims{Role: "admin"}, "")
	s.ClearSession()
	assert.Equal(t, "", s.Token())
	assert.True(t, s.Claims().HasRole("admin"))

	var nilSession *Session
	assert.Equal(t, "", nilSession.Token())
	assert.True(t, nilSession.Cleared())
}
