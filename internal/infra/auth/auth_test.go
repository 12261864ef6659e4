package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/apicalculator/internal/domain"
	"github.com/xela07ax/apicalculator/internal/infra"
	"go.uber.org/zap"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testOptions(now func() time.Time) Options {
	return Options{Secret: testSecret, Issuer: "apicalculator", Audience: "apicalculator-clients", Now: now}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newPair(t *testing.T, issueAt, validateAt time.Time) (*Issuer, *BaseValidator) {
	t.Helper()
	iss, err := NewIssuer(testOptions(fixedClock(issueAt)))
	require.NoError(t, err)
	val, err := NewBaseValidator(testOptions(fixedClock(validateAt)))
	require.NoError(t, err)
	return iss, val
}

func alice() *domain.User {
	return &domain.User{ID: "id-alice", Username: "alice", Roles: []domain.Role{domain.RoleUser, domain.RoleAdmin}}
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iss, val := newPair(t, now, now.Add(time.Minute))

	tok, exp, err := iss.Issue(alice())
	require.NoError(t, err)
	assert.Equal(t, now.Add(TokenValidity), exp.UTC())
	assert.Len(t, strings.Split(tok, "."), 3)

	claims, err := val.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username())
	assert.Equal(t, "id-alice", claims.IdentityID)
	assert.ElementsMatch(t, []domain.Role{domain.RoleAdmin, domain.RoleUser}, claims.Roles)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "apicalculator", claims.Issuer)
	assert.True(t, claims.HasRole(domain.RoleAdmin))

	// Значение заголовка целиком тоже принимается.
	_, err = val.VerifyToken("Bearer " + tok)
	require.NoError(t, err)
}

func TestIssue_FreshTokenID(t *testing.T) {
	t.Parallel()

	now := time.Now()
	iss, val := newPair(t, now, now)

	a, _, err := iss.Issue(alice())
	require.NoError(t, err)
	b, _, err := iss.Issue(alice())
	require.NoError(t, err)

	ca, err := val.VerifyToken(a)
	require.NoError(t, err)
	cb, err := val.VerifyToken(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestIssue_NoRoles(t *testing.T) {
	t.Parallel()

	now := time.Now()
	iss, val := newPair(t, now, now)

	tok, _, err := iss.Issue(&domain.User{ID: "u1", Username: "bob"})
	require.NoError(t, err)
	claims, err := val.VerifyToken(tok)
	require.NoError(t, err)
	assert.Empty(t, claims.Roles)
	assert.False(t, claims.HasRole(domain.RoleUser))
}

func TestVerify_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{"just before expiry", now.Add(TokenValidity - time.Second), nil},
		{"exactly at expiry", now.Add(TokenValidity), domain.ErrTokenExpired},
		{"long after expiry", now.Add(48 * time.Hour), domain.ErrTokenExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			iss, val := newPair(t, now, tc.at)
			tok, _, err := iss.Issue(alice())
			require.NoError(t, err)

			_, err = val.VerifyToken(tok)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			assert.NotErrorIs(t, err, domain.ErrTokenBadSignature)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestVerify_Rejections(t *testing.T) {
	t.Parallel()

	now := time.Now()
	iss, _ := newPair(t, now, now)
	tok, _, err := iss.Issue(alice())
	require.NoError(t, err)

	other := func(mut func(*Options)) *BaseValidator {
		o := testOptions(fixedClock(now))
		mut(&o)
		v, err := NewBaseValidator(o)
		require.NoError(t, err)
		return v
	}

	t.Run("rotated secret", func(t *testing.T) {
		v := other(func(o *Options) { o.Secret = []byte("another-secret-another-secret!!") })
		_, err := v.VerifyToken(tok)
		require.ErrorIs(t, err, domain.ErrTokenBadSignature)
	})

	t.Run("wrong audience", func(t *testing.T) {
		v := other(func(o *Options) { o.Audience = "someone-else" })
		_, err := v.VerifyToken(tok)
		require.ErrorIs(t, err, domain.ErrTokenWrongAudience)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		v := other(func(o *Options) { o.Issuer = "someone-else" })
		_, err := v.VerifyToken(tok)
		require.ErrorIs(t, err, domain.ErrTokenWrongIssuer)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(tok, ".")
		tail := "AA"
		if strings.HasSuffix(parts[1], tail) {
			tail = "BB"
		}
		parts[1] = parts[1][:len(parts[1])-2] + tail
		_, err := other(func(*Options) {}).VerifyToken(strings.Join(parts, "."))
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := other(func(*Options) {}).VerifyToken("not.a.jwt")
		require.ErrorIs(t, err, domain.ErrTokenMalformed)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := other(func(*Options) {}).VerifyToken("Bearer ")
		require.ErrorIs(t, err, domain.ErrTokenMissing)
	})
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	now := time.Now()
	_, val := newPair(t, now, now)

	claims := &domain.Claims{
		IdentityID: "id-alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "apicalculator",
			Audience:  jwt.ClaimStrings{"apicalculator-clients"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = val.VerifyToken(hs512)
	require.ErrorIs(t, err, domain.ErrTokenBadSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = val.VerifyToken(none)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerify_RequiresIdentityClaim(t *testing.T) {
	t.Parallel()

	now := time.Now()
	_, val := newPair(t, now, now)

	claims := &domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "apicalculator",
			Audience:  jwt.ClaimStrings{"apicalculator-clients"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = val.VerifyToken(tok)
	require.ErrorIs(t, err, domain.ErrTokenMalformed)
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(Options{})
	require.Error(t, err)
	_, err = NewBaseValidator(Options{})
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	now := time.Now()
	iss, val := newPair(t, now, now)
	tok, _, err := iss.Issue(alice())
	require.NoError(t, err)

	metrics := infra.NewMetrics(nil)
	var seen domain.Claims
	var called bool
	h := NewMiddleware(val, zap.NewNop(), metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tok, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusTeapot},
	}

	for _, tc := range tests {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, tc.name)
		assert.Equal(t, tc.status == http.StatusTeapot, called, tc.name)
	}

	assert.Equal(t, "alice", seen.Username())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AuthFailures.WithLabelValues("token_missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthFailures.WithLabelValues("token_malformed")))
}

func TestClaimsFromContext_Empty(t *testing.T) {
	t.Parallel()

	_, ok := ClaimsFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
