package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/apperr"
)

func TestIssueVerify(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, err := issuer.Issue(42, "ann@example.com")
	require.NoError(t, err)

	claims, err := NewVerifier("secret").Verify(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.ID)
	require.Equal(t, "ann@example.com", claims.Email)

	_, err = NewVerifier("other").Verify(token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerify_Expired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := issuer.Issue(1, "a@b.c")
	require.NoError(t, err)

	_, err = NewVerifier("secret").Verify(token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerify_RejectsNone(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewVerifier("secret").Verify(token)
	require.Error(t, err)
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseBearer(tt.header)
		if tt.wantErr {
			require.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestMiddleware(t *testing.T) {
	token, err := NewIssuer("secret", time.Hour).Issue(7, "u@example.com")
	require.NoError(t, err)

	var gotToken string
	var gotClaims *Claims
	h := Middleware(NewVerifier("secret"), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken, _ = TokenFromContext(r.Context())
		gotClaims, _ = ClaimsFromContext(r.Context())
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"error":"Invalid token"}`, rec.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, token, gotToken)
		require.Equal(t, int64(7), gotClaims.ID)
	})
}
