package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier(secret)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		wantUID string
		wantErr bool
	}{
		{name: "string user id", claims: jwt.MapClaims{"user_id": "u-1", "email": "a@b.c", "role": "admin", "exp": exp}, wantUID: "u-1"},
		{name: "numeric user id", claims: jwt.MapClaims{"user_id": 42, "exp": exp}, wantUID: "42"},
		{name: "sub fallback", claims: jwt.MapClaims{"sub": "firebase-uid", "exp": exp}, wantUID: "firebase-uid"},
		{name: "no subject", claims: jwt.MapClaims{"email": "a@b.c", "exp": exp}, wantErr: true},
		{name: "expired", claims: jwt.MapClaims{"user_id": "u-1", "exp": time.Now().Add(-time.Hour).Unix()}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), sign(t, jwt.SigningMethodHS256, []byte(secret), tt.claims))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUID, id.UID)
		})
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": "u-1"})
	_, err := NewJWTVerifier(secret).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_RejectsNoneAlg(t *testing.T) {
	tok := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"user_id": "u-1"})
	_, err := NewJWTVerifier(secret).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type stubVerifier struct {
	id  *Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (*Identity, error) { return s.id, s.err }

func TestChain(t *testing.T) {
	c := Chain{stubVerifier{err: ErrInvalidToken}, stubVerifier{id: &Identity{UID: "u2"}}}
	id, err := c.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UID)

	_, err = c.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Chain{stubVerifier{err: ErrInvalidToken}}.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
