// Package identity turns bearer tokens into caller identities. Token issuance
// happens elsewhere; this package only verifies.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("identity: invalid or expired token")

type Identity struct {
	UID   string
	Email string
	Role  string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// JWTVerifier accepts HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	id := &Identity{}
	id.Email, _ = claims["email"].(string)
	id.Role, _ = claims["role"].(string)
	switch uid := claims["user_id"].(type) {
	case string:
		id.UID = uid
	case float64:
		id.UID = strconv.FormatInt(int64(uid), 10)
	}
	if id.UID == "" {
		id.UID, _ = claims["sub"].(string)
	}
	if id.UID == "" {
		return nil, ErrInvalidToken
	}
	return id, nil
}

type oidcClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// OIDCVerifier accepts ID tokens from an OpenID provider such as Google or
// Firebase Auth.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: audience})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UID: idToken.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// Chain tries each verifier in order and returns the first identity.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	for _, v := range c {
		if id, err := v.Verify(ctx, token); err == nil {
			return id, nil
		}
	}
	return nil, ErrInvalidToken
}
