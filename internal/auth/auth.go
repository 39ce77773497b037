// Package auth verifies access tokens minted by the external identity provider and turns them into an
// internal.Actor. Users, passwords and token issuance live with the provider.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/creatorpay/internal"
)

const defaultRoleClaim = "role"

// TokenVerifier validates a bearer token and returns the caller it identifies.
type TokenVerifier interface {
	Verify(tokenString string) (internal.Actor, error)
}

// JWTVerifier accepts RS256 tokens when a public key is configured, otherwise HS256 tokens signed with the
// shared secret.
type JWTVerifier struct {
	publicKey *rsa.PublicKey
	secret    []byte
	issuer    string
	audience  string
	roleClaim string
	leeway    time.Duration
}

func NewJWTVerifier(cfg internal.SecurityConfig) (*JWTVerifier, error) {
	v := &JWTVerifier{
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		roleClaim: cfg.RoleClaim,
		leeway:    30 * time.Second,
	}
	if v.roleClaim == "" {
		v.roleClaim = defaultRoleClaim
	}

	switch {
	case cfg.JWTPublicKey != "":
		key, err := cfg.GetPublicKey()
		if err != nil {
			return nil, fmt.Errorf("load jwt public key: %w", err)
		}
		v.publicKey = key
	case cfg.JWTSecret != "":
		v.secret = []byte(cfg.JWTSecret)
	default:
		return nil, errors.New("either jwt_public_key or jwt_secret is required")
	}
	return v, nil
}

func (v *JWTVerifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired(), jwt.WithLeeway(v.leeway)}
	if v.publicKey != nil {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return opts
}

func (v *JWTVerifier) key(token *jwt.Token) (interface{}, error) {
	if v.publicKey != nil {
		return v.publicKey, nil
	}
	return v.secret, nil
}

func (v *JWTVerifier) Verify(tokenString string) (internal.Actor, error) {
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, v.key, v.parserOptions()...); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return internal.Actor{}, internal.ErrTokenExpired
		}
		return internal.Actor{}, internal.ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return internal.Actor{}, internal.ErrInvalidToken
	}

	role, _ := claims[v.roleClaim].(string)
	actor := internal.Actor{ID: subject, Role: internal.Role(role)}
	if !ValidRole(actor.Role) {
		return internal.Actor{}, internal.ErrInvalidToken
	}
	if email, ok := claims["email"].(string); ok {
		actor.Email = email
	}
	return actor, nil
}

func ValidRole(role internal.Role) bool {
	switch role {
	case internal.RoleBrand, internal.RoleInfluencer, internal.RoleAdmin:
		return true
	}
	return false
}
