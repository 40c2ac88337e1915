// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quizhub/quizhub/internal/clock"
)

// minTokenSecretLen is the minimum HS256 secret length in bytes.
const minTokenSecretLen = 32

// TokenIssuer issues and verifies signed resume tokens. A client that
// reconnects can present its token instead of resending credentials;
// the token carries the identity, not session state, so verification
// needs no directory access.
type TokenIssuer struct {
	secret []byte
	ttl    jwtTTL
	clock  clock.Clock
}

type jwtTTL struct {
	seconds int64
}

// NewTokenIssuer creates a TokenIssuer. The secret must be at least 32
// bytes for HS256; ttlSeconds bounds how long a resume token is valid.
func NewTokenIssuer(secret []byte, ttlSeconds int64, clk clock.Clock) (*TokenIssuer, error) {
	if len(secret) < minTokenSecretLen {
		return nil, oops.Code("TOKEN_SECRET_TOO_SHORT").
			With("min_bytes", minTokenSecretLen).
			Errorf("token secret must be at least %d bytes", minTokenSecretLen)
	}
	if ttlSeconds <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").Errorf("token ttl must be positive")
	}
	return &TokenIssuer{secret: secret, ttl: jwtTTL{seconds: ttlSeconds}, clock: clk}, nil
}

// Issue signs a resume token for identity.
func (i *TokenIssuer) Issue(identity Identity) (string, error) {
	now := i.clock.Now()
	claims := jwt.MapClaims{
		"sub":   identity.DisplayName(),
		"guest": identity.IsGuest(),
		"exp":   now.Unix() + i.ttl.seconds,
		"iat":   now.Unix(),
	}
	if reg, ok := identity.(Registered); ok {
		claims["account_id"] = reg.AccountID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify parses and validates a resume token and returns the identity
// it carries.
func (i *TokenIssuer) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, oops.Code("TOKEN_INVALID").Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock.Now))
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, oops.Code("TOKEN_INVALID").Errorf("invalid token claims")
	}

	name, _ := claims["sub"].(string)
	if name == "" {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token has no subject")
	}

	if guest, _ := claims["guest"].(bool); guest {
		return Guest{Name: name}, nil
	}

	idStr, _ := claims["account_id"].(string)
	accountID, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").
			With("account_id", idStr).
			Wrap(err)
	}
	return Registered{AccountID: accountID, Username: name}, nil
}
