// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
)

// DefaultTokenTTL is how long an issued credential stays valid.
const DefaultTokenTTL = 72 * time.Hour

// Claims is the payload of an issued credential.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 credentials with a shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. ttl <= 0 uses DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a credential for email.
func (i *TokenIssuer) Issue(email string) (string, error) {
	now := i.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Any failure is ErrAuthInvalid.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, base.NewConnectorError("auth", "Verify", "invalid token", err).WithKind(base.ErrAuthInvalid)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, base.NewConnectorError("auth", "Verify", "invalid token claims", nil).WithKind(base.ErrAuthInvalid)
	}
	return claims, nil
}

// BearerToken extracts the credential from an Authorization header value:
// the second space-separated field. It returns "" when there is none.
func BearerToken(header string) string {
	parts := strings.Split(strings.TrimSpace(header), " ")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Gate guards access-restricted operations.
type Gate struct {
	issuer *TokenIssuer
}

// NewGate creates a Gate backed by issuer.
func NewGate(issuer *TokenIssuer) *Gate {
	return &Gate{issuer: issuer}
}

// Check verifies the Authorization header value. A missing credential is
// ErrAuthRequired; one that fails verification is ErrAuthInvalid.
func (g *Gate) Check(authorization string) (*Claims, error) {
	token := BearerToken(authorization)
	if token == "" {
		return nil, base.NewConnectorError("auth", "Check", "no token provided", nil).WithKind(base.ErrAuthRequired)
	}
	return g.issuer.Verify(token)
}
