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
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
)

// DefaultFirebaseJWKSURL publishes the keys that sign Firebase ID tokens.
const DefaultFirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// Identity is a verified third-party identity.
type Identity struct {
	UID   string
	Email string
}

// IdentityVerifier verifies a third-party identity assertion.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

type firebaseClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// FirebaseVerifier verifies Firebase Authentication ID tokens: RS256,
// issued by securetoken.google.com for the project, audience the project.
type FirebaseVerifier struct {
	projectID string
	keyfunc   jwt.Keyfunc
}

// NewFirebaseVerifier fetches the signing keys from jwksURL and keeps them
// refreshed until ctx is done.
func NewFirebaseVerifier(ctx context.Context, projectID, jwksURL string) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	if jwksURL == "" {
		jwksURL = DefaultFirebaseJWKSURL
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client for %s: %w", jwksURL, err)
	}
	return NewFirebaseVerifierWithKeyfunc(projectID, jwks.Keyfunc), nil
}

// NewFirebaseVerifierWithKeyfunc uses kf to resolve signing keys.
func NewFirebaseVerifierWithKeyfunc(projectID string, kf jwt.Keyfunc) *FirebaseVerifier {
	return &FirebaseVerifier{projectID: projectID, keyfunc: kf}
}

// VerifyIDToken validates the token and returns the identity it asserts.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(idToken, &firebaseClaims{}, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, base.NewConnectorError("firebase", "VerifyIDToken", "id token verification failed", err).WithKind(base.ErrAuthInvalid)
	}

	claims, ok := token.Claims.(*firebaseClaims)
	if !ok || claims.Subject == "" {
		return nil, base.NewConnectorError("firebase", "VerifyIDToken", "id token has no subject", nil).WithKind(base.ErrAuthInvalid)
	}
	return &Identity{UID: claims.Subject, Email: claims.Email}, nil
}

var _ IdentityVerifier = (*FirebaseVerifier)(nil)
