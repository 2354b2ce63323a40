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

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// SignIn exchanges a verified identity assertion for an issued credential.
type SignIn struct {
	verifier IdentityVerifier
	issuer   *TokenIssuer
	logger   *logger.Logger
}

// NewSignIn creates the sign-in flow.
func NewSignIn(verifier IdentityVerifier, issuer *TokenIssuer, log *logger.Logger) *SignIn {
	if log == nil {
		log = logger.NewNop()
	}
	return &SignIn{verifier: verifier, issuer: issuer, logger: log.Named("signin")}
}

// Exchange verifies idToken and returns a credential carrying its email.
func (s *SignIn) Exchange(ctx context.Context, idToken string) (string, error) {
	if s.verifier == nil {
		return "", base.NewConnectorError("auth", "SignIn", "identity verification not configured", nil).WithKind(base.ErrAuthInvalid)
	}

	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn(logger.ClientID(ctx), logger.RequestID(ctx), "Sign-in rejected", map[string]interface{}{
			"error": logger.SanitizeError(err),
		})
		return "", err
	}

	token, err := s.issuer.Issue(identity.Email)
	if err != nil {
		return "", base.NewConnectorError("auth", "SignIn", "failed to issue token", err).WithKind(base.ErrAuthInvalid)
	}

	s.logger.Info(logger.ClientID(ctx), logger.RequestID(ctx), "Signed in", map[string]interface{}{
		"uid": identity.UID,
	})
	return token, nil
}
