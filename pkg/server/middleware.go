// Copyright (C) 2026 ForYouPage Org
//
// This file is part of saturn-federation.
//
// saturn-federation is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// saturn-federation is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with saturn-federation.  If not, see <https://www.gnu.org/licenses/>.

package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ForYouPage-Org/saturn-federation/pkg/verifier"
)

type contextKey string

const identityKey contextKey = "verified_identity"

// maxInboundBodySize bounds inbound request bodies. Activities are
// small; the limit exists so a hostile peer cannot make the body
// buffer arbitrarily large.
const maxInboundBodySize = 1 << 20

// ErrorHandler renders a verification failure to the client.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// AuthMiddleware verifies the HTTP signature on inbound requests and
// places the verified identity in the request context. The body is
// buffered once so both the digest check and the downstream handler
// can read it.
type AuthMiddleware struct {
	verifier     verifier.RequestVerifier
	errorHandler ErrorHandler
	logger       *slog.Logger
}

// NewAuthMiddleware creates middleware around the given verifier.
func NewAuthMiddleware(v verifier.RequestVerifier, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthMiddleware{
		verifier:     v,
		errorHandler: defaultErrorHandler,
		logger:       logger,
	}
}

// SetErrorHandler replaces the default rejection renderer.
func (m *AuthMiddleware) SetErrorHandler(handler ErrorHandler) {
	m.errorHandler = handler
}

// Wrap wraps an HTTP handler with signature verification.
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS preflight carries no signature.
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(io.LimitReader(r.Body, maxInboundBodySize+1))
			r.Body.Close()
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			if len(body) > maxInboundBodySize {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
		}

		identity, err := m.verifier.VerifyRequest(r.Context(), r, body)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		// Restore the body for the handler.
		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext extracts the verified sender identity placed by
// AuthMiddleware.
func IdentityFromContext(ctx context.Context) (*verifier.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*verifier.Identity)
	return identity, ok
}

// defaultErrorHandler maps a *verifier.Rejection to its suggested
// status and everything else to 500.
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *verifier.Rejection
	if errors.As(err, &rejection) {
		http.Error(w, rejection.Error(), rejection.Status())
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}
