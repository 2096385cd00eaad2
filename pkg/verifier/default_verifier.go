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

package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ForYouPage-Org/saturn-federation/pkg/httpsig"
	"github.com/ForYouPage-Org/saturn-federation/pkg/keyring"
)

// Config holds the parameters for a DefaultVerifier.
type Config struct {
	// Resolver resolves signing keys. Required.
	Resolver keyring.Resolver

	// MaxClockSkew bounds how far the request's Date header may deviate
	// from local time in either direction. Defaults to 5 minutes.
	MaxClockSkew time.Duration

	// Logger receives one Warn line per rejection. If nil, a no-op
	// logger is used.
	Logger *slog.Logger

	// NowFunc supplies the clock for skew checks. Defaults to time.Now.
	NowFunc func() time.Time
}

// DefaultVerifier runs the inbound verification pipeline: presence,
// parse, algorithm allow-list, key resolution, canonical-string build,
// signature check, digest cross-check, clock skew. Each check is
// fail-closed; the first failure aborts with its rejection reason.
type DefaultVerifier struct {
	resolver     keyring.Resolver
	maxClockSkew time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewDefaultVerifier creates a verifier from the given configuration.
func NewDefaultVerifier(cfg Config) (*DefaultVerifier, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("verifier: Resolver is required")
	}
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	return &DefaultVerifier{
		resolver:     cfg.Resolver,
		maxClockSkew: cfg.MaxClockSkew,
		logger:       cfg.Logger,
		now:          cfg.NowFunc,
	}, nil
}

// VerifyRequest authenticates an inbound request. The returned error is
// a *Rejection for every verification failure; only context cancellation
// surfaces as a plain error.
func (v *DefaultVerifier) VerifyRequest(ctx context.Context, req *http.Request, body []byte) (*Identity, error) {
	identity, err := v.verify(ctx, req, body)
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			v.logger.Warn("inbound request rejected",
				"reason", rej.Reason,
				"detail", rej.Detail,
				"method", req.Method,
				"path", req.URL.Path,
			)
		}
		return nil, err
	}
	return identity, nil
}

func (v *DefaultVerifier) verify(ctx context.Context, req *http.Request, body []byte) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	headerValue := req.Header.Get("Signature")
	if headerValue == "" {
		return nil, reject(ReasonMissingSignature, "no Signature header")
	}

	parsed, err := httpsig.Parse(headerValue)
	if err != nil {
		if errors.Is(err, httpsig.ErrUnsupportedAlgorithm) {
			return nil, reject(ReasonUnsupportedAlgorithm, "%v", err)
		}
		return nil, reject(ReasonMalformedSignature, "%v", err)
	}

	pub, err := v.resolver.ResolveKey(ctx, parsed.KeyID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("key resolution aborted: %w", ctx.Err())
		}
		return nil, reject(ReasonKeyUnavailable, "key %s: %v", parsed.KeyID, err)
	}

	path := req.URL.Path
	if path == "" {
		path = "/"
	}
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}
	// The server promotes the Host header into req.Host; put it back so
	// the covered host line can be rebuilt.
	header := req.Header
	if header.Get("Host") == "" && req.Host != "" {
		header = header.Clone()
		header.Set("Host", req.Host)
	}
	canonical, err := httpsig.CanonicalString(req.Method, path, header, parsed.Headers)
	if err != nil {
		return nil, reject(ReasonMissingHeader, "%v", err)
	}

	if err := httpsig.VerifySignature(pub, canonical, parsed.Signature); err != nil {
		return nil, reject(ReasonInvalidSignature, "key %s: %v", parsed.KeyID, err)
	}

	// Digest cross-check only applies when the header is present; the
	// signature already binds it when covered.
	if digest := req.Header.Get(httpsig.DigestHeader); digest != "" {
		if err := httpsig.VerifyDigest(digest, body); err != nil {
			return nil, reject(ReasonBodyTampered, "%v", err)
		}
	}

	if date := req.Header.Get("Date"); date != "" {
		sent, err := http.ParseTime(date)
		if err != nil {
			return nil, reject(ReasonDateSkewed, "unparseable Date %q", date)
		}
		skew := v.now().Sub(sent)
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxClockSkew {
			return nil, reject(ReasonDateSkewed, "request Date %s outside ±%s window", date, v.maxClockSkew)
		}
	}

	return &Identity{
		ActorURI: actorURI(parsed.KeyID),
		KeyID:    parsed.KeyID,
	}, nil
}

func actorURI(keyID string) string {
	for i := 0; i < len(keyID); i++ {
		if keyID[i] == '#' {
			return keyID[:i]
		}
	}
	return keyID
}
