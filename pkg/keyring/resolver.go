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

package keyring

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/ForYouPage-Org/saturn-federation/pkg/activity"
)

// ErrKeyUnavailable reports that a public key could not be resolved:
// the actor fetch failed, the document was invalid, or the declared key
// ID did not match the requested one. Verification treats all of these
// the same way; it never falls back to a different key.
var ErrKeyUnavailable = errors.New("public key unavailable")

// ActorFetcher fetches a remote actor document. Implemented by the
// client package; abstracted here so tests can count fetches.
type ActorFetcher interface {
	FetchActor(ctx context.Context, actorURI string) (*activity.Actor, error)
}

// Resolver resolves a signing key ID to the actor's RSA public key.
type Resolver interface {
	ResolveKey(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// actorURIFromKeyID strips the fragment from a key ID, yielding the
// actor profile URI the key document is fetched from.
func actorURIFromKeyID(keyID string) string {
	if i := strings.IndexByte(keyID, '#'); i >= 0 {
		return keyID[:i]
	}
	return keyID
}

// parsePublicKeyPem decodes a PEM-encoded public key and requires it to
// be RSA, the only key type the rsa-sha256 pipeline can use.
func parsePublicKeyPem(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}

	// PKIX is the format fediverse servers publish; some older ones use
	// PKCS#1.
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, want RSA", parsed)
		}
		return rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("public key is neither PKIX nor PKCS#1: %w", err)
	}
	return rsaKey, nil
}
