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

// Package keyring resolves remote actors' signing keys and caches them.
//
// A signature's keyId ("https://a.example/users/alice#main-key") names a
// key inside the actor's profile document. Resolution strips the
// fragment, fetches the actor document, checks that its public-key block
// declares exactly the requested key ID, and PEM-decodes the RSA key.
//
// # Caching
//
//	resolver, _ := keyring.NewCachingResolver(keyring.Config{
//	    Fetcher: client,
//	})
//	pub, err := resolver.ResolveKey(ctx, keyID)
//
// Successful resolutions are cached with a long TTL; failures with a
// short negative TTL so one broken or hostile server cannot trigger a
// fetch per inbound request. Expired entries are refetched, never served
// stale. Concurrent misses for the same key ID perform exactly one
// network fetch.
//
// # Failure Semantics
//
// Every failure mode — unreachable server, malformed document, key ID
// mismatch, non-RSA key — surfaces as ErrKeyUnavailable. The verifier
// maps that to a rejection; resolution never substitutes a different key
// than the one the signature named.
package keyring
