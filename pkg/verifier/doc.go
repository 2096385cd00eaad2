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

// Package verifier authenticates inbound federation requests.
//
// # Pipeline
//
// DefaultVerifier runs a single fail-closed pass:
//
//  1. Signature header present, else missing_signature
//  2. Header parses, else malformed_signature
//  3. Algorithm is rsa-sha256, else unsupported_algorithm
//  4. Key resolves via the keyring, else key_unavailable
//  5. Canonical string builds over the declared covered headers from
//     the actual request, else missing_header
//  6. Signature verifies against the resolved key, else invalid_signature
//  7. Digest header (when present) matches the received body, else
//     body_tampered
//  8. Date header (when present) is inside the clock-skew window, else
//     date_skewed
//
// The first failing check aborts; there is no partial credit. On
// success the caller receives the verified Identity to attach to the
// request context.
//
// # Rejections vs Faults
//
// Every verification failure is a *Rejection with a Reason and a
// suggested HTTP status (400 for structurally broken requests, 401 for
// authentication failures), so well-behaved remote servers can tell
// retryable from non-retryable conditions. Rejections are logged with
// the reason and key ID; nothing in this package is fatal to the
// process.
//
// # Usage
//
//	v, _ := verifier.NewDefaultVerifier(verifier.Config{Resolver: resolver})
//	identity, err := v.VerifyRequest(ctx, req, body)
//	var rej *verifier.Rejection
//	if errors.As(err, &rej) {
//	    http.Error(w, rej.Error(), rej.Status())
//	    return
//	}
package verifier
