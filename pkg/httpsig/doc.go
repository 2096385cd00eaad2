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

// Package httpsig implements draft-cavage HTTP request signatures with
// rsa-sha256, the production algorithm of the fediverse.
//
// # Signing Requests
//
// Use RSASigner to sign outgoing requests with an actor's private key:
//
//	signer, _ := httpsig.NewRSASigner("https://a.example/users/alice#main-key", privKey)
//	req, _ := http.NewRequest("POST", "https://b.example/inbox", bytes.NewReader(body))
//	err := signer.SignRequest(ctx, req, body)
//
// This sets the Host, Date, Digest and Signature headers. The signature
// covers the fixed set {(request-target), host, date, digest}, pinning
// the destination, time window and body.
//
// # Wire Format
//
// The Signature header is a comma-separated key="value" list:
//
//	Signature: keyId="https://a.example/users/alice#main-key",
//	           algorithm="rsa-sha256",
//	           headers="(request-target) host date digest",
//	           signature="<base64>"
//
// The canonical signing string is one "name: value" line per covered
// header joined by newline, with (request-target) expanding to the
// lower-cased method and path:
//
//	(request-target): post /inbox
//	host: b.example
//	date: Sun, 01 Mar 2026 10:00:00 GMT
//	digest: SHA-256=<base64>
//
// # Parsing and Verification Primitives
//
// Parse decodes a received Signature header into a ParsedSignature,
// CanonicalString rebuilds the signing string from the actual inbound
// request, and VerifySignature checks the bytes. The full inbound
// pipeline (key resolution, digest cross-check, clock skew) lives in the
// verifier package; this package only provides the codec and the
// cryptographic primitives.
//
// # Round Trip
//
// A request signed by RSASigner always passes Parse, CanonicalString and
// VerifySignature with the corresponding public key. The codec tests
// hold this property.
package httpsig
