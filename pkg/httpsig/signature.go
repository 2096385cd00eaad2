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

package httpsig

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// AlgorithmRSASHA256 is the one signature algorithm accepted on this
// deployment. Signatures declaring anything else are rejected before any
// cryptographic work happens.
const AlgorithmRSASHA256 = "rsa-sha256"

// RequestTarget is the pseudo-header covering the request method and path.
const RequestTarget = "(request-target)"

var (
	// ErrMalformedSignature reports a signature header that does not
	// parse or is missing a required field.
	ErrMalformedSignature = errors.New("malformed signature header")

	// ErrUnsupportedAlgorithm reports a signature declaring an algorithm
	// outside the allow-list.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

	// ErrMissingHeader reports a covered header absent from the request.
	ErrMissingHeader = errors.New("covered header missing from request")
)

// ParsedSignature is the decoded form of a Signature header.
type ParsedSignature struct {
	// KeyID is the IRI of the signing key, usually the actor IRI plus a
	// fragment ("https://a.example/users/alice#main-key").
	KeyID string

	// Algorithm is the declared signature algorithm.
	Algorithm string

	// Headers lists the covered header names in signing order. The
	// literal field names are preserved; lookups lower-case them.
	Headers []string

	// Signature is the decoded signature bytes.
	Signature []byte
}

// Parse decodes a Signature header value of the form
//
//	keyId="...",algorithm="rsa-sha256",headers="(request-target) host date",signature="base64"
//
// All four fields are required. The covered-header list must be
// non-empty and include (request-target); a signature that does not
// bind the target can be replayed against a different endpoint.
func Parse(headerValue string) (*ParsedSignature, error) {
	if strings.TrimSpace(headerValue) == "" {
		return nil, fmt.Errorf("%w: empty header", ErrMalformedSignature)
	}

	fields := make(map[string]string)
	for _, part := range splitTopLevel(headerValue) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("%w: field %q has no value", ErrMalformedSignature, part)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		if key == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrMalformedSignature)
		}
		fields[key] = value
	}

	for _, required := range []string{"keyId", "algorithm", "headers", "signature"} {
		if fields[required] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedSignature, required)
		}
	}

	if fields["algorithm"] != AlgorithmRSASHA256 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, fields["algorithm"])
	}

	covered := strings.Fields(fields["headers"])
	if len(covered) == 0 {
		return nil, fmt.Errorf("%w: empty covered-header list", ErrMalformedSignature)
	}
	hasTarget := false
	for _, name := range covered {
		if strings.EqualFold(name, RequestTarget) {
			hasTarget = true
			break
		}
	}
	if !hasTarget {
		return nil, fmt.Errorf("%w: covered headers do not include %s", ErrMalformedSignature, RequestTarget)
	}

	sig, err := base64.StdEncoding.DecodeString(fields["signature"])
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not base64: %v", ErrMalformedSignature, err)
	}

	return &ParsedSignature{
		KeyID:     fields["keyId"],
		Algorithm: fields["algorithm"],
		Headers:   covered,
		Signature: sig,
	}, nil
}

// String serializes the signature in the same key="value" form Parse
// accepts, so signed requests round-trip through the verifier.
func (s *ParsedSignature) String() string {
	return fmt.Sprintf(`keyId="%s",algorithm="%s",headers="%s",signature="%s"`,
		s.KeyID,
		s.Algorithm,
		strings.Join(s.Headers, " "),
		base64.StdEncoding.EncodeToString(s.Signature),
	)
}

// splitTopLevel splits on commas outside quoted values. Base64 signature
// values never contain commas, but keyId IRIs may carry them in query
// strings.
func splitTopLevel(s string) []string {
	var parts []string
	var start int
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
