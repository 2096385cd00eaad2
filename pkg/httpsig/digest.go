package httpsig

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

// DigestHeader is the RFC 3230 header carrying the body hash.
const DigestHeader = "Digest"

// Digest computes the Digest header value for a request body:
// "SHA-256=<base64 of sha256(body)>".
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyDigest checks a received Digest header value against the actual
// body bytes. Only SHA-256 digests are accepted.
func VerifyDigest(headerValue string, body []byte) error {
	algo, encoded, found := strings.Cut(headerValue, "=")
	if !found {
		return fmt.Errorf("digest header %q has no algorithm prefix", headerValue)
	}
	if !strings.EqualFold(algo, "SHA-256") {
		return fmt.Errorf("unsupported digest algorithm %q", algo)
	}
	declared, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("digest value is not base64: %w", err)
	}
	sum := sha256.Sum256(body)
	if subtle.ConstantTimeCompare(declared, sum[:]) != 1 {
		return fmt.Errorf("digest does not match body")
	}
	return nil
}
