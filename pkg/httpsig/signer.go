package httpsig

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"
)

// Signer signs outgoing HTTP requests so the remote end can verify them
// against the signing actor's published public key.
type Signer interface {
	// SignRequest signs req in place, setting the Host, Date, Digest and
	// Signature headers. body must be the exact bytes the request will
	// send; nil is treated as an empty body.
	SignRequest(ctx context.Context, req *http.Request, body []byte) error
}

// SignedHeaders is the fixed covered set every outbound signature binds.
// Host and Date pin the destination and time window, Digest pins the
// body, (request-target) pins method and path.
var SignedHeaders = []string{RequestTarget, "host", "date", "digest"}

// RSASigner implements Signer with rsa-sha256 over the fixed covered
// set. The zero value is not usable; construct with NewRSASigner.
type RSASigner struct {
	keyID      string
	privateKey *rsa.PrivateKey

	// NowFunc supplies the Date header timestamp. Defaults to time.Now;
	// override in tests to pin the clock.
	NowFunc func() time.Time
}

// NewRSASigner creates a signer for the given key. keyID is the IRI the
// verifier resolves the matching public key from.
func NewRSASigner(keyID string, privateKey *rsa.PrivateKey) (*RSASigner, error) {
	if keyID == "" {
		return nil, fmt.Errorf("keyID cannot be empty")
	}
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	return &RSASigner{
		keyID:      keyID,
		privateKey: privateKey,
		NowFunc:    time.Now,
	}, nil
}

// SignRequest signs an HTTP request with the actor's key. The Date is
// set at call time, so retried deliveries must re-sign to stay inside
// the receiver's clock-skew window.
func (s *RSASigner) SignRequest(ctx context.Context, req *http.Request, body []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if req.URL == nil || req.URL.Host == "" {
		return fmt.Errorf("request target URL is incomplete")
	}

	now := s.NowFunc()
	req.Host = req.URL.Host
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Date", now.UTC().Format(http.TimeFormat))
	req.Header.Set(DigestHeader, Digest(body))

	path := req.URL.Path
	if path == "" {
		path = "/"
	}
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}

	canonical, err := CanonicalString(req.Method, path, req.Header, SignedHeaders)
	if err != nil {
		return fmt.Errorf("failed to build canonical string: %w", err)
	}

	sum := sha256.Sum256([]byte(canonical))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, sum[:])
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	parsed := &ParsedSignature{
		KeyID:     s.keyID,
		Algorithm: AlgorithmRSASHA256,
		Headers:   SignedHeaders,
		Signature: sig,
	}
	req.Header.Set("Signature", parsed.String())
	return nil
}

// VerifySignature checks sig over canonical with the given public key.
func VerifySignature(pub *rsa.PublicKey, canonical string, sig []byte) error {
	sum := sha256.Sum256([]byte(canonical))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], sig); err != nil {
		return fmt.Errorf("signature does not verify: %w", err)
	}
	return nil
}
