package verifier

import (
	"context"
	"net/http"
)

// Identity is the verified sender of an inbound request.
type Identity struct {
	// ActorURI is the key owner's profile IRI (the key ID minus its
	// fragment).
	ActorURI string

	// KeyID is the exact key the signature named.
	KeyID string
}

// RequestVerifier authenticates inbound federation requests.
type RequestVerifier interface {
	// VerifyRequest checks the request's HTTP signature and body digest.
	// body must be the fully read request body (the HTTP layer buffers
	// it). On success the verified identity is returned; on failure the
	// error is a *Rejection carrying the reason and suggested status.
	VerifyRequest(ctx context.Context, req *http.Request, body []byte) (*Identity, error)
}
