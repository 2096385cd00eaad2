// Package server provides the inbound HTTP surface of the federation
// engine: signature-verifying middleware, the per-actor inbox endpoint
// and the public outbox collection.
//
// The middleware buffers the request body once, verifies the signature
// and digest, and passes the verified sender identity to handlers via
// the request context. Handlers never see an unauthenticated request.
package server
