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

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/ForYouPage-Org/saturn-federation/pkg/activity"
	"github.com/ForYouPage-Org/saturn-federation/pkg/httpsig"
)

// maxActorDocumentSize bounds how much of a remote actor document is
// read. Actor documents are small; anything larger is hostile or
// broken.
const maxActorDocumentSize = 1 << 20

// Client performs signed HTTP exchanges with remote federation
// servers. It signs every outgoing request, including GETs, so remote
// servers that require authorized fetch can verify the caller.
//
// Client implements keyring.ActorFetcher and can back a
// keyring.CachingResolver directly.
type Client struct {
	signer     httpsig.Signer
	httpClient *http.Client
	logger     *slog.Logger
}

// Config configures a Client.
type Config struct {
	// Signer signs all outgoing requests. Required.
	Signer httpsig.Signer

	// HTTPClient is the underlying HTTP client. If nil, a client with
	// a 15 second timeout is used.
	HTTPClient *http.Client

	// Logger receives fetch and send events. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("client: Signer is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		signer:     cfg.Signer,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// FetchActor retrieves and validates the actor document at actorURI
// with a signed GET.
func (c *Client) FetchActor(ctx context.Context, actorURI string) (*activity.Actor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, actorURI, nil)
	if err != nil {
		return nil, fmt.Errorf("building actor fetch request: %w", err)
	}
	req.Header.Set("Accept", activity.ContentType)

	if err := c.signer.SignRequest(ctx, req, nil); err != nil {
		return nil, fmt.Errorf("signing actor fetch: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", actorURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GET %s: unexpected status %d", actorURI, resp.StatusCode)
	}
	if err := checkActivityContentType(resp.Header.Get("Content-Type")); err != nil {
		return nil, fmt.Errorf("GET %s: %w", actorURI, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxActorDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading actor document: %w", err)
	}
	if len(body) > maxActorDocumentSize {
		return nil, fmt.Errorf("actor document at %s exceeds %d bytes", actorURI, maxActorDocumentSize)
	}

	actor, err := activity.UnmarshalActor(body)
	if err != nil {
		return nil, fmt.Errorf("parsing actor document from %s: %w", actorURI, err)
	}

	c.logger.Debug("fetched actor", "actor", actor.ID, "key_id", actor.PublicKey.ID)
	return actor, nil
}

// SignAndSend delivers a single activity payload to a remote inbox
// with a signed POST. It is a one-shot send with no retry; use the
// delivery dispatcher for anything that must survive a remote outage.
func (c *Client) SignAndSend(ctx context.Context, inboxURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inboxURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Content-Type", activity.ContentType)

	if err := c.signer.SignRequest(ctx, req, payload); err != nil {
		return fmt.Errorf("signing send: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", inboxURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: unexpected status %d", inboxURL, resp.StatusCode)
	}
	c.logger.Debug("sent activity", "inbox", inboxURL, "status", resp.StatusCode)
	return nil
}

// checkActivityContentType accepts application/activity+json and the
// equivalent application/ld+json with the ActivityStreams profile.
func checkActivityContentType(value string) error {
	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		return fmt.Errorf("unparseable content type %q: %w", value, err)
	}
	switch mediaType {
	case "application/activity+json":
		return nil
	case "application/ld+json":
		if params["profile"] == "https://www.w3.org/ns/activitystreams" {
			return nil
		}
	}
	return fmt.Errorf("unexpected content type %q", value)
}
