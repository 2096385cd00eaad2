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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ForYouPage-Org/saturn-federation/pkg/client"
	"github.com/ForYouPage-Org/saturn-federation/pkg/delivery"
	"github.com/ForYouPage-Org/saturn-federation/pkg/handshake"
	"github.com/ForYouPage-Org/saturn-federation/pkg/store"
)

// followPolicy reacts to handshake transitions for the local actor.
// With autoAccept on, every inbound Follow is answered with an Accept
// delivered through the dispatcher.
type followPolicy struct {
	autoAccept bool
	baseURL    string
	actorURI   string
	client     *client.Client
	dispatcher *delivery.Dispatcher
	outbox     store.OutboxStore
	logger     *slog.Logger

	// machine is set after construction; the machine takes the policy
	// as its hook set, so the two reference each other.
	machine *handshake.Machine
}

// acceptActivity is the wire form of the Accept reply. The embedded
// Follow carries actor and object so the follower can correlate it even
// without the original activity ID.
type acceptActivity struct {
	Context string      `json:"@context"`
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Actor   string      `json:"actor"`
	Object  innerFollow `json:"object"`
}

type innerFollow struct {
	Type   string `json:"type"`
	Actor  string `json:"actor"`
	Object string `json:"object"`
}

func (p *followPolicy) FollowRequested(ctx context.Context, follower, followee string) error {
	p.logger.Info("follow requested", "follower", follower, "followee", followee)
	if !p.autoAccept || followee != p.actorURI {
		return nil
	}

	remote, err := p.client.FetchActor(ctx, follower)
	if err != nil {
		return fmt.Errorf("resolving follower inbox: %w", err)
	}

	accept := acceptActivity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      fmt.Sprintf("%s/activities/%s", p.baseURL, uuid.NewString()),
		Type:    "Accept",
		Actor:   p.actorURI,
		Object: innerFollow{
			Type:   "Follow",
			Actor:  follower,
			Object: followee,
		},
	}
	payload, err := json.Marshal(accept)
	if err != nil {
		return fmt.Errorf("encoding Accept: %w", err)
	}

	if err := p.outbox.AppendOutbox(ctx, store.OutboxEntry{
		ActivityID: accept.ID,
		ActorURI:   p.actorURI,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}); err != nil {
		return fmt.Errorf("recording Accept in outbox: %w", err)
	}

	taskID, err := p.dispatcher.Enqueue(remote.Inbox, accept.ID, payload, p.actorURI)
	if err != nil {
		return fmt.Errorf("enqueueing Accept delivery: %w", err)
	}

	// The local actor has accepted; materialize the relationship now
	// rather than waiting on delivery, which may retry for hours.
	if err := p.machine.Accept(ctx, follower, followee); err != nil {
		return fmt.Errorf("applying accept transition: %w", err)
	}
	p.logger.Info("accept enqueued", "follower", follower, "task_id", taskID)
	return nil
}

func (p *followPolicy) FollowAccepted(ctx context.Context, follower, followee string) error {
	p.logger.Info("follow accepted", "follower", follower, "followee", followee)
	return nil
}

func (p *followPolicy) FollowRejected(ctx context.Context, follower, followee string) error {
	p.logger.Info("follow rejected", "follower", follower, "followee", followee)
	return nil
}

func (p *followPolicy) FollowUndone(ctx context.Context, follower, followee string) error {
	p.logger.Info("follow undone", "follower", follower, "followee", followee)
	return nil
}
