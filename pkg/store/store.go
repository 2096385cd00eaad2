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

package store

import (
	"context"
	"time"
)

// DedupRecord marks an activity ID as processed so redelivery of the
// same activity is accepted at the protocol layer but produces no
// second side effect.
type DedupRecord struct {
	ActivityID  string
	ActorURI    string
	Type        string
	FirstSeenAt time.Time
}

// DedupStore records processed activity IDs for a bounded retention
// window.
type DedupStore interface {
	// MarkSeen records the activity if unseen and reports whether it
	// had been seen before. The check and insert are atomic.
	MarkSeen(ctx context.Context, rec DedupRecord) (seen bool, err error)

	// EvictBefore drops records first seen before cutoff and returns
	// how many were removed.
	EvictBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// RelationshipStore persists follow-relationship state per
// (follower, followee) pair. The state values are the handshake
// package's state names; an absent row means no relationship.
type RelationshipStore interface {
	GetRelationship(ctx context.Context, follower, followee string) (string, error)
	SetRelationship(ctx context.Context, follower, followee, state string) error
	DeleteRelationship(ctx context.Context, follower, followee string) error
}

// OutboxEntry is one activity published by a local actor, retained so
// the outbox collection can serve it.
type OutboxEntry struct {
	ActivityID string
	ActorURI   string
	Payload    []byte
	CreatedAt  time.Time
}

// OutboxStore is an append-only log of published activities with paged
// reads in reverse publication order.
type OutboxStore interface {
	AppendOutbox(ctx context.Context, entry OutboxEntry) error

	// OutboxPage returns one page of the actor's activities, newest
	// first, plus the total count. Pages are 1-based.
	OutboxPage(ctx context.Context, actorURI string, page, pageSize int) ([]OutboxEntry, int, error)
}

// DeadLetter is a delivery task removed from the retry path, retained
// for inspection.
type DeadLetter struct {
	TaskID     string
	InboxURL   string
	ActivityID string
	Payload    []byte
	Attempts   int
	Reason     string
	FailedAt   time.Time
}

// DeadLetterStore retains dead-lettered deliveries.
type DeadLetterStore interface {
	AddDeadLetter(ctx context.Context, dl DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}

// Store aggregates the persistence surfaces the federation engine needs.
type Store interface {
	DedupStore
	RelationshipStore
	OutboxStore
	DeadLetterStore
}
