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

package handshake

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForYouPage-Org/saturn-federation/pkg/activity"
	"github.com/ForYouPage-Org/saturn-federation/pkg/store"
)

const (
	alice = "https://a.example/users/alice"
	bob   = "https://b.example/users/bob"
)

// recordingHooks counts side-effect invocations.
type recordingHooks struct {
	requested, accepted, rejected, undone int
}

func (h *recordingHooks) FollowRequested(ctx context.Context, follower, followee string) error {
	h.requested++
	return nil
}

func (h *recordingHooks) FollowAccepted(ctx context.Context, follower, followee string) error {
	h.accepted++
	return nil
}

func (h *recordingHooks) FollowRejected(ctx context.Context, follower, followee string) error {
	h.rejected++
	return nil
}

func (h *recordingHooks) FollowUndone(ctx context.Context, follower, followee string) error {
	h.undone++
	return nil
}

func newMachine(t *testing.T, hooks Hooks) *Machine {
	t.Helper()
	s := store.NewMemoryStore()
	m, err := NewMachine(Config{
		Dedup:         s,
		Relationships: s,
		Hooks:         hooks,
	})
	require.NoError(t, err)
	return m
}

var activitySeq int

func follow(id, follower, followee string) *activity.Activity {
	return &activity.Activity{
		ID:     id,
		Type:   activity.TypeFollow,
		Actor:  follower,
		Object: json.RawMessage(fmt.Sprintf("%q", followee)),
	}
}

func wrapping(id string, typ activity.Type, actor string, inner *activity.Activity) *activity.Activity {
	raw, _ := json.Marshal(inner)
	return &activity.Activity{
		ID:     id,
		Type:   typ,
		Actor:  actor,
		Object: raw,
	}
}

func nextID() string {
	activitySeq++
	return fmt.Sprintf("https://a.example/activities/%d", activitySeq)
}

func TestFollowThenAccept(t *testing.T) {
	hooks := &recordingHooks{}
	m := newMachine(t, hooks)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	res, err := m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.False(t, res.Duplicate)

	state, err := m.Relationship(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, StateRequested, state)
	assert.Equal(t, 1, hooks.requested)

	res, err = m.HandleInbound(ctx, wrapping(nextID(), activity.TypeAccept, bob, f), bob)
	require.NoError(t, err)
	assert.True(t, res.Handled)

	state, err = m.Relationship(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, state)
	assert.Equal(t, 1, hooks.accepted)
}

func TestFollowThenReject(t *testing.T) {
	hooks := &recordingHooks{}
	m := newMachine(t, hooks)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	_, err := m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)

	_, err = m.HandleInbound(ctx, wrapping(nextID(), activity.TypeReject, bob, f), bob)
	require.NoError(t, err)

	state, err := m.Relationship(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, state)
	assert.Equal(t, 1, hooks.rejected)
}

func TestUndoFromRequestedAndAccepted(t *testing.T) {
	for _, accept := range []bool{false, true} {
		t.Run(fmt.Sprintf("accepted=%v", accept), func(t *testing.T) {
			hooks := &recordingHooks{}
			m := newMachine(t, hooks)
			ctx := context.Background()

			f := follow(nextID(), alice, bob)
			_, err := m.HandleInbound(ctx, f, alice)
			require.NoError(t, err)

			if accept {
				_, err = m.HandleInbound(ctx, wrapping(nextID(), activity.TypeAccept, bob, f), bob)
				require.NoError(t, err)
			}

			_, err = m.HandleInbound(ctx, wrapping(nextID(), activity.TypeUndo, alice, f), alice)
			require.NoError(t, err)

			state, err := m.Relationship(ctx, alice, bob)
			require.NoError(t, err)
			assert.Equal(t, StateNone, state)
			assert.Equal(t, 1, hooks.undone)
		})
	}
}

func TestAcceptWithoutPendingFollow(t *testing.T) {
	m := newMachine(t, nil)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	_, err := m.HandleInbound(ctx, wrapping(nextID(), activity.TypeAccept, bob, f), bob)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAcceptFromWrongActor(t *testing.T) {
	m := newMachine(t, nil)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	_, err := m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)

	// Only the followee may accept; a third party cannot.
	carol := "https://c.example/users/carol"
	_, err = m.HandleInbound(ctx, wrapping(nextID(), activity.TypeAccept, carol, f), carol)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUndoWithoutRelationship(t *testing.T) {
	m := newMachine(t, nil)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	_, err := m.HandleInbound(ctx, wrapping(nextID(), activity.TypeUndo, alice, f), alice)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDuplicateActivityShortCircuits(t *testing.T) {
	hooks := &recordingHooks{}
	m := newMachine(t, hooks)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	res, err := m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	// Redelivery of the same activity ID: accepted, no side effect.
	res, err = m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 1, hooks.requested)
}

func TestAcceptReplayProducesNoSecondSideEffect(t *testing.T) {
	hooks := &recordingHooks{}
	m := newMachine(t, hooks)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	_, err := m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)

	acceptAct := wrapping(nextID(), activity.TypeAccept, bob, f)
	_, err = m.HandleInbound(ctx, acceptAct, bob)
	require.NoError(t, err)

	res, err := m.HandleInbound(ctx, acceptAct, bob)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	state, err := m.Relationship(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, state)
	assert.Equal(t, 1, hooks.accepted)
}

func TestActorMismatchRejected(t *testing.T) {
	m := newMachine(t, nil)
	ctx := context.Background()

	// Signed by bob, claims to be from alice.
	f := follow(nextID(), alice, bob)
	_, err := m.HandleInbound(ctx, f, bob)
	assert.ErrorIs(t, err, ErrActorMismatch)
}

func TestCreatePassesThroughWithDedup(t *testing.T) {
	m := newMachine(t, nil)
	ctx := context.Background()

	create := &activity.Activity{
		ID:     nextID(),
		Type:   activity.TypeCreate,
		Actor:  alice,
		Object: json.RawMessage(`{"id":"https://a.example/notes/1","type":"Note"}`),
	}

	res, err := m.HandleInbound(ctx, create, alice)
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.False(t, res.Duplicate)

	res, err = m.HandleInbound(ctx, create, alice)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestRefollowAfterUndo(t *testing.T) {
	m := newMachine(t, nil)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	_, err := m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)
	_, err = m.HandleInbound(ctx, wrapping(nextID(), activity.TypeUndo, alice, f), alice)
	require.NoError(t, err)

	// A new Follow with a fresh ID is valid again after Undo.
	f2 := follow(nextID(), alice, bob)
	res, err := m.HandleInbound(ctx, f2, alice)
	require.NoError(t, err)
	assert.True(t, res.Handled)
}

func TestEvictExpired(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m, err := NewMachine(Config{
		Dedup:         s,
		Relationships: s,
		Retention:     time.Hour,
		NowFunc:       func() time.Time { return now },
	})
	require.NoError(t, err)
	ctx := context.Background()

	f := follow(nextID(), alice, bob)
	_, err = m.HandleInbound(ctx, f, alice)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	evicted, err := m.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
}

func TestOutboundAccept(t *testing.T) {
	hooks := &recordingHooks{}
	m := newMachine(t, hooks)
	ctx := context.Background()

	_, err := m.HandleInbound(ctx, follow(nextID(), alice, bob), alice)
	require.NoError(t, err)

	// The local followee accepts without any inbound Accept activity.
	require.NoError(t, m.Accept(ctx, alice, bob))

	state, err := m.Relationship(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, state)
	assert.Equal(t, 1, hooks.accepted)

	// Accepting again references no pending follow.
	err = m.Accept(ctx, alice, bob)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOutboundAcceptWithoutPendingFollow(t *testing.T) {
	m := newMachine(t, &recordingHooks{})
	err := m.Accept(context.Background(), alice, bob)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
