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

package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForYouPage-Org/saturn-federation/pkg/activity"
	"github.com/ForYouPage-Org/saturn-federation/pkg/handshake"
	"github.com/ForYouPage-Org/saturn-federation/pkg/httpsig"
	"github.com/ForYouPage-Org/saturn-federation/pkg/store"
	"github.com/ForYouPage-Org/saturn-federation/pkg/verifier"
)

// stubVerifier either vouches for a fixed identity or fails with a
// canned error.
type stubVerifier struct {
	identity *verifier.Identity
	err      error
}

func (v *stubVerifier) VerifyRequest(ctx context.Context, req *http.Request, body []byte) (*verifier.Identity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

func TestAuthMiddlewareRejection(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{
		err: &verifier.Rejection{Reason: verifier.ReasonInvalidSignature, Detail: "bad signature"},
	}, nil)
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on rejection")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/alice/inbox", strings.NewReader("{}")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_signature")
}

func TestAuthMiddlewareMalformedIsBadRequest(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{
		err: &verifier.Rejection{Reason: verifier.ReasonMalformedSignature},
	}, nil)
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/alice/inbox", strings.NewReader("{}")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddlewarePassesIdentityAndBody(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{
		identity: &verifier.Identity{ActorURI: "https://b.example/users/bob", KeyID: "https://b.example/users/bob#main-key"},
	}, nil)

	var gotIdentity *verifier.Identity
	var gotBody string
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = IdentityFromContext(r.Context())
		var sb strings.Builder
		buf := make([]byte, 64)
		for {
			n, err := r.Body.Read(buf)
			sb.Write(buf[:n])
			if err != nil {
				break
			}
		}
		gotBody = sb.String()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/alice/inbox", strings.NewReader(`{"type":"Follow"}`)))

	require.NotNil(t, gotIdentity)
	assert.Equal(t, "https://b.example/users/bob", gotIdentity.ActorURI)
	assert.Equal(t, `{"type":"Follow"}`, gotBody)
}

func TestAuthMiddlewareSkipsPreflight(t *testing.T) {
	m := NewAuthMiddleware(&stubVerifier{
		err: &verifier.Rejection{Reason: verifier.ReasonMissingSignature},
	}, nil)

	ran := false
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ran = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/users/alice/inbox", nil))
	assert.True(t, ran)
}

func newTestMachine(t *testing.T, st store.Store) *handshake.Machine {
	t.Helper()
	m, err := handshake.NewMachine(handshake.Config{
		Dedup:         st,
		Relationships: st,
	})
	require.NoError(t, err)
	return m
}

func followJSON(id, follower, followee string) string {
	return fmt.Sprintf(`{
  "@context": "https://www.w3.org/ns/activitystreams",
  "id": %q,
  "type": "Follow",
  "actor": %q,
  "object": %q
}`, id, follower, followee)
}

func postInbox(t *testing.T, router http.Handler, sender, body string) *httptest.ResponseRecorder {
	t.Helper()
	m := NewAuthMiddleware(&stubVerifier{identity: &verifier.Identity{ActorURI: sender}}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users/alice/inbox", strings.NewReader(body))
	m.Wrap(router).ServeHTTP(rec, req)
	return rec
}

func TestInboxFollowAccepted(t *testing.T) {
	st := store.NewMemoryStore()
	machine := newTestMachine(t, st)
	inbox := NewInboxHandler(machine, nil, nil)

	const follower = "https://b.example/users/bob"
	const followee = "https://a.example/users/alice"
	rec := postInbox(t, inbox, follower, followJSON("https://b.example/activities/1", follower, followee))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	state, err := machine.Relationship(context.Background(), follower, followee)
	require.NoError(t, err)
	assert.Equal(t, handshake.StateRequested, state)
}

func TestInboxDuplicateIsAcceptedOnce(t *testing.T) {
	st := store.NewMemoryStore()
	machine := newTestMachine(t, st)

	handled := 0
	inbox := NewInboxHandler(machine, ActivityHandlerFunc(func(ctx context.Context, act *activity.Activity, sender string) error {
		handled++
		return nil
	}), nil)

	const sender = "https://b.example/users/bob"
	body := `{"id":"https://b.example/activities/7","type":"Create","actor":"https://b.example/users/bob","object":{"id":"https://b.example/notes/1"}}`

	assert.Equal(t, http.StatusAccepted, postInbox(t, inbox, sender, body).Code)
	assert.Equal(t, http.StatusAccepted, postInbox(t, inbox, sender, body).Code)
	assert.Equal(t, 1, handled, "duplicate delivery must not re-run the handler")
}

func TestInboxInvalidTransitionIsBadRequest(t *testing.T) {
	st := store.NewMemoryStore()
	machine := newTestMachine(t, st)
	inbox := NewInboxHandler(machine, nil, nil)

	// Accept with no pending Follow.
	const followee = "https://a.example/users/alice"
	body := fmt.Sprintf(`{
  "id": "https://a.example/activities/9",
  "type": "Accept",
  "actor": %q,
  "object": {"id": "https://b.example/activities/1", "type": "Follow", "actor": "https://b.example/users/bob", "object": %q}
}`, followee, followee)

	rec := postInbox(t, inbox, followee, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInboxActorMismatchIsUnauthorized(t *testing.T) {
	st := store.NewMemoryStore()
	machine := newTestMachine(t, st)
	inbox := NewInboxHandler(machine, nil, nil)

	// The signature verified a different actor than the activity claims.
	const signer = "https://c.example/users/mallory"
	body := followJSON("https://b.example/activities/1", "https://b.example/users/bob", "https://a.example/users/alice")

	rec := postInbox(t, inbox, signer, body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInboxStructurallyInvalidActivity(t *testing.T) {
	st := store.NewMemoryStore()
	machine := newTestMachine(t, st)
	inbox := NewInboxHandler(machine, nil, nil)

	rec := postInbox(t, inbox, "https://b.example/users/bob", `{"type":"Follow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInboxRequiresMiddleware(t *testing.T) {
	st := store.NewMemoryStore()
	inbox := NewInboxHandler(newTestMachine(t, st), nil, nil)

	rec := httptest.NewRecorder()
	inbox.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/alice/inbox", strings.NewReader("{}")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func newOutboxHandler(st store.Store) *OutboxHandler {
	return NewOutboxHandler(st, func(username string) string {
		return "https://a.example/users/" + username
	})
}

func seedOutbox(t *testing.T, st store.Store, actorURI string, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s/activities/%d", actorURI, i)
		entry := store.OutboxEntry{
			ActivityID: id,
			ActorURI:   actorURI,
			Payload:    []byte(fmt.Sprintf(`{"id":%q,"type":"Create"}`, id)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, st.AppendOutbox(context.Background(), entry))
	}
}

func getOutbox(t *testing.T, h *OutboxHandler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	// chi.URLParam needs the route context; route through a real router.
	router := Routes(NewAuthMiddleware(&stubVerifier{identity: &verifier.Identity{ActorURI: "x"}}, nil),
		NewInboxHandler(nil, nil, nil), h)
	router.ServeHTTP(rec, req)

	var doc map[string]any
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	}
	return rec, doc
}

func TestOutboxEmptyCollection(t *testing.T) {
	st := store.NewMemoryStore()
	outbox := newOutboxHandler(st)

	rec, doc := getOutbox(t, outbox, "http://a.example/users/alice/outbox")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/activity+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "OrderedCollection", doc["type"])
	assert.Equal(t, float64(0), doc["totalItems"])
	assert.NotContains(t, doc, "first")
}

func TestOutboxPaging(t *testing.T) {
	st := store.NewMemoryStore()
	const actorURI = "https://a.example/users/alice"
	seedOutbox(t, st, actorURI, 25)
	outbox := newOutboxHandler(st)

	rec, doc := getOutbox(t, outbox, "http://a.example/users/alice/outbox")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(25), doc["totalItems"])
	assert.Equal(t, "http://a.example/users/alice/outbox?page=1", doc["first"])

	rec, doc = getOutbox(t, outbox, "http://a.example/users/alice/outbox?page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OrderedCollectionPage", doc["type"])
	items := doc["orderedItems"].([]any)
	require.Len(t, items, 20)
	// Newest entry first.
	first := items[0].(map[string]any)
	assert.Equal(t, actorURI+"/activities/24", first["id"])
	assert.Equal(t, "http://a.example/users/alice/outbox?page=2", doc["next"])

	rec, doc = getOutbox(t, outbox, "http://a.example/users/alice/outbox?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	items = doc["orderedItems"].([]any)
	require.Len(t, items, 5)
	assert.NotContains(t, doc, "next")
}

func TestOutboxInvalidPage(t *testing.T) {
	st := store.NewMemoryStore()
	outbox := newOutboxHandler(st)

	rec, _ := getOutbox(t, outbox, "http://a.example/users/alice/outbox?page=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = getOutbox(t, outbox, "http://a.example/users/alice/outbox?page=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestSignedInboxEndToEnd drives the whole inbound path: a signed
// Follow built with the real signer is verified by the real verifier
// and lands in the handshake machine.
func TestSignedInboxEndToEnd(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	const keyID = "https://b.example/users/bob#main-key"
	const follower = "https://b.example/users/bob"
	const followee = "https://a.example/users/alice"

	signer, err := httpsig.NewRSASigner(keyID, key)
	require.NoError(t, err)

	v, err := verifier.NewDefaultVerifier(verifier.Config{
		Resolver: staticResolver{keyID: keyID, key: &key.PublicKey},
	})
	require.NoError(t, err)

	st := store.NewMemoryStore()
	machine := newTestMachine(t, st)
	router := Routes(NewAuthMiddleware(v, nil), NewInboxHandler(machine, nil, nil), NewOutboxHandler(st, func(u string) string {
		return "https://a.example/users/" + u
	}))

	srv := httptest.NewServer(router)
	defer srv.Close()

	body := []byte(followJSON("https://b.example/activities/1", follower, followee))
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/users/alice/inbox", strings.NewReader(string(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", activity.ContentType)
	require.NoError(t, signer.SignRequest(context.Background(), req, body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	state, err := machine.Relationship(context.Background(), follower, followee)
	require.NoError(t, err)
	assert.Equal(t, handshake.StateRequested, state)
}

// staticResolver serves one pinned key.
type staticResolver struct {
	keyID string
	key   *rsa.PublicKey
}

func (r staticResolver) ResolveKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	if keyID != r.keyID {
		return nil, fmt.Errorf("unknown key %s", keyID)
	}
	return r.key, nil
}
