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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ForYouPage-Org/saturn-federation/pkg/activity"
	"github.com/ForYouPage-Org/saturn-federation/pkg/handshake"
	"github.com/ForYouPage-Org/saturn-federation/pkg/store"
)

// ActivityHandler consumes verified non-handshake activities (Create,
// Delete and anything the handshake machine does not handle). The
// handshake machine has already recorded the activity ID, so the
// handler never sees the same activity twice.
type ActivityHandler interface {
	HandleActivity(ctx context.Context, act *activity.Activity, sender string) error
}

// ActivityHandlerFunc adapts a function to ActivityHandler.
type ActivityHandlerFunc func(ctx context.Context, act *activity.Activity, sender string) error

func (f ActivityHandlerFunc) HandleActivity(ctx context.Context, act *activity.Activity, sender string) error {
	return f(ctx, act, sender)
}

// InboxHandler accepts verified activities into the handshake machine
// and forwards the remainder to the activity handler.
type InboxHandler struct {
	machine *handshake.Machine
	handler ActivityHandler
	logger  *slog.Logger
}

// NewInboxHandler creates an inbox endpoint. handler may be nil, in
// which case non-handshake activities are accepted and dropped.
func NewInboxHandler(machine *handshake.Machine, handler ActivityHandler, logger *slog.Logger) *InboxHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &InboxHandler{machine: machine, handler: handler, logger: logger}
}

func (h *InboxHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		// The auth middleware was not applied; refuse rather than
		// process an unauthenticated activity.
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	act, err := activity.UnmarshalActivity(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.machine.HandleInbound(r.Context(), act, identity.ActorURI)
	if err != nil {
		if errors.Is(err, handshake.ErrInvalidTransition) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, handshake.ErrActorMismatch) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.logger.Error("inbox processing failed",
			"activity_id", act.ID,
			"actor", identity.ActorURI,
			"error", err,
		)
		http.Error(w, "failed to process activity", http.StatusInternalServerError)
		return
	}

	if !result.Duplicate && !result.Handled && h.handler != nil {
		if err := h.handler.HandleActivity(r.Context(), act, identity.ActorURI); err != nil {
			h.logger.Error("activity handler failed",
				"activity_id", act.ID,
				"type", act.Type,
				"error", err,
			)
			http.Error(w, "failed to process activity", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

// outboxPageSize is how many activities one outbox page carries.
const outboxPageSize = 20

// OutboxHandler serves an actor's published activities as an
// OrderedCollection with integer-indexed pages.
type OutboxHandler struct {
	outbox store.OutboxStore

	// actorBase builds the actor IRI from the username path segment.
	actorBase func(username string) string
}

// NewOutboxHandler creates an outbox endpoint. actorBase maps the
// username route parameter to the actor IRI stored in the outbox.
func NewOutboxHandler(outbox store.OutboxStore, actorBase func(username string) string) *OutboxHandler {
	return &OutboxHandler{outbox: outbox, actorBase: actorBase}
}

// orderedCollection is the pageless collection envelope.
type orderedCollection struct {
	Context    string `json:"@context"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	TotalItems int    `json:"totalItems"`
	First      string `json:"first,omitempty"`
}

// orderedCollectionPage is one page of the collection, newest first.
type orderedCollectionPage struct {
	Context      string            `json:"@context"`
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	PartOf       string            `json:"partOf"`
	TotalItems   int               `json:"totalItems"`
	Next         string            `json:"next,omitempty"`
	OrderedItems []json.RawMessage `json:"orderedItems"`
}

func (h *OutboxHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	actorURI := h.actorBase(username)
	collectionID := requestURL(r)

	pageParam := r.URL.Query().Get("page")
	if pageParam == "" {
		_, total, err := h.outbox.OutboxPage(r.Context(), actorURI, 1, outboxPageSize)
		if err != nil {
			http.Error(w, "failed to read outbox", http.StatusInternalServerError)
			return
		}
		col := orderedCollection{
			Context:    "https://www.w3.org/ns/activitystreams",
			ID:         collectionID,
			Type:       "OrderedCollection",
			TotalItems: total,
		}
		if total > 0 {
			col.First = collectionID + "?page=1"
		}
		writeActivityJSON(w, col)
		return
	}

	page, err := strconv.Atoi(pageParam)
	if err != nil || page < 1 {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}

	entries, total, err := h.outbox.OutboxPage(r.Context(), actorURI, page, outboxPageSize)
	if err != nil {
		http.Error(w, "failed to read outbox", http.StatusInternalServerError)
		return
	}

	items := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		items = append(items, json.RawMessage(entry.Payload))
	}
	pageDoc := orderedCollectionPage{
		Context:      "https://www.w3.org/ns/activitystreams",
		ID:           fmt.Sprintf("%s?page=%d", collectionID, page),
		Type:         "OrderedCollectionPage",
		PartOf:       collectionID,
		TotalItems:   total,
		OrderedItems: items,
	}
	if page*outboxPageSize < total {
		pageDoc.Next = fmt.Sprintf("%s?page=%d", collectionID, page+1)
	}
	writeActivityJSON(w, pageDoc)
}

// requestURL reconstructs the absolute URL of the request without its
// query string.
func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}

func writeActivityJSON(w http.ResponseWriter, doc any) {
	w.Header().Set("Content-Type", activity.ContentType)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		// Headers are already out; nothing recoverable remains.
		return
	}
}

// Routes assembles the federation HTTP surface: a verified inbox per
// actor and a public outbox collection.
func Routes(auth *AuthMiddleware, inbox *InboxHandler, outbox *OutboxHandler) chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/users/{username}/inbox", auth.Wrap(inbox))
	r.Method(http.MethodGet, "/users/{username}/outbox", outbox)
	return r
}
