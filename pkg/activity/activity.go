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

package activity

import (
	"encoding/json"
	"fmt"
)

// ContentType is the media type federation documents are exchanged with.
const ContentType = "application/activity+json"

// Type identifies the kind of activity.
type Type string

const (
	TypeFollow Type = "Follow"
	TypeAccept Type = "Accept"
	TypeReject Type = "Reject"
	TypeUndo   Type = "Undo"
	TypeCreate Type = "Create"
	TypeDelete Type = "Delete"
)

// knownTypes is the vocabulary accepted at the trust boundary. Anything
// else is passed through to the handler collaborator unprocessed by the
// handshake layer, but must still carry an ID, type and actor.
var knownTypes = map[Type]bool{
	TypeFollow: true,
	TypeAccept: true,
	TypeReject: true,
	TypeUndo:   true,
	TypeCreate: true,
	TypeDelete: true,
}

// Known reports whether t is part of the handshake/CRUD vocabulary this
// module processes itself.
func (t Type) Known() bool { return knownTypes[t] }

// Activity is a federation activity as received on the wire. Object is
// kept raw: it may be a bare IRI string or an embedded object, and only
// the handshake layer needs to resolve it.
type Activity struct {
	Context json.RawMessage `json:"@context,omitempty"`
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Actor   string          `json:"actor"`
	Object  json.RawMessage `json:"object,omitempty"`
	To      []string        `json:"to,omitempty"`
	CC      []string        `json:"cc,omitempty"`
}

// UnmarshalActivity parses and structurally validates an activity
// document. Validation is deliberately shallow: it guarantees the fields
// every downstream consumer dereferences are present, so adversarial
// documents fail here instead of causing undefined field access later.
func UnmarshalActivity(data []byte) (*Activity, error) {
	var a Activity
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("invalid activity document: %w", err)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("activity missing id")
	}
	if a.Type == "" {
		return nil, fmt.Errorf("activity %s missing type", a.ID)
	}
	if a.Actor == "" {
		return nil, fmt.Errorf("activity %s missing actor", a.ID)
	}
	return &a, nil
}

// ObjectID resolves the object field to an IRI. The object may be a bare
// string or an embedded object carrying an "id" field.
func (a *Activity) ObjectID() (string, error) {
	if len(a.Object) == 0 {
		return "", fmt.Errorf("activity %s has no object", a.ID)
	}

	var iri string
	if err := json.Unmarshal(a.Object, &iri); err == nil {
		if iri == "" {
			return "", fmt.Errorf("activity %s has empty object IRI", a.ID)
		}
		return iri, nil
	}

	var embedded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(a.Object, &embedded); err != nil {
		return "", fmt.Errorf("activity %s object is neither IRI nor object: %w", a.ID, err)
	}
	if embedded.ID == "" {
		return "", fmt.Errorf("activity %s embedded object missing id", a.ID)
	}
	return embedded.ID, nil
}

// InnerActivity decodes the object field as an embedded activity. Undo
// carries the activity being undone as its object.
func (a *Activity) InnerActivity() (*Activity, error) {
	if len(a.Object) == 0 {
		return nil, fmt.Errorf("activity %s has no object", a.ID)
	}
	var inner Activity
	if err := json.Unmarshal(a.Object, &inner); err != nil {
		return nil, fmt.Errorf("activity %s object is not an activity: %w", a.ID, err)
	}
	if inner.Type == "" {
		return nil, fmt.Errorf("activity %s embedded object missing type", a.ID)
	}
	return &inner, nil
}
