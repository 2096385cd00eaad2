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

// Package activity defines the federation document types exchanged on
// the wire: activities (Follow, Accept, Reject, Undo, Create, Delete)
// and actor profiles with their embedded public-key blocks.
//
// # Trust Boundary
//
// Remote documents are adversarial input. UnmarshalActivity and
// UnmarshalActor validate structure at parse time so that malformed
// documents are rejected with a diagnostic instead of surfacing as nil
// dereferences downstream:
//
//	act, err := activity.UnmarshalActivity(body)
//	if err != nil {
//	    // reject the request, nothing else ran
//	}
//
// The object field of an activity stays raw JSON because it is
// polymorphic: a bare IRI string, an embedded object, or an embedded
// activity (Undo wraps the activity being undone). Use ObjectID or
// InnerActivity to resolve it.
//
// # Vocabulary
//
// Only the handshake and idempotent-CRUD vocabulary is modeled. Other
// activity types still parse (id, type, actor are universal) and are
// handed to the business-logic collaborator untouched.
package activity
