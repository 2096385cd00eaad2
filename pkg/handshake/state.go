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

import "errors"

// State is the follow-relationship state per (follower, followee) pair.
type State string

const (
	// StateNone means no relationship exists. Stored as the empty
	// string, so an absent store row reads back as StateNone.
	StateNone State = ""

	StateRequested State = "requested"
	StateAccepted  State = "accepted"
	StateRejected  State = "rejected"
)

// ErrInvalidTransition reports an activity referencing a prior state
// that does not exist, such as an Accept with no matching pending
// Follow. Such activities are rejected and logged, never silently
// applied.
var ErrInvalidTransition = errors.New("invalid handshake transition")

// ErrActorMismatch reports an activity whose declared actor is not the
// actor the signature authenticated. An authorization failure, not a
// fault: retrying the same activity cannot succeed.
var ErrActorMismatch = errors.New("activity actor does not match verified signer")
