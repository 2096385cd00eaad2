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

// Package handshake tracks follow relationships through the
// Follow/Accept/Reject/Undo activity exchange and deduplicates
// redelivered activities.
//
// # Idempotence
//
// Remote servers deliver at-least-once, so the same activity ID can
// arrive any number of times. The machine records every processed ID;
// a duplicate is accepted at the protocol layer and short-circuited
// before any side effect, which is what makes redelivery safe. Records
// age out after a retention window.
//
// # Transitions
//
// Per (follower, followee) pair:
//
//	None      --Follow-->        Requested   (store pending, notify)
//	Requested --Accept-->        Accepted    (materialize relationship)
//	Requested --Reject-->        Rejected    (discard pending)
//	Requested --Undo(Follow)-->  None        (remove pending)
//	Accepted  --Undo(Follow)-->  None        (remove relationship)
//
// An Accept or Reject may only come from the followee, an Undo only
// from the follower, and each requires the matching prior state; any
// violation fails with ErrInvalidTransition and is logged. Side effects
// fire through the Hooks interface, an explicit registry passed at
// construction rather than ambient shared state.
package handshake
