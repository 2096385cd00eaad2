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

package delivery

import (
	"fmt"
	"time"
)

// Task is one pending delivery of one activity to one remote inbox.
// The payload is immutable once enqueued; only the retry bookkeeping
// changes. The dispatcher owns the task until it is terminal
// (delivered, dead-lettered, or cancelled).
type Task struct {
	// ID identifies the task for cancellation and dead-letter
	// inspection.
	ID string

	// InboxURL is the remote inbox the payload is POSTed to.
	InboxURL string

	// ActivityID is the delivered activity's ID. (InboxURL, ActivityID)
	// is the idempotence key: one pending task per pair.
	ActivityID string

	// Payload is the exact activity document bytes to deliver.
	Payload []byte

	// SigningActor is the local actor whose key signs each attempt.
	SigningActor string

	// Attempt counts completed delivery attempts.
	Attempt int

	// NextAttemptAt is when the task becomes eligible again.
	NextAttemptAt time.Time

	// LastError describes the most recent failure, for diagnostics.
	LastError string
}

// StatusError is a delivery attempt rejected by the remote server with
// an HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d", e.Code)
}

// isTransient reports whether a remote status is worth retrying:
// 429 (rate limit) and 5xx (server error) are transient; other 4xx
// means the remote has rejected the activity on semantic grounds and
// retrying cannot help.
func isTransient(code int) bool {
	if code == 429 {
		return true
	}
	return code >= 500
}
