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

// Package delivery pushes activities to remote inboxes with
// at-least-once semantics and bounded retries.
//
// # Lifecycle
//
// Enqueue registers a task per (inbox, activity) pair — idempotently,
// so re-publishing the same activity to the same inbox never creates a
// duplicate — and returns immediately; no network I/O happens on the
// caller's goroutine. A worker pool started by Run claims eligible
// tasks, re-signs the request (the Date and Digest headers must be
// fresh on every attempt), and POSTs the payload.
//
// # Retry Policy
//
//   - 2xx retires the task.
//   - 4xx other than 429 is a remote verdict; the task is dead-lettered
//     with the diagnostic, not retried.
//   - 5xx, 429, timeouts and connection failures retry with exponential
//     backoff and jitter, up to a capped attempt count; exhausting the
//     budget dead-letters the task.
//
// The claim mechanism guarantees at most one attempt in flight per
// (inbox, activity) pair, and a per-host rate limiter keeps one slow or
// hostile destination from starving deliveries to others. Cancel
// dead-letters a task early when its host is known to be permanently
// unreachable.
//
// Dead letters are retained through a store.DeadLetterStore for
// debugging federation disputes; nothing is ever dropped silently.
package delivery
