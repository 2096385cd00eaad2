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

// Package store persists the federation engine's durable state: dedup
// records, follow relationships, the outbox activity log, and dead
// letters.
//
// Two implementations are provided. MemoryStore backs tests and
// embedded use; SQLiteStore backs production, using a fixed-size
// connection pool with WAL journaling and schema bootstrap on connect.
// Both satisfy the aggregate Store interface, and the consumers
// (handshake machine, delivery dispatcher, outbox handler) depend only
// on the narrow per-concern interfaces.
package store
