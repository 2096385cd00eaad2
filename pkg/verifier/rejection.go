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

package verifier

import (
	"fmt"
	"net/http"
)

// Reason classifies why an inbound request was rejected.
type Reason string

const (
	ReasonMissingSignature     Reason = "missing_signature"
	ReasonMalformedSignature   Reason = "malformed_signature"
	ReasonUnsupportedAlgorithm Reason = "unsupported_algorithm"
	ReasonKeyUnavailable       Reason = "key_unavailable"
	ReasonMissingHeader        Reason = "missing_header"
	ReasonInvalidSignature     Reason = "invalid_signature"
	ReasonBodyTampered         Reason = "body_tampered"
	ReasonDateSkewed           Reason = "date_skewed"
)

// Rejection is a verification failure with the specific reason and the
// HTTP status a well-behaved remote server should see. It is an error so
// the pipeline can return it through ordinary error plumbing, but it is
// never a fault: a rejection is the verifier doing its job.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Status is the suggested HTTP status for the rejection: 400 for
// requests that are structurally wrong, 401 for requests that fail
// authentication. The split lets remote servers distinguish
// non-retryable conditions.
func (r *Rejection) Status() int {
	switch r.Reason {
	case ReasonMalformedSignature, ReasonUnsupportedAlgorithm, ReasonMissingHeader:
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
