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

// Package saturnfed provides version information for saturn-federation.
package saturnfed

const (
	// Version is the current version of saturn-federation
	Version = "1.0.0"

	// SignatureDraftVersion is the HTTP signature draft this library implements
	// See: https://datatracker.ietf.org/doc/html/draft-cavage-http-signatures-12
	SignatureDraftVersion = "cavage-12"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	SaturnFederationVersion string
	SignatureDraftVersion   string
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		SaturnFederationVersion: Version,
		SignatureDraftVersion:   SignatureDraftVersion,
	}
}
