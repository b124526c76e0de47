// Package portal talks to a content-network portal. It exposes the
// conditional JSON download used by the sync engine plus the registry and
// file reads used by the profile fetchers.
package portal

import (
	"context"
	"encoding/json"
)

// JSONResponse is the result of a conditional JSON fetch.
//
// Data is nil in two distinct situations: Cached=true means the upstream
// fingerprint matched the caller's cached one and the body was not consumed;
// Cached=false with an empty Fingerprint means the resource does not exist.
type JSONResponse struct {
	Data        json.RawMessage
	Fingerprint string
	Cached      bool
}

// RegistryEntry is a single signed registry key/value entry.
type RegistryEntry struct {
	DataKey  string
	Data     []byte
	Revision uint64
}

// Client is the network collaborator the scraper depends on. Transport,
// signature verification and retries are the portal's concern, not ours.
type Client interface {
	// GetJSON fetches the JSON resource at path under the given identity,
	// conditioned on cachedFingerprint. Absent resources are not an error.
	GetJSON(ctx context.Context, userPK, path, cachedFingerprint string) (JSONResponse, error)

	// GetRegistryEntry reads a registry entry; nil when the key is unset.
	GetRegistryEntry(ctx context.Context, userPK, dataKey string) (*RegistryEntry, error)

	// GetFileContent downloads raw file content by reference.
	GetFileContent(ctx context.Context, reference string) ([]byte, error)
}
