package activity

import (
	"encoding/json"
	"fmt"
)

// PublicKey is the signing-key block embedded in an actor document.
type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// Actor is a federated identity document as fetched from a remote
// server. Only the fields this module dereferences are modeled; the
// remainder of the document is ignored.
type Actor struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	PreferredUsername string    `json:"preferredUsername,omitempty"`
	Inbox             string    `json:"inbox"`
	Outbox            string    `json:"outbox,omitempty"`
	PublicKey         PublicKey `json:"publicKey"`
}

// UnmarshalActor parses and structurally validates an actor document
// fetched from a remote server. The public-key block is required because
// the key resolver is the only caller that fetches actors.
func UnmarshalActor(data []byte) (*Actor, error) {
	var a Actor
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("invalid actor document: %w", err)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("actor missing id")
	}
	if a.Inbox == "" {
		return nil, fmt.Errorf("actor %s missing inbox", a.ID)
	}
	if a.PublicKey.ID == "" || a.PublicKey.PublicKeyPem == "" {
		return nil, fmt.Errorf("actor %s missing public key block", a.ID)
	}
	return &a, nil
}
