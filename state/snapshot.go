package state

import (
	"encoding/json"
	"fmt"
)

// EncodeSnapshot serializes a state into the persisted document form used
// by the database-backed containers.
func EncodeSnapshot(st State) (string, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("caplock/state: encode snapshot: %w", err)
	}
	return string(b), nil
}

// DecodeSnapshot parses a persisted document back into a state. Collections
// absent from the document come back initialized.
func DecodeSnapshot(doc string) (State, error) {
	st := Empty()
	if doc == "" {
		return st, nil
	}
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return Empty(), fmt.Errorf("caplock/state: decode snapshot: %w", err)
	}
	if st.Domains == nil {
		st.Domains = Empty().Domains
	}
	if st.PermissionsRequests == nil {
		st.PermissionsRequests = Empty().PermissionsRequests
	}
	if st.PermissionsDescriptions == nil {
		st.PermissionsDescriptions = Empty().PermissionsDescriptions
	}
	return st, nil
}
