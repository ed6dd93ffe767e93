// Package session holds the one durable value the client persists: the
// backend-issued session id.
//
// Both chat paths read the id through the same Store so they can never
// disagree. An id is assigned at most once per lifetime; Set on a store that
// already holds an id is a no-op until Clear (the "new plan" action).
package session

// Key is the name the session id is stored under
const Key = "travel_session_id"

// Store is the persisted session id slot
type Store interface {
	// Get returns the stored id, if any
	Get() (string, bool)
	// Set stores id when the slot is empty
	Set(id string) error
	// Clear empties the slot
	Clear() error
}
