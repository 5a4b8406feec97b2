package session

// Repo defines the interface for the durable key-value backend the session
// store persists into. Values are raw strings; the store owns serialization.
//
// The backend namespace is shared with keys the core does not own (screen
// caches, UI flags). Implementations must only touch the keys they are asked
// to touch.
type Repo interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// SetAll writes every entry in values as one group. Implementations
	// should make the group durable atomically where the backend allows it.
	SetAll(values map[string]string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(keys ...string) error
}
