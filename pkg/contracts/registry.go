package contracts

// ResourceRegistry maps namespaced keys (see pkg/resource for the key
// convention) to externally owned resource handles such as *sql.DB or
// *redis.Client.
//
// The registry never opens or closes what it holds; whoever registered a
// handle remains responsible for tearing it down.
type ResourceRegistry interface {
	// Register stores resource under key, replacing any previous entry.
	Register(key string, resource any)
	// Has reports whether key is registered.
	Has(key string) bool
	// Get returns the resource under key. An absent key yields an error
	// matching sentinel.ErrNotFound.
	Get(key string) (any, error)
	// All returns a snapshot of every entry.
	All() map[string]any
	// Unregister removes key. Absent keys are ignored.
	Unregister(key string)
}
