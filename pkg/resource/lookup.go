package resource

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

// Lookup fetches key from r and asserts it to T.
//
//	db, err := resource.Lookup[*sql.DB](reg, resource.KeyPDOWriter)
func Lookup[T any](r contracts.ResourceRegistry, key string) (T, error) {
	var zero T
	res, err := r.Get(key)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("resource %q holds %T, want %s: %w", key, res, reflect.TypeFor[T](), sentinel.ErrTypeMismatch)
	}
	return typed, nil
}

// ReaderKeys returns the registered read replica keys in index order,
// stopping at the first missing index.
func ReaderKeys(r contracts.ResourceRegistry) []string {
	var keys []string
	for n := 1; ; n++ {
		key := PDOReaderKey(n)
		if !r.Has(key) {
			return keys
		}
		keys = append(keys, key)
	}
}

// LoggerHandlers returns every registered log handler keyed by handler name.
func LoggerHandlers(r contracts.ResourceRegistry) map[string]any {
	out := make(map[string]any)
	for key, res := range r.All() {
		if name, ok := IsLoggerHandlerKey(key); ok {
			out[name] = res
		}
	}
	return out
}

// SortedKeys returns every registered key in lexical order.
func SortedKeys(r contracts.ResourceRegistry) []string {
	all := r.All()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
