// Package cache holds helpers shared by the contracts.Cache adapters.
package cache

import (
	"fmt"

	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

// ValidateKey rejects empty keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("cache key is empty: %w", sentinel.ErrInvalidArgument)
	}
	return nil
}

// ValidateKeys rejects any empty key in keys.
func ValidateKeys(keys []string) error {
	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			return err
		}
	}
	return nil
}
