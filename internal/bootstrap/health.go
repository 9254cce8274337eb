package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"github.com/jardisPsr/foundation/internal/platform/metrics"
	redisclient "github.com/jardisPsr/foundation/internal/platform/redis"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
	"github.com/jardisPsr/foundation/pkg/resource"
)

const healthTimeout = 5 * time.Second

// HealthReport maps each checked connection key to its ping result.
type HealthReport map[string]error

// OK reports whether every check passed.
func (r HealthReport) OK() bool {
	for _, err := range r {
		if err != nil {
			return false
		}
	}
	return true
}

// Keys returns the checked keys in sorted order.
func (r HealthReport) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Err joins every failed check into one error, or returns nil.
func (r HealthReport) Err() error {
	var errs []error
	for _, k := range r.Keys() {
		if err := r[k]; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// Health pings every registered connection concurrently, whether owned or
// reused. Entries of unknown type are skipped.
func (a *App) Health(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		report = HealthReport{}
		g      errgroup.Group
	)
	for key, value := range a.Registry.All() {
		if !resource.IsConnectionKey(key) {
			continue
		}
		check := pinger(value)
		if check == nil {
			continue
		}
		g.Go(func() error {
			err := check(ctx)
			if err != nil {
				metrics.IncrementHealthCheckFailures(key)
			}
			mu.Lock()
			report[key] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func pinger(value any) func(context.Context) error {
	switch v := value.(type) {
	case *sql.DB:
		return v.PingContext
	case *redis.Client:
		return func(ctx context.Context) error { return redisclient.Health(ctx, v) }
	case *kgo.Client:
		return v.Ping
	case *amqp091.Connection:
		return func(context.Context) error {
			if v.IsClosed() {
				return fmt.Errorf("amqp connection: %w", sentinel.ErrClosed)
			}
			return nil
		}
	default:
		return nil
	}
}
