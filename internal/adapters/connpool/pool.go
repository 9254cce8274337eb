// Package connpool implements contracts.ConnectionPool over a writer handle
// and any number of read replicas taken from the resource registry.
package connpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/circuit"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
	"github.com/jardisPsr/foundation/pkg/platform/tx"
	"github.com/jardisPsr/foundation/pkg/resource"
)

var _ contracts.ConnectionPool = (*Pool)(nil)

type replica struct {
	key     string
	db      *sql.DB
	breaker *circuit.Breaker
}

// Pool round-robins reads across replicas whose breaker is closed. A replica
// trips after consecutive failed pings (or ReportFailure calls) and rejoins
// after consecutive successful ones. Pool never closes the handles it holds.
type Pool struct {
	writer      *sql.DB
	replicas    []*replica
	next        atomic.Uint64
	breakerOpts []circuit.Option
}

type Option func(*Pool)

// WithBreakerOptions tunes the per-replica circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(p *Pool) { p.breakerOpts = append(p.breakerOpts, opts...) }
}

// New builds a pool. readers are keyed by their position, starting at 1.
func New(writer *sql.DB, readers []*sql.DB, opts ...Option) (*Pool, error) {
	if writer == nil {
		return nil, fmt.Errorf("writer handle is nil: %w", sentinel.ErrInvalidArgument)
	}
	p := &Pool{writer: writer}
	for _, opt := range opts {
		opt(p)
	}
	for i, db := range readers {
		if db == nil {
			return nil, fmt.Errorf("reader %d handle is nil: %w", i+1, sentinel.ErrInvalidArgument)
		}
		key := resource.PDOReaderKey(i + 1)
		p.replicas = append(p.replicas, &replica{
			key:     key,
			db:      db,
			breaker: circuit.New(key, p.breakerOpts...),
		})
	}
	return p, nil
}

// FromRegistry builds a pool from connection.pdo.writer and the contiguous
// connection.pdo.reader{N} entries.
func FromRegistry(reg contracts.ResourceRegistry, opts ...Option) (*Pool, error) {
	writer, err := resource.Lookup[*sql.DB](reg, resource.KeyPDOWriter)
	if err != nil {
		return nil, err
	}
	var readers []*sql.DB
	for _, key := range resource.ReaderKeys(reg) {
		db, err := resource.Lookup[*sql.DB](reg, key)
		if err != nil {
			return nil, err
		}
		readers = append(readers, db)
	}
	return New(writer, readers, opts...)
}

func (p *Pool) Writer() *sql.DB {
	return p.writer
}

func (p *Pool) Reader() *sql.DB {
	n := len(p.replicas)
	if n == 0 {
		return p.writer
	}
	start := int((p.next.Add(1) - 1) % uint64(n))
	for i := 0; i < n; i++ {
		r := p.replicas[(start+i)%n]
		if !r.breaker.IsOpen() {
			return r.db
		}
	}
	return p.writer
}

func (p *Pool) Readers() []*sql.DB {
	out := make([]*sql.DB, len(p.replicas))
	for i, r := range p.replicas {
		out[i] = r.db
	}
	return out
}

// Ping checks the writer and every replica, feeding replica outcomes into
// their breakers. All failures are joined.
func (p *Pool) Ping(ctx context.Context) error {
	var errs []error
	if err := p.writer.PingContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", resource.KeyPDOWriter, err))
	}
	for _, r := range p.replicas {
		if err := r.db.PingContext(ctx); err != nil {
			r.breaker.RecordFailure()
			errs = append(errs, fmt.Errorf("%s: %w", r.key, err))
			continue
		}
		r.breaker.RecordSuccess()
	}
	return errors.Join(errs...)
}

// ReportFailure records a failed query against a replica handle.
func (p *Pool) ReportFailure(db *sql.DB) {
	if r := p.replica(db); r != nil {
		r.breaker.RecordFailure()
	}
}

// ReportSuccess records a successful query against a replica handle.
func (p *Pool) ReportSuccess(db *sql.DB) {
	if r := p.replica(db); r != nil {
		r.breaker.RecordSuccess()
	}
}

// HealthyReaders returns the number of replicas whose breaker is closed.
func (p *Pool) HealthyReaders() int {
	n := 0
	for _, r := range p.replicas {
		if !r.breaker.IsOpen() {
			n++
		}
	}
	return n
}

func (p *Pool) replica(db *sql.DB) *replica {
	for _, r := range p.replicas {
		if r.db == db {
			return r
		}
	}
	return nil
}

func (p *Pool) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, p.writer, fn)
}

func (p *Pool) Executor(ctx context.Context) contracts.SQLExecutor {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return p.writer
}
