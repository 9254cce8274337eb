package connpool

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jardisPsr/foundation/pkg/platform/circuit"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
	"github.com/jardisPsr/foundation/pkg/resource"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_RequiresWriter(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)

	_, err = New(openDB(t), []*sql.DB{nil})
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)
}

func TestReader_FallsBackToWriterWithoutReplicas(t *testing.T) {
	writer := openDB(t)
	p, err := New(writer, nil)
	require.NoError(t, err)

	assert.Same(t, writer, p.Reader())
	assert.Empty(t, p.Readers())
}

func TestReader_RoundRobin(t *testing.T) {
	writer, r1, r2 := openDB(t), openDB(t), openDB(t)
	p, err := New(writer, []*sql.DB{r1, r2})
	require.NoError(t, err)

	assert.Same(t, r1, p.Reader())
	assert.Same(t, r2, p.Reader())
	assert.Same(t, r1, p.Reader())
	assert.Equal(t, []*sql.DB{r1, r2}, p.Readers())
}

func TestReader_SkipsTrippedReplica(t *testing.T) {
	writer, r1, r2 := openDB(t), openDB(t), openDB(t)
	p, err := New(writer, []*sql.DB{r1, r2}, WithBreakerOptions(circuit.WithFailureThreshold(1)))
	require.NoError(t, err)

	p.ReportFailure(r1)
	assert.Equal(t, 1, p.HealthyReaders())
	for i := 0; i < 4; i++ {
		assert.Same(t, r2, p.Reader())
	}

	p.ReportFailure(r2)
	assert.Same(t, writer, p.Reader(), "all replicas tripped")
}

func TestPing_TripsClosedReplica(t *testing.T) {
	writer, r1 := openDB(t), openDB(t)
	p, err := New(writer, []*sql.DB{r1}, WithBreakerOptions(circuit.WithFailureThreshold(1)))
	require.NoError(t, err)

	require.NoError(t, p.Ping(context.Background()))
	require.NoError(t, r1.Close())

	err = p.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), resource.PDOReaderKey(1))
	assert.Equal(t, 0, p.HealthyReaders())
	assert.Same(t, writer, p.Reader())
}

func TestFromRegistry(t *testing.T) {
	writer, r1, r2 := openDB(t), openDB(t), openDB(t)
	reg := resource.New()
	reg.Register(resource.KeyPDOWriter, writer)
	reg.Register(resource.PDOReaderKey(1), r1)
	reg.Register(resource.PDOReaderKey(2), r2)

	p, err := FromRegistry(reg)
	require.NoError(t, err)
	assert.Same(t, writer, p.Writer())
	assert.Equal(t, []*sql.DB{r1, r2}, p.Readers())
}

func TestFromRegistry_Errors(t *testing.T) {
	_, err := FromRegistry(resource.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	reg := resource.New()
	reg.Register(resource.KeyPDOWriter, "not a db")
	_, err = FromRegistry(reg)
	assert.ErrorIs(t, err, sentinel.ErrTypeMismatch)
}

func TestWithinTx_ExecutorJoinsTransaction(t *testing.T) {
	writer := openDB(t)
	_, err := writer.Exec(`CREATE TABLE outbox (topic TEXT)`)
	require.NoError(t, err)
	p, err := New(writer, nil)
	require.NoError(t, err)

	assert.Same(t, writer, p.Executor(context.Background()))

	err = p.WithinTx(context.Background(), func(ctx context.Context) error {
		exec := p.Executor(ctx)
		_, isTx := exec.(*sql.Tx)
		assert.True(t, isTx)
		_, err := exec.ExecContext(ctx, `INSERT INTO outbox (topic) VALUES ('domain.events')`)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, writer.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n))
	assert.Equal(t, 1, n)
}
