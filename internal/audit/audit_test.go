package audit

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeehouse/internal/logging"
)

type collectingProcessor struct {
	mu      sync.Mutex
	batches [][]AuditLog
}

func (c *collectingProcessor) Process(_ context.Context, batch []AuditLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]AuditLog(nil), batch...))
	return nil
}

func (c *collectingProcessor) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func TestPoolFlushesOnBatchSize(t *testing.T) {
	proc := &collectingProcessor{}
	pool := NewAuditWorkerPool(AuditPoolConfig{BatchSize: 2, Timeout: time.Hour, ChannelSize: 10}, logging.Discard(), proc)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx, 1)

	pool.Log(AuditLog{Action: "ready"})
	pool.Log(AuditLog{Action: "verify"})

	assert.Eventually(t, func() bool { return proc.total() == 2 }, time.Second, 10*time.Millisecond)
	pool.Shutdown(cancel)
}

func TestPoolFlushesOnTimeoutAndShutdown(t *testing.T) {
	proc := &collectingProcessor{}
	pool := NewAuditWorkerPool(AuditPoolConfig{BatchSize: 100, Timeout: 20 * time.Millisecond, ChannelSize: 10}, logging.Discard(), proc)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx, 2)

	pool.Log(AuditLog{Action: "archive"})
	assert.Eventually(t, func() bool { return proc.total() == 1 }, time.Second, 5*time.Millisecond)

	pool.Log(AuditLog{Action: "stock"})
	pool.Shutdown(cancel)
	assert.Equal(t, 2, proc.total())
}

func TestLogDropsWhenFull(t *testing.T) {
	pool := NewAuditWorkerPool(AuditPoolConfig{ChannelSize: 1}, logging.Discard())
	pool.Log(AuditLog{})
	pool.Log(AuditLog{})
	assert.Len(t, pool.inputCh, 1)
}

func TestDBProcessor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 12, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO audit_logs \(timestamp, order_id, action, endpoint, status_code, remote_addr, message\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7\),\(\$8`).
		WithArgs(at, "o-1", "POST", "/api/dashboard/orders/o-1/ready", 200, "10.0.0.1", "ok",
			at, "", "GET", "/api/dashboard", 401, "10.0.0.2", "unauthorized").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = NewDBProcessor(db).Process(context.Background(), []AuditLog{
		{Timestamp: at, OrderID: "o-1", Action: "POST", Endpoint: "/api/dashboard/orders/o-1/ready", StatusCode: 200, RemoteAddr: "10.0.0.1", Message: "ok"},
		{Timestamp: at, Action: "GET", Endpoint: "/api/dashboard", StatusCode: 401, RemoteAddr: "10.0.0.2", Message: "unauthorized"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogProcessorFilter(t *testing.T) {
	var buf bytes.Buffer
	p := &LogProcessor{Log: logging.NewWithWriter(&buf, "info"), Filter: "post"}
	require.NoError(t, p.Process(context.Background(), []AuditLog{{Action: "GET"}, {Action: "POST", OrderID: "o-9"}}))
	assert.Contains(t, buf.String(), `"order_id":"o-9"`)
	assert.NotContains(t, buf.String(), `"action":"GET"`)
}
