package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// AuditLog is one dashboard request as seen by the audit middleware.
type AuditLog struct {
	Timestamp  time.Time
	OrderID    string
	Action     string
	Endpoint   string
	StatusCode int
	RemoteAddr string
	Message    string
}

type AuditPoolConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

type AuditLogProcessor interface {
	Process(ctx context.Context, batch []AuditLog) error
}

type DBProcessor struct {
	db *sql.DB
}

func NewDBProcessor(db *sql.DB) *DBProcessor {
	return &DBProcessor{db: db}
}

const auditColumns = 7

func (p *DBProcessor) Process(ctx context.Context, batch []AuditLog) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_logs (timestamp, order_id, action, endpoint, status_code, remote_addr, message) VALUES `)

	params := make([]interface{}, 0, len(batch)*auditColumns)
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		n := i * auditColumns
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		params = append(params, rec.Timestamp, rec.OrderID, rec.Action, rec.Endpoint, rec.StatusCode, rec.RemoteAddr, rec.Message)
	}
	if _, err := p.db.ExecContext(ctx, sb.String(), params...); err != nil {
		return fmt.Errorf("DBProcessor error: %w", err)
	}
	return nil
}

// LogProcessor writes each record to the structured log, optionally keeping
// only records whose action contains Filter.
type LogProcessor struct {
	Log    *slog.Logger
	Filter string
}

func (p *LogProcessor) Process(ctx context.Context, batch []AuditLog) error {
	for _, rec := range batch {
		if p.Filter != "" &&
			!strings.Contains(strings.ToLower(rec.Action), strings.ToLower(p.Filter)) {
			continue
		}
		p.Log.InfoContext(ctx, "audit",
			"at", rec.Timestamp.Format(time.RFC3339),
			"order_id", rec.OrderID,
			"action", rec.Action,
			"endpoint", rec.Endpoint,
			"status", rec.StatusCode,
			"remote_addr", rec.RemoteAddr,
			"message", rec.Message,
		)
	}
	return nil
}

type AuditWorkerPool struct {
	inputCh    chan AuditLog
	processors []AuditLogProcessor
	batchSize  int
	timeout    time.Duration
	log        *slog.Logger

	wg sync.WaitGroup
}

func NewAuditWorkerPool(cfg AuditPoolConfig, log *slog.Logger, processors ...AuditLogProcessor) *AuditWorkerPool {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = 100
	}
	return &AuditWorkerPool{
		inputCh:    make(chan AuditLog, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		log:        log,
	}
}

func (p *AuditWorkerPool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

func (p *AuditWorkerPool) worker(ctx context.Context) {
	var batch []AuditLog
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case rec := <-p.inputCh:
					batch = append(batch, rec)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				p.processBatch(context.WithoutCancel(ctx), batch)
			}
			return
		case rec := <-p.inputCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				p.processBatch(ctx, batch)
				batch = nil
				timer.Reset(p.timeout)
			}
		case <-timer.C:
			if len(batch) > 0 {
				p.processBatch(ctx, batch)
				batch = nil
			}
			timer.Reset(p.timeout)
		}
	}
}

func (p *AuditWorkerPool) processBatch(ctx context.Context, batch []AuditLog) {
	for _, proc := range p.processors {
		if err := proc.Process(ctx, batch); err != nil {
			p.log.Error("audit batch failed", "size", len(batch), "error", err)
		}
	}
}

// Log never blocks; records are dropped when the queue is full.
func (p *AuditWorkerPool) Log(record AuditLog) {
	select {
	case p.inputCh <- record:
	default:
		p.log.Warn("audit log channel full, dropping record", "endpoint", record.Endpoint)
	}
}

func (p *AuditWorkerPool) Shutdown(cancelFunc context.CancelFunc) {
	cancelFunc()
	p.wg.Wait()
}
