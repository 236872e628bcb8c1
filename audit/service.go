package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/skipmechanics/guildpanel/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ctxKey int

const traceIDKey ctxKey = 0

// WithTraceID attaches a request trace ID to the context so services can
// stamp it onto audit entries without depending on the transport layer.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFrom extracts the trace ID set by WithTraceID, or "".
func TraceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry holds one moderation event to be logged.
type Entry struct {
	TraceID    string
	ActorID    string
	ActorName  string
	Action     string
	TargetID   string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	DurationMs int
}

// Service logs moderation actions asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write.
func (svc *Service) Log(entry Entry) {
	reqJSON, _ := json.Marshal(entry.Request)
	respJSON, _ := json.Marshal(entry.Response)
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Action:     entry.Action,
		TargetID:   entry.TargetID,
		Request:    datatypes.JSON(reqJSON),
		Response:   datatypes.JSON(respJSON),
		Error:      entry.Error,
		IP:         entry.IP,
		DurationMs: entry.DurationMs,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Prune deletes audit rows older than the retention window.
func (svc *Service) Prune(retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	res := svc.db.Where("created_at < ?", cutoff).Delete(&model.AuditLog{})
	if res.Error != nil {
		svc.logger.Error("audit prune failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("pruned audit logs",
			zap.Int64("rows", res.RowsAffected),
			zap.Time("cutoff", cutoff))
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
