// Package audit は監査ログの記録と参照を提供する。
// 記録は呼び出し元の処理を止めないベストエフォートで行う。
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/repository"
)

// Recorder は監査ログの記録インターフェース。
// Recordはブロックせず、失敗を呼び出し元に返さない。
type Recorder interface {
	Record(ctx context.Context, entry model.AuditEntry)
}

// maxModelIDLen はaudit_logs.model_idの列長（文字数）。
const maxModelIDLen = 255

// NewEntry は操作の結果errをoutcomeとする監査エントリを組み立てる。
// modelIDはパスパラメータそのままの場合があるため、列長を超える分を切り詰める。
func NewEntry(action model.AuditAction, resource model.AuditResource, modelID, userID string, err error) model.AuditEntry {
	return model.AuditEntry{
		Action:   action,
		Resource: resource,
		ModelID:  truncateModelID(modelID),
		UserID:   userID,
		Outcome:  model.OutcomeOf(err),
	}
}

func truncateModelID(id string) string {
	if utf8.RuneCountInString(id) <= maxModelIDLen {
		return id
	}
	return string([]rune(id)[:maxModelIDLen])
}

// Observer は監査ログの書き込み結果の通知先。
// metrics.Collectorが実装する。
type Observer interface {
	RecordAuditWritten(resource string)
	RecordAuditDropped()
	RecordAuditFailed()
}

// Options はAsyncRecorderの設定。
type Options struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
}

// AsyncRecorder はバッファ付きキューとワーカーで監査ログを非同期に書き込む。
// キューが満杯の場合は記録を破棄する。
type AsyncRecorder struct {
	repo     repository.AuditLogRepository
	observer Observer
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	queue chan *model.AuditLog
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncRecorder はAsyncRecorderを生成し、ワーカーを起動する。
// observerはnilでもよい。
func NewAsyncRecorder(repo repository.AuditLogRepository, observer Observer, logger *slog.Logger, opts Options) *AsyncRecorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	r := &AsyncRecorder{
		repo:     repo,
		observer: observer,
		logger:   logger,
		timeout:  opts.WriteTimeout,
		now:      time.Now,
		queue:    make(chan *model.AuditLog, opts.BufferSize),
	}

	r.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go r.worker()
	}
	return r
}

// Record は監査ログをキューに積む。
// リクエストのコンテキストは書き込みに使わないため、レスポンス後も書き込みは継続する。
func (r *AsyncRecorder) Record(_ context.Context, entry model.AuditEntry) {
	log := &model.AuditLog{
		ID:        uuid.NewString(),
		Action:    entry.Action,
		Resource:  entry.Resource,
		ModelID:   entry.ModelID,
		UserID:    entry.UserID,
		Outcome:   entry.Outcome,
		CreatedAt: r.now(),
	}
	if log.Outcome == "" {
		log.Outcome = model.AuditOutcomeOK
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(log, "closed")
		return
	}

	select {
	case r.queue <- log:
	default:
		r.drop(log, "queue full")
	}
}

func (r *AsyncRecorder) drop(log *model.AuditLog, reason string) {
	r.logger.Warn("監査ログを破棄しました",
		slog.String("reason", reason),
		slog.String("action", string(log.Action)),
		slog.String("resource", string(log.Resource)),
		slog.String("model_id", log.ModelID),
		slog.String("user_id", log.UserID),
	)
	if r.observer != nil {
		r.observer.RecordAuditDropped()
	}
}

func (r *AsyncRecorder) worker() {
	defer r.wg.Done()
	for log := range r.queue {
		r.write(log)
	}
}

func (r *AsyncRecorder) write(log *model.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.repo.Create(ctx, log); err != nil {
		r.logger.Error("監査ログの書き込みに失敗しました",
			slog.String("action", string(log.Action)),
			slog.String("resource", string(log.Resource)),
			slog.String("model_id", log.ModelID),
			slog.String("error", err.Error()),
		)
		if r.observer != nil {
			r.observer.RecordAuditFailed()
		}
		return
	}
	if r.observer != nil {
		r.observer.RecordAuditWritten(string(log.Resource))
	}
}

// Close は新規の受け付けを止め、キューに残った監査ログを書き切るまで待つ。
// ctxが先に終了した場合はctx.Err()を返す。
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// compile-time interface check
var _ Recorder = (*AsyncRecorder)(nil)
