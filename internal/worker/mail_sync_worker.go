package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/service"
)

// MailSyncer is the batch job driven by the worker.
type MailSyncer interface {
	SyncRecent(ctx context.Context, window time.Duration) (service.SyncResult, error)
	CheckReplies(ctx context.Context) (service.SyncResult, error)
}

// MailSyncWorker runs both mailbox passes on a fixed interval. Runs never overlap.
type MailSyncWorker struct {
	job      MailSyncer
	interval time.Duration
	window   time.Duration
	logger   *zap.Logger
}

// NewMailSyncWorker constructs the loop with defaults for unset durations.
func NewMailSyncWorker(job MailSyncer, interval, window time.Duration, logger *zap.Logger) *MailSyncWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailSyncWorker{job: job, interval: interval, window: window, logger: logger}
}

// Run executes one pass immediately and then on every tick until ctx is cancelled.
func (w *MailSyncWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *MailSyncWorker) runOnce(ctx context.Context) {
	if _, err := w.job.SyncRecent(ctx, w.window); err != nil && ctx.Err() == nil {
		w.logger.Error("mail sync iteration failed", zap.String("pass", "sync_recent"), zap.Error(err))
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := w.job.CheckReplies(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("mail sync iteration failed", zap.String("pass", "check_replies"), zap.Error(err))
	}
}
