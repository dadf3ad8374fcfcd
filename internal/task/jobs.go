package task

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes rate-limit log entries older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

// Recounter repairs post aggregates.
type Recounter interface {
	RecountSince(ctx context.Context, since time.Time) (int, error)
}

const jobTimeout = 5 * time.Minute

// PruneRateLimitsJob 清理超出最大限流窗口的记录
type PruneRateLimitsJob struct {
	pruner    Pruner
	maxWindow time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewPruneRateLimitsJob(pruner Pruner, maxWindow time.Duration, logger *slog.Logger) *PruneRateLimitsJob {
	return &PruneRateLimitsJob{pruner: pruner, maxWindow: maxWindow, logger: logger, now: time.Now}
}

func (j *PruneRateLimitsJob) Name() string { return "PruneRateLimitsJob" }

func (j *PruneRateLimitsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.pruner.PruneBefore(ctx, j.now().Add(-j.maxWindow))
	if err != nil {
		j.logger.Error("failed to prune rate limit entries", slog.Any("error", err))
		return
	}
	j.logger.Info("pruned rate limit entries", slog.Int64("deleted", n))
}

// RecountRecentPostsJob 每晚重新统计最近帖子的赞踩和回复数
type RecountRecentPostsJob struct {
	recounter Recounter
	lookback  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewRecountRecentPostsJob(recounter Recounter, lookback time.Duration, logger *slog.Logger) *RecountRecentPostsJob {
	return &RecountRecentPostsJob{recounter: recounter, lookback: lookback, logger: logger, now: time.Now}
}

func (j *RecountRecentPostsJob) Name() string { return "RecountRecentPostsJob" }

func (j *RecountRecentPostsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.recounter.RecountSince(ctx, j.now().Add(-j.lookback))
	if err != nil {
		j.logger.Error("recount interrupted", slog.Int("recounted", n), slog.Any("error", err))
		return
	}
	j.logger.Info("recounted recent posts", slog.Int("recounted", n))
}
