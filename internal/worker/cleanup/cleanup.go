// Package cleanup はダウンロード済み記事の自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過した記事を、メタデータと画像を含む
// ディレクトリごと削除する。メタデータだけが残ることはない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner は保存日時が基準時刻より古い記事を削除する。store.LocalStoreが実装する。
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Recorder は削除件数を記録する。metrics.Collectorが実装する。
type Recorder interface {
	RecordEntriesPruned(count int)
}

// CleanupJob は保持期間を超過したダウンロード済み記事の削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	store    Pruner
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	RetentionDays int // 記事の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(store Pruner, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		store:         store,
		recorder:      recorder,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過した記事を削除し、削除件数を返す。
// RetentionDaysが0以下の場合は何も削除しない。
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	if j.RetentionDays <= 0 {
		j.logger.Info("保持期間が無期限のためクリーンアップをスキップします")
		return 0, nil
	}

	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.store.Prune(ctx, cutoff)
	if deleted > 0 && j.recorder != nil {
		j.recorder.RecordEntriesPruned(deleted)
	}
	if err != nil {
		j.logger.Error("記事クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("deleted_count", deleted),
			slog.Int("retention_days", j.RetentionDays),
		)
		return deleted, fmt.Errorf("記事クリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("記事クリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}

// Start は指定間隔でRunを繰り返す。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
