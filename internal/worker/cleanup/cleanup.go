// Package cleanup は期限切れの認証データを削除する定期ジョブを提供する。
// 期限切れセッションと、期限切れまたは使用済みのパスワード再設定トークンを
// cron形式のスケジュールで削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule は既定の実行スケジュール（毎時0分）。
const DefaultSchedule = "0 * * * *"

// Purger は基準時刻より古いデータを削除し、削除件数を返す。
// repository.SessionRepositoryとrepository.ResetTokenRepositoryが満たす。
type Purger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Target は削除対象のテーブルと削除処理の組。
type Target struct {
	Table  string
	Purger Purger
}

// Recorder はジョブの結果を計測する。
type Recorder interface {
	RecordCleanup(table string, deleted int64)
	RecordCleanupFailure()
}

type nopRecorder struct{}

func (nopRecorder) RecordCleanup(string, int64) {}
func (nopRecorder) RecordCleanupFailure()       {}

// CleanupJob は期限切れデータの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	targets  []Target
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(targets []Target, logger *slog.Logger, recorder Recorder) *CleanupJob {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CleanupJob{
		targets:  targets,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run はすべての対象から期限切れデータを削除する。
// 1つの対象が失敗しても残りの対象は処理し、失敗をまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	var errs []error
	var total int64
	for _, target := range j.targets {
		deleted, err := target.Purger.DeleteExpired(ctx, start)
		if err != nil {
			j.recorder.RecordCleanupFailure()
			j.logger.Error("期限切れデータの削除に失敗しました",
				slog.String("table", target.Table),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s のクリーンアップに失敗: %w", target.Table, err))
			continue
		}
		j.recorder.RecordCleanup(target.Table, deleted)
		total += deleted
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", total),
		slog.Int("failed_targets", len(errs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return errors.Join(errs...)
}

// Schedule はcron形式のscheduleでジョブを定期実行する。
// ctxがキャンセルされるとスケジューラを停止し、実行中のジョブの完了を待ってから戻る。
func (j *CleanupJob) Schedule(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		// エラーはRun内でログ出力済み
		_ = j.Run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}

	j.logger.Info("クリーンアップジョブを開始しました", slog.String("schedule", schedule))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	j.logger.Info("クリーンアップジョブを停止しました")
	return nil
}
