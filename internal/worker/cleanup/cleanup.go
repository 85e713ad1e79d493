// Package cleanup は古いランチ予定の自動削除ジョブを提供する。
// 保持期間（デフォルト26週）より前の週の予定を定期的に削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/lunchplan/internal/metrics"
	"github.com/hitoshi/lunchplan/internal/week"
)

// DefaultRetentionWeeks は予定の保持週数のデフォルト値。
const DefaultRetentionWeeks = 26

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WeekSource は「今週」を返すインターフェース。week.Calendarが実装する。
type WeekSource interface {
	Current() week.Week
}

// CleanupJob は保持期間を超過したランチ予定の削除ジョブ。
// 削除条件は週単位のため、同じ週に何度実行しても結果は変わらない。
type CleanupJob struct {
	db             Executor
	calendar       WeekSource
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	RetentionWeeks int
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionWeeksが0以下の場合はDefaultRetentionWeeksを使用する。
func NewCleanupJob(db Executor, calendar WeekSource, collector metrics.MetricsCollector, logger *slog.Logger, retentionWeeks int) *CleanupJob {
	if retentionWeeks <= 0 {
		retentionWeeks = DefaultRetentionWeeks
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:             db,
		calendar:       calendar,
		metrics:        collector,
		logger:         logger,
		RetentionWeeks: retentionWeeks,
	}
}

// Cutoff は削除境界の週を返す。この週より前の予定が削除対象となる。
func (j *CleanupJob) Cutoff() week.Week {
	return j.calendar.Current().AddWeeks(-j.RetentionWeeks)
}

// Run は保持期間を超過した予定を削除し、削除件数を返す。
// iso_weekはゼロ埋めの YYYY-Www 形式のため、文字列比較で週の前後を判定できる。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := j.Cutoff().String()

	result, err := j.db.ExecContext(ctx, `DELETE FROM day_statuses WHERE iso_week < $1`, cutoff)
	if err != nil {
		j.logger.Error("予定クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.String("cutoff_week", cutoff),
		)
		return 0, fmt.Errorf("予定クリーンアップの実行に失敗しました: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	j.metrics.RecordCleanupDeleted(deletedCount)
	j.logger.Info("予定クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.String("cutoff_week", cutoff),
		slog.Int("retention_weeks", j.RetentionWeeks),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deletedCount, nil
}
