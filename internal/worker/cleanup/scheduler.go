package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Runner は定期実行されるジョブ。
type Runner interface {
	Run(ctx context.Context) (int64, error)
}

// Scheduler はgocronでクリーンアップジョブを一定間隔で実行する。
// 起動直後に1回実行し、前回の実行が終わっていない場合は次回に回す。
type Scheduler struct {
	job      Runner
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewScheduler はSchedulerを生成する。clockがnilの場合は実時間を使用する。
func NewScheduler(job Runner, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{job: job, interval: interval, clock: clock, logger: logger}
}

// Start はスケジューラを起動し、ctxがキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("スケジューラの生成に失敗しました: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.job.Run(ctx); err != nil {
				s.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}),
		gocron.WithName("status-retention-cleanup"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("クリーンアップジョブの登録に失敗しました: %w", err)
	}

	s.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Duration("interval", s.interval),
	)
	scheduler.Start()

	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("スケジューラの停止に失敗しました: %w", err)
	}
	s.logger.Info("クリーンアップスケジューラを停止しました")
	return nil
}
