package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const warmupTimeout = 30 * time.Second

// Warmer прогревает кэш самыми популярными ссылками
type Warmer interface {
	Warmup(ctx context.Context, limit int) (int, error)
}

// Scheduler запускает периодический прогрев кэша
type Scheduler struct {
	cron   *cron.Cron
	warmer Warmer
	limit  int
	log    *zap.Logger
}

func NewScheduler(warmer Warmer, limit int, log *zap.Logger) *Scheduler {
	log = log.Named("scheduler")
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{log: log})),
		warmer: warmer,
		limit:  limit,
		log:    log,
	}
}

// ScheduleWarmup регистрирует прогрев по cron выражению ("@every 30m", "0 * * * *")
func (s *Scheduler) ScheduleWarmup(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.RunWarmup); err != nil {
		return fmt.Errorf("invalid warmup schedule %q: %w", expr, err)
	}
	return nil
}

func (s *Scheduler) RunWarmup() {
	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	if _, err := s.warmer.Warmup(ctx, s.limit); err != nil {
		s.log.Error("cache warmup failed", zap.Error(err))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop ждет завершения запущенных задач или отмены ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger пишет логи cron в zap
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
