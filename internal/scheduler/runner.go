// Package scheduler runs the periodic maintenance jobs of the service.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"relaychat/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CallExpirer moves calls that rang too long to MISSED.
type CallExpirer interface {
	ExpireRinging(ctx context.Context) (int, error)
}

type Runner struct {
	cron   *cron.Cron
	logger *logger.Logger
}

func NewRunner(l *logger.Logger) *Runner {
	l = logger.OrNop(l)
	cl := cronLogger{l.Logger.Sugar()}
	return &Runner{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: l,
	}
}

// AddCallSweep expires stale ringing calls every interval. A run that is
// still going when the next one is due makes the next one skip.
func (r *Runner) AddCallSweep(interval time.Duration, expirer CallExpirer) error {
	if interval <= 0 {
		return fmt.Errorf("call sweep interval must be positive, got %s", interval)
	}
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		r.sweepCalls(expirer, interval)
	})
	return err
}

func (r *Runner) sweepCalls(expirer CallExpirer, budget time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	n, err := expirer.ExpireRinging(ctx)
	if err != nil {
		r.logger.Logger.Error("call sweep failed", zap.Int("expired", n), zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Logger.Info("expired ringing calls", zap.Int("count", n))
	}
}

// Start runs the scheduled jobs until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	r.cron.Start()
	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
	}()
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
