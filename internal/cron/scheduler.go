package cron

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vlessbot/internal/config"
	"vlessbot/internal/models"
	"vlessbot/internal/notify"
	"vlessbot/internal/pkg/telegram"
	"vlessbot/internal/service"
)

// UserDirectory resolves subscription owners for notification checks.
type UserDirectory interface {
	FindByID(tgID string) (*models.User, error)
}

// ServerDirectory resolves panel servers for the per-server job batches.
type ServerDirectory interface {
	FindByID(id string) (*models.Server, error)
	FindActive() ([]models.Server, error)
	FindByIDs(ids []string) (map[string]models.Server, error)
}

// SubscriptionJobStore is the slice of the subscription repository the
// background jobs read and write.
type SubscriptionJobStore interface {
	FindActive() ([]models.Subscription, error)
	FindExpiredBefore(cutoff time.Time) ([]models.Subscription, error)
	FindExpiringBetween(from, to time.Time) ([]models.Subscription, error)
	UpdateTrafficUsedBatch(usage map[string]int64) error
	ResetUsage(id string, anchor time.Time) error
	MarkExpiryNotified(id string) error
	MarkTrafficNotified(id string, critical bool) error
	Delete(id string) error
}

// PaymentPurger drops abandoned pending payments.
type PaymentPurger interface {
	PurgeStale(cutoff time.Time) (int64, error)
}

// Scheduler runs all background jobs: traffic reconciliation, expiry
// purge, monthly traffic reset, lifecycle notifications and the nightly
// panel backup. Fixed-cadence jobs ride the cron runner; the jittered
// notification loops run as cancellable goroutines.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	log    *zap.Logger
	repos  *JobRepos
	panels service.PanelFactory
	sender notify.Sender
	botAPI *telegram.BotAPI

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// JobRepos bundles the repositories the jobs read and write.
type JobRepos struct {
	User         UserDirectory
	Server       ServerDirectory
	Subscription SubscriptionJobStore
	Payment      PaymentPurger
}

// New creates the scheduler. The sender may be nil, in which case the
// notification loops log instead of sending.
func New(cfg *config.Config, repos *JobRepos, panels service.PanelFactory, sender notify.Sender, botAPI *telegram.BotAPI, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		cfg:    cfg,
		log:    log,
		repos:  repos,
		panels: panels,
		sender: sender,
		botAPI: botAPI,
	}
}

// Start registers and starts all jobs.
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.addJob(every(s.cfg.Jobs.TrafficUpdateEvery), "traffic reconciliation", func() {
		s.reconcileTraffic(ctx)
	})

	s.addJob(every(s.cfg.Jobs.PurgeEvery), "expired purge", func() {
		s.purgeExpired(ctx)
	})

	// Monthly quota reset - daily at 00:30
	s.addJob("0 30 0 * * *", "monthly traffic reset", func() {
		s.monthlyTrafficReset(ctx)
	})

	// Panel backups to the admin - daily at 3 AM
	s.addJob("0 0 3 * * *", "panel backup", func() {
		s.backupPanels(ctx)
	})

	// Stale unpaid invoices - hourly
	s.addJob("0 0 * * * *", "stale payment purge", func() {
		s.purgeStalePayments()
	})

	s.startLoop(ctx, "expiry notifications", s.notifyExpiry)
	s.startLoop(ctx, "traffic notifications", s.notifyTraffic)

	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels the notification loops, waits for them and stops the cron
// runner. The returned context completes when running cron jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.cron.Stop()
}

// addJob registers a cron entry; a rejected spec means the job would
// silently never run, so it is logged loudly.
func (s *Scheduler) addJob(spec, name string, fn func()) {
	if _, err := s.cron.AddFunc(spec, func() {
		s.log.Debug("running: " + name)
		fn()
	}); err != nil {
		s.log.Error("cron job not scheduled",
			zap.String("job", name),
			zap.String("spec", spec),
			zap.Error(err))
	}
}

// startLoop runs fn on a jittered interval until the context is done.
func (s *Scheduler) startLoop(ctx context.Context, name string, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.jitteredInterval()):
			}
			s.log.Debug("running: " + name)
			func() {
				defer s.recoverFromPanic(name)
				fn(ctx)
			}()
		}
	}()
}

// jitteredInterval spreads loop wakeups around the base interval to avoid
// thundering-herd bursts against the bot API, with a hard floor.
func (s *Scheduler) jitteredInterval() time.Duration {
	base := s.cfg.Jobs.NotifyBaseInterval
	jitter := s.cfg.Jobs.NotifyJitter
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(2*jitter))) - jitter
	}
	if d < s.cfg.Jobs.NotifyMinInterval {
		d = s.cfg.Jobs.NotifyMinInterval
	}
	return d
}

func (s *Scheduler) purgeStalePayments() {
	defer s.recoverFromPanic("purgeStalePayments")

	// Gateway invoices expire after 15 minutes; an hour is generous.
	cutoff := time.Now().UTC().Add(-1 * time.Hour)
	n, err := s.repos.Payment.PurgeStale(cutoff)
	if err != nil {
		s.log.Error("stale payment purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("purged stale pending payments", zap.Int64("count", n))
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.log.Error("job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
