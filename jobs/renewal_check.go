package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ss-insurance/insurance-manager/internal/jobs"
	"github.com/ss-insurance/insurance-manager/internal/renewals"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

const (
	// TaskRenewalCheck runs the renewal checker.
	TaskRenewalCheck = "renewals:check"
	// KindRenewalReminder tags reminder e-mails in mail:send payloads.
	KindRenewalReminder = "renewal_reminder"
)

// RenewalCheckPayload carries scheduling metadata. A zero ScheduledFor means
// "now" and is what the cron entry enqueues.
type RenewalCheckPayload struct {
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// NewRenewalCheckTask constructs an Asynq task for the renewal checker.
func NewRenewalCheckTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(RenewalCheckPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRenewalCheck, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// RenewalChecker is implemented by renewals.Service.
type RenewalChecker interface {
	Check(ctx context.Context, now time.Time) (renewals.Result, error)
}

// JobLocker serialises runs across worker processes.
type JobLocker = renewals.Locker

// RenewalCheckJob adapts the renewal checker to asynq.
type RenewalCheckJob struct {
	Checker RenewalChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	// Locker is optional; when set, overlapping runs are skipped.
	Locker JobLocker
	clock  func() time.Time
}

// NewRenewalCheckJob initialises the renewal check handler.
func NewRenewalCheckJob(checker RenewalChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *RenewalCheckJob {
	return &RenewalCheckJob{
		Checker: checker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one renewal check.
func (j *RenewalCheckJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Checker == nil {
		return errors.New("renewal check: handler not configured")
	}
	var payload RenewalCheckPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	now := payload.ScheduledFor
	if now.IsZero() {
		now = j.now()
	}

	logger := j.logger()
	if j.Locker != nil {
		release, err := j.Locker.Acquire(ctx, renewals.CheckLockKey, renewals.CheckLockTTL)
		if errors.Is(err, shared.ErrLockHeld) {
			logger.Info("renewal check already running, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release renewal lock", slog.Any("error", err))
			}
		}()
	}

	tracker := j.metrics().Track(TaskRenewalCheck)
	logger.Info("starting renewal check", slog.Time("as_of", now))

	result, err := j.Checker.Check(ctx, now)
	if err != nil {
		logger.Error("renewal check failed", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("completed renewal check",
		slog.Int("found", result.Found),
		slog.Int("inserted", result.Inserted),
		slog.Int("reminders", result.Reminders),
	)
	return tracker.End(nil)
}

func (j *RenewalCheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRenewalCheck))
	}
	return slog.Default().With(slog.String("job", TaskRenewalCheck))
}

func (j *RenewalCheckJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RenewalCheckJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
