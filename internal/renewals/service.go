// Package renewals finds Active policies that fall due soon and records one
// renewal_due notification per (policy, due date).
package renewals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	jobmetrics "github.com/ss-insurance/insurance-manager/internal/jobs"
	"github.com/ss-insurance/insurance-manager/internal/notifications"
	"github.com/ss-insurance/insurance-manager/internal/policies"
)

// DefaultWindowDays is how far ahead the checker looks.
const DefaultWindowDays = 7

const (
	unknownClient  = "Unknown Client"
	messageLayout  = "02/01/2006"
	noneDueMessage = "No policies found due soon."
)

// PolicySource lists Active policies due within a date range.
type PolicySource interface {
	UpcomingRenewals(ctx context.Context, from, to time.Time) ([]policies.Policy, error)
}

// NotificationStore checks for and writes renewal notifications.
type NotificationStore interface {
	Exists(ctx context.Context, policyID, kind string, dueDate time.Time) (bool, error)
	InsertRenewals(ctx context.Context, items []notifications.Notification) ([]notifications.Notification, error)
}

// Reminder is the e-mail sent to a client whose policy falls due.
type Reminder struct {
	To         string
	ClientName string
	PlanName   string
	PolicyNo   string
	Company    string
	DueDate    time.Time
}

// Subject is the reminder e-mail subject line.
func (r Reminder) Subject() string {
	return fmt.Sprintf("Renewal reminder: %s is due on %s", r.PlanName, r.DueDate.Format(messageLayout))
}

// Body is the plain-text reminder e-mail.
func (r Reminder) Body() string {
	return fmt.Sprintf("Dear %s,\n\nYour policy \"%s\" (%s, policy no. %s) is due for renewal on %s.\n"+
		"Please contact us to renew it before the due date.\n\nSS Insurance Manager\n",
		r.ClientName, r.PlanName, r.Company, r.PolicyNo, r.DueDate.Format(messageLayout))
}

// ReminderQueue accepts reminder e-mails for asynchronous delivery.
type ReminderQueue interface {
	EnqueueReminder(ctx context.Context, reminder Reminder) error
}

// Result summarises one checker run.
type Result struct {
	Found     int
	Inserted  int
	Reminders int
}

// Message renders the run summary returned to callers.
func (r Result) Message() string {
	if r.Found == 0 {
		return noneDueMessage
	}
	return fmt.Sprintf("Check complete. Found %d policies. Inserted %d new notifications.", r.Found, r.Inserted)
}

// Config tunes the checker.
type Config struct {
	WindowDays int
	Reminders  ReminderQueue
	Metrics    *jobmetrics.Metrics
	Logger     *slog.Logger
}

// Service runs the renewal check.
type Service struct {
	policies      PolicySource
	notifications NotificationStore
	reminders     ReminderQueue
	metrics       *jobmetrics.Metrics
	logger        *slog.Logger
	windowDays    int
}

// NewService constructs a Service.
func NewService(policySource PolicySource, store NotificationStore, cfg Config) *Service {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		policies:      policySource,
		notifications: store,
		reminders:     cfg.Reminders,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		windowDays:    cfg.WindowDays,
	}
}

// Window returns the inclusive [today, today+N] date range in UTC.
func (s *Service) Window(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today, today.AddDate(0, 0, s.windowDays)
}

// Preview lists the policies the next run would consider.
func (s *Service) Preview(ctx context.Context, now time.Time) ([]policies.Policy, error) {
	from, to := s.Window(now)
	return s.policies.UpcomingRenewals(ctx, from, to)
}

// Check writes a renewal notification for every Active policy due in the
// window that does not have one for its current due date yet.
func (s *Service) Check(ctx context.Context, now time.Time) (Result, error) {
	from, to := s.Window(now)
	logger := s.logger.With(slog.String("from", from.Format(policies.DateLayout)), slog.String("to", to.Format(policies.DateLayout)))

	due, err := s.policies.UpcomingRenewals(ctx, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("database error: %w", err)
	}
	result := Result{Found: len(due)}
	logger.Info("renewal check", slog.Int("found", result.Found))
	if len(due) == 0 {
		return result, nil
	}

	byPolicy := make(map[string]policies.Policy, len(due))
	pending := make([]notifications.Notification, 0, len(due))
	for _, policy := range due {
		dueDate := policy.DueDate
		exists, err := s.notifications.Exists(ctx, policy.ID, notifications.TypeRenewalDue, dueDate)
		if err != nil {
			logger.Error("check existing notification", slog.String("policy_id", policy.ID), slog.Any("error", err))
			continue
		}
		if exists {
			continue
		}
		byPolicy[policy.ID] = policy
		pending = append(pending, notifications.Notification{
			Type:     notifications.TypeRenewalDue,
			Message:  renewalMessage(policy),
			PolicyID: policy.ID,
			ClientID: policy.ClientID,
			DueDate:  &dueDate,
		})
	}
	if len(pending) == 0 {
		return result, nil
	}

	inserted, err := s.notifications.InsertRenewals(ctx, pending)
	if err != nil {
		return result, fmt.Errorf("database insert error: %w", err)
	}
	result.Inserted = len(inserted)
	s.metrics.AddNotifications(result.Inserted)

	for _, n := range inserted {
		if s.queueReminder(ctx, byPolicy[n.PolicyID]) {
			result.Reminders++
		}
	}
	logger.Info("renewal notifications inserted", slog.Int("inserted", result.Inserted), slog.Int("reminders", result.Reminders))
	return result, nil
}

func (s *Service) queueReminder(ctx context.Context, policy policies.Policy) bool {
	if s.reminders == nil || policy.ClientEmail == "" {
		return false
	}
	err := s.reminders.EnqueueReminder(ctx, Reminder{
		To:         policy.ClientEmail,
		ClientName: clientName(policy),
		PlanName:   policy.PlanName,
		PolicyNo:   policy.PolicyNo,
		Company:    policy.Company,
		DueDate:    policy.DueDate,
	})
	if err != nil {
		s.logger.Warn("enqueue renewal reminder", slog.String("policy_id", policy.ID), slog.Any("error", err))
		s.metrics.AddReminder("failed")
		return false
	}
	s.metrics.AddReminder("queued")
	return true
}

func renewalMessage(policy policies.Policy) string {
	return fmt.Sprintf(`Renewal Due: Policy "%s" for client "%s" is due on %s.`,
		policy.PlanName, clientName(policy), policy.DueDate.Format(messageLayout))
}

func clientName(policy policies.Policy) string {
	if policy.ClientName == "" {
		return unknownClient
	}
	return policy.ClientName
}
