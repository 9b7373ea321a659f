package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ss-insurance/insurance-manager/internal/auth"
	"github.com/ss-insurance/insurance-manager/internal/renewals"
)

// KindEmailConfirmation tags sign-up confirmation e-mails.
const KindEmailConfirmation = "email_confirmation"

// enqueuer is the subset of *asynq.Client used by Client.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits jobs to the queue.
type Client struct {
	client enqueuer
}

// NewClient constructs an asynq-backed Client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueSendEmail enqueues a send-email task.
func (c *Client) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	task, err := NewSendEmailTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueReminder queues a renewal reminder e-mail.
func (c *Client) EnqueueReminder(ctx context.Context, reminder renewals.Reminder) error {
	if reminder.To == "" {
		return errors.New("jobs: reminder without recipient")
	}
	_, err := c.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      reminder.To,
		Subject: reminder.Subject(),
		Body:    reminder.Body(),
		Kind:    KindRenewalReminder,
	})
	return err
}

// EnqueueConfirmation queues the sign-up confirmation e-mail.
func (c *Client) EnqueueConfirmation(ctx context.Context, msg auth.ConfirmationEmail) error {
	if msg.To == "" {
		return errors.New("jobs: confirmation without recipient")
	}
	_, err := c.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      msg.To,
		Subject: msg.Subject(),
		Body:    msg.Body(),
		Kind:    KindEmailConfirmation,
	})
	return err
}

// EnqueueRenewalCheck schedules an immediate renewal check.
func (c *Client) EnqueueRenewalCheck(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewRenewalCheckTask(time.Time{})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

var (
	_ renewals.ReminderQueue  = (*Client)(nil)
	_ auth.ConfirmationMailer = (*Client)(nil)
)
