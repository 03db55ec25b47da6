package worker

import (
	"context"
	"fmt"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/log"
	"finledger/internal/notify"
)

const (
	maxAttempts = 3
	baseDelay   = time.Second
)

// MailWorker renders queued email jobs and hands them to a Sender. A failed
// send is retried with a doubling delay; after the last attempt the job is
// dropped.
type MailWorker struct {
	renderer *notify.Renderer
	sender   notify.Sender
	logger   *log.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewMailWorker(renderer *notify.Renderer, sender notify.Sender) *MailWorker {
	return &MailWorker{
		renderer: renderer,
		sender:   sender,
		logger:   log.ForComponent(log.ComponentMailWorker),
		sleep:    sleepContext,
	}
}

// HandleEmailJob processes a single email job from AMQP.
func (w *MailWorker) HandleEmailJob(ctx context.Context, job *amqp.EmailJob) error {
	email, err := w.renderer.Render(job.Message)
	if err != nil {
		// rendering is deterministic, retrying cannot help
		return fmt.Errorf("render %s: %w", job.Message.Kind, err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = w.sender.Send(ctx, email)
		if lastErr == nil {
			w.logger.InfoContext(ctx, "Email sent",
				log.FieldJobID, job.ID,
				log.FieldJobType, job.Message.Kind,
				log.FieldAttempt, attempt)
			return nil
		}
		w.logger.WarnContext(ctx, "Email send failed",
			log.FieldJobID, job.ID,
			log.FieldAttempt, attempt,
			log.FieldError, lastErr)
		if attempt == maxAttempts {
			break
		}
		if err := w.sleep(ctx, baseDelay<<(attempt-1)); err != nil {
			return err
		}
	}
	return fmt.Errorf("send %s after %d attempts: %w", job.ID, maxAttempts, lastErr)
}

// Run consumes jobs until ctx is cancelled, reconnecting with backoff when
// the consumer stops.
func (w *MailWorker) Run(ctx context.Context, client *amqp.Client) error {
	for attempt := 0; ; attempt++ {
		err := client.ConsumeEmailJobs(ctx, w.HandleEmailJob)
		if ctx.Err() != nil {
			return nil
		}
		delay := amqp.Backoff(attempt)
		w.logger.ErrorContext(ctx, "Email consumer stopped, restarting",
			log.FieldError, err,
			"retry_in", delay)
		if err := w.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
