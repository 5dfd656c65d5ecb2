package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/notify"
)

// SendEmailJob delivers queued mail through the SMTP mailer.
type SendEmailJob struct {
	Mailer *notify.Mailer
	Logger *slog.Logger
}

// NewSendEmailJob initialises the mail delivery handler.
func NewSendEmailJob(mailer *notify.Mailer, logger *slog.Logger) *SendEmailJob {
	return &SendEmailJob{Mailer: mailer, Logger: logger}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("mail send: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := j.Mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		j.Logger.Error("mail delivery failed",
			slog.String("to", payload.To),
			slog.Any("error", err))
		return err
	}
	j.Logger.Info("mail delivered",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject))
	return nil
}
