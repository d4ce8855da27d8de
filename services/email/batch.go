package emailsvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

const maxErrorMessage = 1000

type BatchDeps struct {
	Conf    *core.Config
	Mailer  core.EmailService
	Logs    core.EmailLogRepository
	Logger  core.Logger
	Metrics core.Metrics
}

// BatchSender sends messages one by one, throttled by a rate limiter, and logs every outcome.
type BatchSender struct {
	mailer    core.EmailService
	logs      core.EmailLogRepository
	logger    core.Logger
	metrics   core.Metrics
	limiter   *rate.Limiter
	batchSize int
}

var _ core.BatchEmailSender = (*BatchSender)(nil)

func NewBatchSender(deps BatchDeps) *BatchSender {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	limit := rate.Inf
	if r := deps.Conf.Email.RatePerSecond; r > 0 {
		limit = rate.Limit(r)
	}
	size := deps.Conf.Email.BatchSize
	if size <= 0 {
		size = 50
	}
	return &BatchSender{
		mailer:    deps.Mailer,
		logs:      deps.Logs,
		logger:    deps.Logger,
		metrics:   metrics,
		limiter:   rate.NewLimiter(limit, 1),
		batchSize: size,
	}
}

// SendBatch sends the messages in chunks of the configured batch size.
// A failed message does not stop the batch; only a cancelled context does.
func (s *BatchSender) SendBatch(ctx context.Context, batch core.EmailBatch) (core.EmailBatchResult, error) {
	var res core.EmailBatchResult
	for start := 0; start < len(batch.Messages); start += s.batchSize {
		end := start + s.batchSize
		if end > len(batch.Messages) {
			end = len(batch.Messages)
		}
		for _, msg := range batch.Messages[start:end] {
			if err := s.limiter.Wait(ctx); err != nil {
				s.record(res, batch.Kind)
				return res, err
			}
			err := s.mailer.Send(ctx, msg)
			if err != nil {
				res.Failed++
				s.logger.Warn(fmt.Sprintf("sending %s email to %s", batch.Kind, recipientEmail(msg)), err)
			} else {
				res.Sent++
			}
			s.log(ctx, batch, msg, err)
		}
		s.logger.Debug(fmt.Sprintf("%s batch: %d/%d processed", batch.Kind, end, len(batch.Messages)))
	}
	s.record(res, batch.Kind)
	return res, nil
}

func (s *BatchSender) record(res core.EmailBatchResult, kind string) {
	if res.Sent > 0 {
		s.metrics.EmailsSent(kind, core.EmailStatusSent, res.Sent)
	}
	if res.Failed > 0 {
		s.metrics.EmailsSent(kind, core.EmailStatusFailed, res.Failed)
	}
}

func (s *BatchSender) log(ctx context.Context, batch core.EmailBatch, msg *core.EmailMessage, sendErr error) {
	entry := core.EmailLog{
		SurveyID:       optional(batch.SurveyID),
		OperationID:    optional(batch.OperationID),
		RecipientEmail: recipientEmail(msg),
		RecipientName:  recipientName(msg),
		Subject:        msg.Subject,
		EmailType:      batch.Kind,
		Status:         core.EmailStatusSent,
		SentAt:         time.Now().UTC(),
	}
	if sendErr != nil {
		entry.Status = core.EmailStatusFailed
		entry.ErrorMessage = sendErr.Error()
		if len(entry.ErrorMessage) > maxErrorMessage {
			entry.ErrorMessage = entry.ErrorMessage[:maxErrorMessage]
		}
	}
	if err := s.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("saving email log", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func recipientEmail(msg *core.EmailMessage) string {
	addrs := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		addrs = append(addrs, a.Address)
	}
	return strings.Join(addrs, ", ")
}

func recipientName(msg *core.EmailMessage) string {
	if len(msg.To) == 0 {
		return ""
	}
	return msg.To[0].Name
}
