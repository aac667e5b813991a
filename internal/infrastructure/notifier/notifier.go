package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/calling-tree-api/internal/domain"
	"github.com/calling-tree-api/internal/infrastructure/smtp"
	"github.com/calling-tree-api/internal/infrastructure/sns"
	"github.com/rs/zerolog"
)

// MultiChannel fans a dispatch across every contact channel the member has.
// Reaching at least one channel counts as a successful dispatch; the engine
// records per-recipient failure only when all channels fail.
type MultiChannel struct {
	sms  sns.SMSSender
	mail smtp.Mailer
	log  zerolog.Logger
}

func NewMultiChannel(sms sns.SMSSender, mail smtp.Mailer, log zerolog.Logger) *MultiChannel {
	return &MultiChannel{sms: sms, mail: mail, log: log.With().Str("component", "notifier").Logger()}
}

func (m *MultiChannel) Dispatch(ctx context.Context, member domain.Member, n *domain.Notification) error {
	var errs []error
	reached := false

	if m.sms != nil && member.Phone != nil && *member.Phone != "" {
		attrs := map[string]string{
			"notification_id": n.NotificationID,
			"priority":        string(n.Priority),
		}
		body := fmt.Sprintf("[%s] %s: %s", n.Priority, n.Title, n.Message)
		if err := m.sms.SendSMS(ctx, *member.Phone, body, attrs); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		} else {
			reached = true
		}
	}

	if m.mail != nil && member.Email != nil && *member.Email != "" {
		subject := fmt.Sprintf("[%s] %s", n.Priority, n.Title)
		if err := m.mail.SendEmail(*member.Email, subject, n.Message); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			reached = true
		}
	}

	if reached {
		if len(errs) > 0 {
			m.log.Warn().Str("user_id", member.UserID).Err(errors.Join(errs...)).
				Msg("partial channel failure")
		}
		return nil
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return fmt.Errorf("member %s has no reachable channel", member.UserID)
}
