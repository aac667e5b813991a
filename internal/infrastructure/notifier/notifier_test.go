package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/calling-tree-api/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, message string, attrs map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) SendEmail(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func strptr(s string) *string { return &s }

func member() domain.Member {
	return domain.Member{
		UserID:   "u1",
		FullName: "Dana",
		Email:    strptr("dana@example.com"),
		Phone:    strptr("+15550100"),
	}
}

func notification() *domain.Notification {
	return &domain.Notification{
		NotificationID: "n1",
		Title:          "water main break",
		Message:        "report to site B",
		Priority:       domain.PriorityCritical,
	}
}

func TestDispatch_BothChannels(t *testing.T) {
	sms := &fakeSMS{}
	mail := &fakeMailer{}
	m := NewMultiChannel(sms, mail, zerolog.Nop())

	require.NoError(t, m.Dispatch(context.Background(), member(), notification()))
	assert.Equal(t, []string{"+15550100"}, sms.sent)
	assert.Equal(t, []string{"dana@example.com"}, mail.sent)
}

func TestDispatch_OneChannelIsEnough(t *testing.T) {
	sms := &fakeSMS{err: errors.New("sns down")}
	mail := &fakeMailer{}
	m := NewMultiChannel(sms, mail, zerolog.Nop())

	require.NoError(t, m.Dispatch(context.Background(), member(), notification()))
	assert.Equal(t, []string{"dana@example.com"}, mail.sent)
}

func TestDispatch_AllChannelsFail(t *testing.T) {
	sms := &fakeSMS{err: errors.New("sns down")}
	mail := &fakeMailer{err: errors.New("smtp down")}
	m := NewMultiChannel(sms, mail, zerolog.Nop())

	err := m.Dispatch(context.Background(), member(), notification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sns down")
	assert.Contains(t, err.Error(), "smtp down")
}

func TestDispatch_NoReachableChannel(t *testing.T) {
	m := NewMultiChannel(nil, nil, zerolog.Nop())
	err := m.Dispatch(context.Background(), domain.Member{UserID: "u1"}, notification())
	assert.ErrorContains(t, err, "no reachable channel")
}

func TestDispatch_SkipsEmptyContacts(t *testing.T) {
	sms := &fakeSMS{}
	mail := &fakeMailer{}
	m := NewMultiChannel(sms, mail, zerolog.Nop())

	mem := domain.Member{UserID: "u1", Email: strptr(""), Phone: strptr("+15550100")}
	require.NoError(t, m.Dispatch(context.Background(), mem, notification()))
	assert.Empty(t, mail.sent)
	assert.Equal(t, []string{"+15550100"}, sms.sent)
}
