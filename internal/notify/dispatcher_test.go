package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"
)

type fakeTransport struct {
	err     error
	panics  bool
	to      string
	subject string
	body    string
}

func (f *fakeTransport) SendMail(ctx context.Context, to, subject, htmlBody string) (Receipt, error) {
	if f.panics {
		panic("smtp exploded")
	}
	f.to, f.subject, f.body = to, subject, htmlBody
	if f.err != nil {
		return Receipt{}, f.err
	}
	return Receipt{MessageID: "m-1", SentAt: time.Now()}, nil
}

func TestDispatcher_SendRendersReminder(t *testing.T) {
	now := time.Date(2024, 9, 1, 14, 0, 0, 0, time.UTC)
	tr := &fakeTransport{}
	d := &Dispatcher{Transport: tr, Now: func() time.Time { return now }}

	ok := d.Send(context.Background(), "a@example.com", "Round <1>", "Codeforces", now.Add(30*time.Minute), "https://codeforces.com/contest/1")
	require.True(t, ok)
	assert.Equal(t, "a@example.com", tr.to)
	assert.Equal(t, "🔔 Reminder: Round <1> starts in 30 minutes", tr.subject)
	assert.Contains(t, tr.body, "Round &lt;1&gt;")
	assert.Contains(t, tr.body, `href="https://codeforces.com/contest/1"`)
	assert.Contains(t, tr.body, "Sun, 01 Sep 2024 14:30 UTC")
}

func TestDispatcher_TransportFailureIsFalse(t *testing.T) {
	d := &Dispatcher{Transport: &fakeTransport{err: errors.New("421 try later")}}
	assert.False(t, d.Send(context.Background(), "a@example.com", "x", "CodeChef", time.Now().Add(time.Hour), ""))
}

func TestDispatcher_TransportPanicIsFalse(t *testing.T) {
	d := &Dispatcher{Transport: &fakeTransport{panics: true}}
	assert.False(t, d.Send(context.Background(), "a@example.com", "x", "CodeChef", time.Now().Add(time.Hour), ""))
}

func TestDispatcher_NoTransport(t *testing.T) {
	var d *Dispatcher
	assert.False(t, d.Send(context.Background(), "a@example.com", "x", "CodeChef", time.Now(), ""))
}

func TestLeadMessage(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "30 minutes", LeadMessage(now.Add(31*time.Minute), now))
	assert.Equal(t, "1 hour", LeadMessage(now.Add(59*time.Minute), now))
}

func TestLogTransport_ReportsNotDelivered(t *testing.T) {
	r, err := (&LogTransport{}).SendMail(context.Background(), "a@example.com", "s", "<p>b</p>")
	require.ErrorIs(t, err, ErrNotDelivered)
	assert.False(t, strings.TrimSpace(r.MessageID) == "")
}

func TestDispatcher_LogTransportLeavesReminderUnsent(t *testing.T) {
	d := &Dispatcher{Transport: &LogTransport{}}
	assert.False(t, d.Send(context.Background(), "a@example.com", "Round 1", "Codeforces", time.Now().Add(30*time.Minute), ""))
}

func TestSMTPTransport_SendFailure(t *testing.T) {
	tr := &SMTPTransport{
		Config: SMTPConfig{From: "bot@example.com"},
		send:   func(*gomail.Message) error { return errors.New("535 auth failed") },
	}
	_, err := tr.SendMail(context.Background(), "a@example.com", "s", "<p>b</p>")
	assert.EqualError(t, err, "535 auth failed")
}

func TestSMTPTransport_TimeoutLogsLateDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	release := make(chan struct{})
	tr := &SMTPTransport{
		Config: SMTPConfig{From: "bot@example.com"},
		Logger: zap.New(core),
		send: func(*gomail.Message) error {
			<-release
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.SendMail(ctx, "a@example.com", "s", "<p>b</p>")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("delivered late").Len() == 1
	}, time.Second, 5*time.Millisecond)
}
