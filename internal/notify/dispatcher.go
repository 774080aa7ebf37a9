package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
)

var reminderTemplate = template.Must(template.New("reminder").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #e1e1e1; border-radius: 5px;">
  <h1 style="color: #3d7a9e; border-bottom: 2px solid #3d7a9e; padding-bottom: 10px;">Contest Reminder</h1>
  <p>Hello there,</p>
  <p>The contest <strong style="color: #e3702d;">{{.Name}}</strong> on {{.Platform}} will start in {{.Lead}}.</p>
  <div style="background-color: #f5f5f5; padding: 15px; border-radius: 5px; margin: 15px 0;">
    <p style="margin: 5px 0;"><strong>Contest:</strong> {{.Name}}</p>
    <p style="margin: 5px 0;"><strong>Platform:</strong> {{.Platform}}</p>
    <p style="margin: 5px 0;"><strong>Start Time:</strong> {{.Start}}</p>
  </div>
  {{if .URL}}<a href="{{.URL}}" style="display: inline-block; background-color: #3d7a9e; color: white; padding: 10px 20px; text-decoration: none; border-radius: 4px; margin-top: 15px;">Go to Contest</a>{{end}}
  <p style="margin-top: 20px;">Good luck!</p>
  <p style="color: #777; font-size: 0.9em; margin-top: 30px; border-top: 1px solid #e1e1e1; padding-top: 15px;">You received this because you asked for a reminder for this contest.</p>
</div>`))

type reminderView struct {
	Name     string
	Platform string
	Lead     string
	Start    string
	URL      string
}

// Dispatcher renders and sends one reminder mail. Send never returns an error:
// every failure, including a panicking transport, is reported as false.
type Dispatcher struct {
	Transport Transport
	Logger    *zap.Logger
	// Location renders the start time; defaults to UTC.
	Location *time.Location
	Timeout  time.Duration
	Now      func() time.Time
}

func (d *Dispatcher) Send(ctx context.Context, email, contestName, platform string, startTime time.Time, url string) (ok bool) {
	if d == nil || d.Transport == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			d.logWarn("mail transport panic", fmt.Errorf("%v", r), zap.String("to", email))
			ok = false
		}
	}()

	lead := LeadMessage(startTime, d.now())
	subject := fmt.Sprintf("🔔 Reminder: %s starts in %s", contestName, lead)
	body, err := d.render(reminderView{
		Name:     contestName,
		Platform: platform,
		Lead:     lead,
		Start:    startTime.In(d.location()).Format("Mon, 02 Jan 2006 15:04 MST"),
		URL:      url,
	})
	if err != nil {
		d.logWarn("render reminder failed", err, zap.String("contest", contestName))
		return false
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	receipt, err := d.Transport.SendMail(sendCtx, email, subject, body)
	if err != nil {
		d.logWarn("send reminder failed", err, zap.String("to", email), zap.String("contest", contestName))
		return false
	}
	if d.Logger != nil {
		d.Logger.Info("reminder sent",
			zap.String("to", email),
			zap.String("contest", contestName),
			zap.String("message_id", receipt.MessageID),
		)
	}
	return true
}

// LeadMessage describes how far away start is, snapped to the two lead times.
func LeadMessage(start, now time.Time) string {
	if start.Sub(now) < 45*time.Minute {
		return "30 minutes"
	}
	return "1 hour"
}

func (d *Dispatcher) render(v reminderView) (string, error) {
	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Dispatcher) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.UTC
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logWarn(msg string, err error, fields ...zap.Field) {
	if d == nil || d.Logger == nil {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	d.Logger.Warn(msg, fields...)
}
